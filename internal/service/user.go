package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"cardpay/internal/domain"
	"cardpay/internal/repository"
)

// UserService registers and looks up users.
type UserService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{userRepo: userRepo, logger: logger, now: time.Now}
}

// CreateUserRequest contains the parameters for registering a user.
type CreateUserRequest struct {
	Username string
	Password string
	Email    string
	Internal bool
}

func (r CreateUserRequest) validate() error {
	if len(strings.TrimSpace(r.Username)) < 2 {
		return invalid("username", "must have at least 2 characters")
	}
	if len(r.Password) < 6 {
		return invalid("password", "must have at least 6 characters")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return invalid("email", "is not a valid address")
	}
	return nil
}

// CreateUser registers a user. It returns ErrUsernameTaken or ErrEmailTaken,
// both of which match ErrUserExists, when either is already registered.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Internal:     req.Internal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			if strings.Contains(err.Error(), "email") {
				return nil, fmt.Errorf("%w: %v", ErrEmailTaken, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrUsernameTaken, err)
		}
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.Bool("internal", user.Internal))
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, invalid("email", "is required")
	}
	return s.userRepo.GetByEmail(ctx, email)
}
