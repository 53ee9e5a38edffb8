package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardpay/internal/cardcrypto"
	"cardpay/internal/domain"
	"cardpay/internal/redis"
	"cardpay/internal/repository"
)

const (
	// DefaultMaxCardsPerUser is the card cap applied when none is configured.
	DefaultMaxCardsPerUser = 3

	fingerprintLength = 6
	aliasLength       = 8
	aliasAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// CardServiceConfig holds the vault limits.
type CardServiceConfig struct {
	MaxCardsPerUser int
	LockTTL         time.Duration
}

// CardService stores payment cards encrypted with per-card key material.
type CardService struct {
	cardRepo      repository.CardRepository
	escrow        redis.KeyEscrow
	locks         redis.LockStoreInterface
	notifications *NotificationService
	logger        *zap.Logger
	cfg           CardServiceConfig

	newKeyMaterial func() (cardcrypto.KeyMaterial, error)
	now            func() time.Time
}

// NewCardService creates a new CardService. locks may be nil, in which case
// the storage-level unique index is the only guard against concurrent inserts.
func NewCardService(
	cardRepo repository.CardRepository,
	escrow redis.KeyEscrow,
	locks redis.LockStoreInterface,
	notifications *NotificationService,
	logger *zap.Logger,
	cfg CardServiceConfig,
) *CardService {
	if cfg.MaxCardsPerUser <= 0 {
		cfg.MaxCardsPerUser = DefaultMaxCardsPerUser
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	return &CardService{
		cardRepo:       cardRepo,
		escrow:         escrow,
		locks:          locks,
		notifications:  notifications,
		logger:         logger,
		cfg:            cfg,
		newKeyMaterial: cardcrypto.NewKeyMaterial,
		now:            time.Now,
	}
}

// CreateCardRequest contains the parameters for storing a card.
type CreateCardRequest struct {
	UserID    string
	Name      string
	Number    string
	ExpMonth  string
	ExpYear   string
	CVV       string
	IsDefault bool
	Meta      map[string]any
}

func (r CreateCardRequest) validate() error {
	if r.UserID == "" {
		return ErrUnauthenticated
	}
	fields := []struct{ name, value string }{
		{"name", r.Name},
		{"card_number", r.Number},
		{"exp_month", r.ExpMonth},
		{"exp_year", r.ExpYear},
		{"cvv", r.CVV},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.name, "is required")
		}
	}
	if len(r.Number) < fingerprintLength {
		return invalid("card_number", fmt.Sprintf("must have at least %d characters", fingerprintLength))
	}
	return nil
}

// CardFingerprint returns the last six characters of a card number.
func CardFingerprint(number string) string {
	if len(number) <= fingerprintLength {
		return number
	}
	return number[len(number)-fingerprintLength:]
}

// CreateCard validates, encrypts and stores a card. The returned card holds
// ciphertext, never the submitted plaintext.
func (s *CardService) CreateCard(ctx context.Context, req CreateCardRequest) (*domain.Card, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	lastSix := CardFingerprint(req.Number)

	if s.locks != nil {
		token, acquired, err := s.locks.AcquireCardLock(ctx, req.UserID, s.cfg.LockTTL)
		switch {
		case err != nil:
			s.logger.Warn("card lock unavailable, relying on unique index",
				zap.String("user_id", req.UserID), zap.Error(err))
		case !acquired:
			return nil, ErrCardOperationInProgress
		default:
			defer func() {
				if err := s.locks.ReleaseCardLock(context.WithoutCancel(ctx), req.UserID, token); err != nil {
					s.logger.Warn("failed to release card lock", zap.String("user_id", req.UserID), zap.Error(err))
				}
			}()
		}
	}

	count, err := s.cardRepo.CountByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if count >= s.cfg.MaxCardsPerUser {
		return nil, ErrLimitExceeded
	}

	existing, err := s.cardRepo.GetByUserAndLastSix(ctx, req.UserID, lastSix)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateRecord
	}

	km, err := s.newKeyMaterial()
	if err != nil {
		return nil, err
	}
	c, err := cardcrypto.New(km)
	if err != nil {
		return nil, err
	}

	alias, err := randomAlias()
	if err != nil {
		return nil, err
	}

	meta := req.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	now := s.now().UTC()
	card := &domain.Card{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Name:      c.Encrypt(req.Name),
		Number:    c.Encrypt(req.Number),
		ExpMonth:  c.Encrypt(req.ExpMonth),
		ExpYear:   c.Encrypt(req.ExpYear),
		CVV:       c.Encrypt(req.CVV),
		LastSix:   lastSix,
		IsDefault: req.IsDefault,
		Alias:     alias,
		Meta:      meta,
		Status:    domain.CardStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.cardRepo.Create(ctx, card); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, ErrDuplicateRecord
		}
		return nil, err
	}

	// Escrow only after a successful insert; a rejected insert must not
	// replace the stored card's key material. The row is committed, so the
	// write must outlive a cancelled request.
	detached := context.WithoutCancel(ctx)
	if err := s.escrow.Put(detached, lastSix, km); err != nil {
		s.logger.Error("failed to escrow card key material",
			zap.String("card_id", card.ID),
			zap.String("card_last_six", lastSix),
			zap.Error(err),
		)
	}

	_ = s.notifications.NotifyCardStored(detached, card)

	s.logger.Info("card stored",
		zap.String("card_id", card.ID),
		zap.String("user_id", card.UserID),
		zap.String("card_last_six", lastSix),
	)

	return card, nil
}

// ListCards returns the caller's cards with their fields still encrypted.
func (s *CardService) ListCards(ctx context.Context, userID string) ([]*domain.Card, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	return s.cardRepo.ListByUser(ctx, userID)
}

// RemoveCard deletes a card owned by the user. Escrowed key material is kept.
func (s *CardService) RemoveCard(ctx context.Context, id, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if id == "" {
		return invalid("id", "is required")
	}
	if !validCardID(id) {
		return repository.ErrNotFound
	}
	if err := s.cardRepo.DeleteByIDAndUser(ctx, id, userID); err != nil {
		return err
	}

	s.logger.Info("card removed", zap.String("card_id", id), zap.String("user_id", userID))
	return nil
}

// RevealCard decrypts a card owned by the user using its escrowed key material.
func (s *CardService) RevealCard(ctx context.Context, id, userID string) (*domain.CardDetails, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if !validCardID(id) {
		return nil, repository.ErrNotFound
	}

	card, err := s.cardRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		return nil, repository.ErrNotFound
	}

	km, err := s.escrow.Get(ctx, card.LastSix)
	if err != nil {
		return nil, fmt.Errorf("load key material: %w", err)
	}
	c, err := cardcrypto.New(km)
	if err != nil {
		return nil, err
	}

	var details domain.CardDetails
	targets := []struct {
		dst *string
		src string
	}{
		{&details.Name, card.Name},
		{&details.Number, card.Number},
		{&details.ExpMonth, card.ExpMonth},
		{&details.ExpYear, card.ExpYear},
		{&details.CVV, card.CVV},
	}
	for _, t := range targets {
		plain, err := c.Decrypt(t.src)
		if err != nil {
			return nil, fmt.Errorf("decrypt card %s: %w", card.ID, err)
		}
		*t.dst = plain
	}

	return &details, nil
}

// RecordPaymentOutcome stores the result of the last payment made with a card.
func (s *CardService) RecordPaymentOutcome(ctx context.Context, id string, success bool) error {
	if id == "" {
		return invalid("id", "is required")
	}
	if !validCardID(id) {
		return repository.ErrNotFound
	}
	return s.cardRepo.UpdateLastPayment(ctx, id, success, s.now().UTC())
}

// validCardID reports whether id can name a stored card. Card ids are UUIDs.
func validCardID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func randomAlias() (string, error) {
	return randomString(aliasAlphabet, aliasLength)
}

// randomString draws n characters uniformly from alphabet.
func randomString(alphabet string, n int) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
