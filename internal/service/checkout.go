package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cardpay/internal/domain"
	"cardpay/internal/provider"
	"cardpay/internal/provider/iyzico"
	"cardpay/internal/repository"
)

const (
	providerDateLayout = "2006-01-02 15:04:05"

	usernameRetries        = 3
	usernameSuffixLength   = 4
	usernameSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// CheckoutConfig holds provider request defaults.
type CheckoutConfig struct {
	CallbackURL string
}

// CheckoutService starts hosted checkout sessions with the payment provider.
type CheckoutService struct {
	paymentRepo repository.PaymentRepository
	users       UserProvisioner
	provider    CheckoutProvider
	logger      *zap.Logger
	cfg         CheckoutConfig
	now         func() time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	paymentRepo repository.PaymentRepository,
	users UserProvisioner,
	checkoutProvider CheckoutProvider,
	logger *zap.Logger,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		paymentRepo: paymentRepo,
		users:       users,
		provider:    checkoutProvider,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// BuyerInfo describes the person paying.
type BuyerInfo struct {
	Name           string
	Email          string
	Phone          string
	IdentityNumber string
	Address        string
	State          string
	City           string
	Country        string
	ZipCode        string
	IP             string
}

// BasketItem is one line of an order.
type BasketItem struct {
	ID        string
	Name      string
	Category1 string
	Category2 string
	Price     decimal.Decimal
}

// OrderInfo describes what is being paid for.
type OrderInfo struct {
	Amount      decimal.Decimal
	Currency    string
	Locale      string
	Country     string
	StartDate   *time.Time
	EndDate     *time.Time
	CarRental   bool
	BasketItems []BasketItem
}

// CheckoutResult is the normalised outcome of StartCheckout. On a declined
// session Status is false and ProviderPayload carries the provider response.
type CheckoutResult struct {
	Status          bool
	Message         string
	PaymentID       string
	PaymentPageURL  string
	TokenExpireTime int64
	Token           string
	ProviderPayload json.RawMessage
}

func validateCheckout(buyer BuyerInfo, order OrderInfo) error {
	if strings.TrimSpace(buyer.Name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(buyer.Email) == "" {
		return invalid("email", "is required")
	}
	if !order.Amount.IsPositive() {
		return invalid("amount", "must be positive")
	}
	if len(order.BasketItems) == 0 {
		return invalid("basket_items", "must not be empty")
	}
	for i, item := range order.BasketItems {
		if item.ID == "" || item.Name == "" {
			return invalid(fmt.Sprintf("basket_items[%d]", i), "id and name are required")
		}
	}
	return nil
}

// StartCheckout records a pending payment and opens a provider checkout
// session for it. Exactly one payment is created per call. Provider
// transport failures are returned as *ProviderError; a provider-declined
// session is a normal result with Status false.
func (s *CheckoutService) StartCheckout(ctx context.Context, buyer BuyerInfo, order OrderInfo) (*CheckoutResult, error) {
	if err := validateCheckout(buyer, order); err != nil {
		return nil, err
	}

	given, family := SplitBuyerName(buyer.Name)

	basket := make([]iyzico.BasketItem, 0, len(order.BasketItems))
	for _, item := range order.BasketItems {
		basket = append(basket, iyzico.BasketItem{
			ID:        item.ID,
			Name:      item.Name,
			Category1: item.Category1,
			Category2: item.Category2,
			ItemType:  iyzico.BasketItemVirtual,
			Price:     item.Price.String(),
		})
	}

	user, err := s.provisionBuyer(ctx, given, family, buyer.Email)
	if err != nil {
		return nil, err
	}

	paymentID := uuid.New().String()
	registrationAddress := strings.TrimSpace(buyer.Address + " " + buyer.State)
	currency := providerCurrency(order.Currency)

	req := &iyzico.CheckoutFormRequest{
		Locale:              providerLocale(order.Locale),
		ConversationID:      paymentID,
		Price:               order.Amount.String(),
		PaidPrice:           order.Amount.String(),
		Currency:            currency,
		BasketID:            "basket-" + paymentID,
		PaymentGroup:        iyzico.PaymentGroupProduct,
		CallbackURL:         s.cfg.CallbackURL,
		EnabledInstallments: []int{1},
		Buyer: iyzico.Buyer{
			ID:                  user.ID,
			Name:                given,
			Surname:             family,
			GsmNumber:           buyer.Phone,
			Email:               buyer.Email,
			IdentityNumber:      buyer.IdentityNumber,
			LastLoginDate:       s.now().Format(providerDateLayout),
			RegistrationDate:    user.CreatedAt.Format(providerDateLayout),
			RegistrationAddress: registrationAddress,
			IP:                  buyer.IP,
			City:                buyer.City,
			Country:             buyer.Country,
			ZipCode:             buyer.ZipCode,
		},
		BillingAddress: iyzico.Address{
			ContactName: buyer.Name,
			City:        buyer.City,
			Country:     buyer.Country,
			Address:     registrationAddress,
			ZipCode:     buyer.ZipCode,
		},
		BasketItems: basket,
	}

	snapshot, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode provider request: %w", err)
	}

	country := order.Country
	if country == "" {
		country = buyer.Country
	}

	now := s.now().UTC()
	payment := &domain.Payment{
		ID:              paymentID,
		UserID:          user.ID,
		Amount:          order.Amount,
		Currency:        currency,
		Country:         country,
		StartDate:       order.StartDate,
		EndDate:         order.EndDate,
		CarRental:       order.CarRental,
		ProviderRequest: snapshot,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	res, err := provider.Await(ctx, func(done func(*iyzico.CheckoutFormInitResult, error)) {
		s.provider.CreateCheckoutForm(ctx, req, done)
	})
	if err == nil && res == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		s.logger.Error("checkout session create failed", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, &ProviderError{Op: "create checkout form", Err: err}
	}

	if err := s.paymentRepo.AttachSession(ctx, paymentID, res.Token, res.Raw); err != nil {
		return nil, fmt.Errorf("attach provider session: %w", err)
	}

	if !res.Succeeded() {
		s.logger.Warn("checkout session declined",
			zap.String("payment_id", paymentID),
			zap.String("error_code", res.ErrorCode),
			zap.String("error_message", res.ErrorMessage),
		)
		return &CheckoutResult{
			Status:          false,
			Message:         "Fail",
			PaymentID:       paymentID,
			ProviderPayload: res.Raw,
		}, nil
	}

	s.logger.Info("checkout session started", zap.String("payment_id", paymentID), zap.String("user_id", user.ID))

	return &CheckoutResult{
		Status:          true,
		Message:         "Success",
		PaymentID:       paymentID,
		PaymentPageURL:  res.PaymentPageURL,
		TokenExpireTime: res.TokenExpireTime,
		Token:           res.Token,
	}, nil
}

// provisionBuyer creates an internal user for the buyer, reusing the
// account registered under the same email when one exists. A username
// collision with another buyer gets a random suffix and another attempt.
func (s *CheckoutService) provisionBuyer(ctx context.Context, given, family, email string) (*domain.User, error) {
	password, err := randomPassword(6)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserProvisioning, err)
	}

	base := slug.Make(given+" "+family) + strconv.FormatInt(s.now().Unix(), 10)
	username := base

	for attempt := 0; ; attempt++ {
		user, err := s.users.CreateUser(ctx, CreateUserRequest{
			Username: username,
			Password: password,
			Email:    email,
			Internal: true,
		})
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, ErrEmailTaken):
			user, err = s.users.GetUserByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUserProvisioning, err)
			}
			return user, nil
		case errors.Is(err, ErrUsernameTaken) && attempt < usernameRetries:
			suffix, serr := randomString(usernameSuffixAlphabet, usernameSuffixLength)
			if serr != nil {
				return nil, fmt.Errorf("%w: %w", ErrUserProvisioning, serr)
			}
			s.logger.Debug("buyer username taken, retrying", zap.String("username", username))
			username = base + "-" + suffix
		default:
			return nil, fmt.Errorf("%w: %w", ErrUserProvisioning, err)
		}
	}
}
