package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"cardpay/internal/provider"
	"cardpay/internal/provider/iyzico"
	"cardpay/internal/repository"
)

// ReconcileService confirms checkout outcomes with the payment provider.
type ReconcileService struct {
	paymentRepo   repository.PaymentRepository
	provider      CheckoutProvider
	notifications *NotificationService
	logger        *zap.Logger
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(
	paymentRepo repository.PaymentRepository,
	checkoutProvider CheckoutProvider,
	notifications *NotificationService,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		paymentRepo:   paymentRepo,
		provider:      checkoutProvider,
		notifications: notifications,
		logger:        logger,
	}
}

// CheckStatus retrieves the provider's outcome for a session token and
// records it on the matching payment. The raw response is always stored.
// The payment is marked successful only when the provider reports success
// with a non-empty auth code and a SUCCESS payment status; any other outcome
// leaves the stored status unchanged, so a confirmed payment never regresses.
// The provider result is returned unchanged.
func (s *ReconcileService) CheckStatus(ctx context.Context, token string) (*iyzico.CheckoutFormResult, error) {
	if token == "" {
		return nil, invalid("token", "is required")
	}

	payment, err := s.paymentRepo.GetByProviderToken(ctx, token)
	if err != nil {
		return nil, err
	}

	req := &iyzico.RetrieveCheckoutFormRequest{
		Locale:         iyzico.LocaleTR,
		ConversationID: payment.ID,
		Token:          payment.ProviderToken,
	}
	res, err := provider.Await(ctx, func(done func(*iyzico.CheckoutFormResult, error)) {
		s.provider.RetrieveCheckoutForm(ctx, req, done)
	})
	if err == nil && res == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		s.logger.Error("checkout status retrieve failed", zap.String("payment_id", payment.ID), zap.Error(err))
		return nil, &ProviderError{Op: "retrieve checkout form", Err: err}
	}

	var status *bool
	if res.Succeeded() && res.Authorized() {
		confirmed := true
		status = &confirmed
	}

	if err := s.paymentRepo.AttachResult(ctx, payment.ID, res.Raw, status); err != nil {
		return nil, err
	}

	logFields := []zap.Field{
		zap.String("payment_id", payment.ID),
		zap.String("status", res.Status),
		zap.String("payment_status", res.PaymentStatus),
	}
	if status == nil {
		s.logger.Info("checkout not confirmed", logFields...)
		return res, nil
	}

	s.logger.Info("checkout confirmed", logFields...)
	payment.Status = status
	_ = s.notifications.NotifyPaymentReconciled(ctx, payment)

	return res, nil
}
