package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cardpay/internal/domain"
	"cardpay/internal/redis"
)

// EventType is the name of a broadcast domain event.
type EventType string

const (
	EventCardStored        EventType = "payment.card.stored"
	EventPaymentReconciled EventType = "payment.checkout.reconciled"
)

// Subscriber groups.
const (
	GroupCardStorage = "payment.cardstorage"
	GroupPayment     = "payment"
)

// CardStoredEvent is the payload of EventCardStored. Card fields are ciphertext.
type CardStoredEvent struct {
	ID        string         `json:"_id"`
	UserID    string         `json:"user"`
	Name      string         `json:"name"`
	Number    string         `json:"card_number"`
	ExpMonth  string         `json:"exp_month"`
	ExpYear   string         `json:"exp_year"`
	CVV       string         `json:"cvv"`
	LastSix   string         `json:"card_last_six"`
	IsDefault bool           `json:"is_default"`
	Alias     string         `json:"alias"`
	Meta      map[string]any `json:"meta"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PaymentReconciledEvent is the payload of EventPaymentReconciled.
type PaymentReconciledEvent struct {
	PaymentID string `json:"payment_id"`
	UserID    string `json:"user"`
	Token     string `json:"token"`
	State     string `json:"state"`
}

// NotificationService fans domain events out to subscriber groups.
type NotificationService struct {
	bus    redis.Broadcaster
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(bus redis.Broadcaster, logger *zap.Logger) *NotificationService {
	return &NotificationService{bus: bus, logger: logger}
}

// NotifyCardStored tells card-storage subscribers that a card was vaulted.
func (s *NotificationService) NotifyCardStored(ctx context.Context, card *domain.Card) error {
	return s.send(ctx, EventCardStored, CardStoredEvent{
		ID:        card.ID,
		UserID:    card.UserID,
		Name:      card.Name,
		Number:    card.Number,
		ExpMonth:  card.ExpMonth,
		ExpYear:   card.ExpYear,
		CVV:       card.CVV,
		LastSix:   card.LastSix,
		IsDefault: card.IsDefault,
		Alias:     card.Alias,
		Meta:      card.Meta,
		Status:    string(card.Status),
		CreatedAt: card.CreatedAt,
	}, GroupCardStorage)
}

// NotifyPaymentReconciled tells payment subscribers about a confirmed checkout.
func (s *NotificationService) NotifyPaymentReconciled(ctx context.Context, payment *domain.Payment) error {
	return s.send(ctx, EventPaymentReconciled, PaymentReconciledEvent{
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		Token:     payment.ProviderToken,
		State:     string(payment.State()),
	}, GroupPayment)
}

func (s *NotificationService) send(ctx context.Context, event EventType, payload any, groups ...string) error {
	if err := s.bus.Broadcast(ctx, string(event), payload, groups); err != nil {
		s.logger.Warn("event broadcast failed",
			zap.String("event", string(event)),
			zap.Strings("groups", groups),
			zap.Error(err),
		)
		return err
	}

	s.logger.Debug("event broadcast", zap.String("event", string(event)), zap.Strings("groups", groups))
	return nil
}
