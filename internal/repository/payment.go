package repository

import (
	"context"
	"encoding/json"

	"cardpay/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByProviderToken retrieves the payment holding the provider session token.
	GetByProviderToken(ctx context.Context, token string) (*domain.Payment, error)

	// AttachSession stores the provider session token and raw response.
	AttachSession(ctx context.Context, id, token string, response json.RawMessage) error

	// AttachResult stores the raw retrieve response and, when status is
	// non-nil, the terminal status.
	AttachResult(ctx context.Context, id string, result json.RawMessage, status *bool) error
}
