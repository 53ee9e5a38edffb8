package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentState is the derived view of a payment's tri-state status.
type PaymentState string

const (
	PaymentStatePending PaymentState = "PENDING"
	PaymentStateSuccess PaymentState = "SUCCESS"
	PaymentStateFailed  PaymentState = "FAILED"
)

// Payment is a checkout attempt against the external provider.
// Status is nil while pending, true once confirmed and false when failed.
type Payment struct {
	ID               string
	UserID           string
	Amount           decimal.Decimal
	Currency         string
	Country          string
	StartDate        *time.Time
	EndDate          *time.Time
	CarRental        bool
	ProviderRequest  json.RawMessage
	ProviderToken    string
	ProviderResponse json.RawMessage
	// ProviderResult is the raw retrieve response kept for audit.
	ProviderResult json.RawMessage
	Status         *bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// State returns the payment state derived from Status.
func (p *Payment) State() PaymentState {
	switch {
	case p.Status == nil:
		return PaymentStatePending
	case *p.Status:
		return PaymentStateSuccess
	default:
		return PaymentStateFailed
	}
}
