package repository

import (
	"context"
	"time"

	"cardpay/internal/domain"
)

// CardRepository defines the persistence operations for vaulted cards.
type CardRepository interface {
	// Create persists a new card. Returns ErrUniqueViolation when the user
	// already has a card with the same last six digits.
	Create(ctx context.Context, card *domain.Card) error

	// GetByID retrieves a card by ID.
	GetByID(ctx context.Context, id string) (*domain.Card, error)

	// GetByUserAndLastSix retrieves the user's card with the given fingerprint.
	// Returns nil if no such card exists.
	GetByUserAndLastSix(ctx context.Context, userID, lastSix string) (*domain.Card, error)

	// CountByUser returns the number of cards owned by the user.
	CountByUser(ctx context.Context, userID string) (int, error)

	// ListByUser retrieves all cards owned by the user.
	ListByUser(ctx context.Context, userID string) ([]*domain.Card, error)

	// UpdateLastPayment records the outcome of the last payment made with a card.
	UpdateLastPayment(ctx context.Context, id string, status bool, at time.Time) error

	// DeleteByIDAndUser removes a card only if it belongs to the user.
	DeleteByIDAndUser(ctx context.Context, id, userID string) error
}
