package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cardpay/internal/domain"
	"cardpay/internal/repository"
)

const cardColumns = `
	id, user_id, name, card_number, exp_month, exp_year, cvv, card_last_six,
	is_default, alias, meta, status, last_payment_date, last_payment_status,
	created_at, updated_at`

// CardRepository is a PostgreSQL implementation of repository.CardRepository.
type CardRepository struct {
	q Querier
}

// NewCardRepository creates a new PostgreSQL card repository.
func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{q: db}
}

// NewCardRepositoryWithTx creates a card repository using a transaction.
func NewCardRepositoryWithTx(tx *sql.Tx) *CardRepository {
	return &CardRepository{q: tx}
}

// Create persists a new card.
func (r *CardRepository) Create(ctx context.Context, card *domain.Card) error {
	meta, err := json.Marshal(card.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode card meta: %w", err)
	}

	query := `
		INSERT INTO payment_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.q.ExecContext(ctx, query,
		card.ID,
		card.UserID,
		card.Name,
		card.Number,
		card.ExpMonth,
		card.ExpYear,
		card.CVV,
		card.LastSix,
		card.IsDefault,
		card.Alias,
		string(meta),
		card.Status,
		card.LastPaymentDate,
		card.LastPaymentStatus,
		card.CreatedAt,
		card.UpdatedAt,
	)

	return mapError(err)
}

// GetByID retrieves a card by ID.
func (r *CardRepository) GetByID(ctx context.Context, id string) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM payment_cards WHERE id = $1`

	card, err := scanCard(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return card, nil
}

// GetByUserAndLastSix retrieves the user's card with the given fingerprint.
// Returns nil if no such card exists.
func (r *CardRepository) GetByUserAndLastSix(ctx context.Context, userID, lastSix string) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM payment_cards WHERE user_id = $1 AND card_last_six = $2`

	card, err := scanCard(r.q.QueryRowContext(ctx, query, userID, lastSix))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return card, nil
}

// CountByUser returns the number of cards owned by the user.
func (r *CardRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_cards WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// ListByUser retrieves all cards owned by the user, oldest first.
func (r *CardRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM payment_cards WHERE user_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]*domain.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// UpdateLastPayment records the outcome of the last payment made with a card.
func (r *CardRepository) UpdateLastPayment(ctx context.Context, id string, status bool, at time.Time) error {
	query := `
		UPDATE payment_cards
		SET last_payment_status = $1, last_payment_date = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.q.ExecContext(ctx, query, status, at, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// DeleteByIDAndUser removes a card only if it belongs to the user.
func (r *CardRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM payment_cards WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var (
		card              domain.Card
		meta              []byte
		lastPaymentDate   sql.NullTime
		lastPaymentStatus sql.NullBool
	)

	err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.Name,
		&card.Number,
		&card.ExpMonth,
		&card.ExpYear,
		&card.CVV,
		&card.LastSix,
		&card.IsDefault,
		&card.Alias,
		&meta,
		&card.Status,
		&lastPaymentDate,
		&lastPaymentStatus,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &card.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode card meta: %w", err)
		}
	}
	if lastPaymentDate.Valid {
		card.LastPaymentDate = &lastPaymentDate.Time
	}
	if lastPaymentStatus.Valid {
		card.LastPaymentStatus = &lastPaymentStatus.Bool
	}

	return &card, nil
}
