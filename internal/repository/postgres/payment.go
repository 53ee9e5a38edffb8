package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"cardpay/internal/domain"
	"cardpay/internal/repository"
)

const paymentColumns = `
	id, user_id, amount, currency, country, start_date, end_date, car_rental,
	provider_request, provider_token, provider_response, provider_result,
	status, created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var userID any
	if payment.UserID != "" {
		userID = payment.UserID
	}

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		userID,
		payment.Amount,
		payment.Currency,
		payment.Country,
		payment.StartDate,
		payment.EndDate,
		payment.CarRental,
		jsonArg(payment.ProviderRequest),
		payment.ProviderToken,
		jsonArg(payment.ProviderResponse),
		jsonArg(payment.ProviderResult),
		payment.Status,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return mapError(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByProviderToken retrieves the payment holding the provider session token.
func (r *PaymentRepository) GetByProviderToken(ctx context.Context, token string) (*domain.Payment, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_token = $1 ORDER BY created_at DESC LIMIT 1`, token)
}

// AttachSession stores the provider session token and raw response.
func (r *PaymentRepository) AttachSession(ctx context.Context, id, token string, response json.RawMessage) error {
	query := `
		UPDATE payments
		SET provider_token = $1, provider_response = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.q.ExecContext(ctx, query, token, jsonArg(response), id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// AttachResult stores the raw retrieve response and, when status is non-nil,
// the terminal status. A nil status leaves the stored status untouched.
func (r *PaymentRepository) AttachResult(ctx context.Context, id string, result json.RawMessage, status *bool) error {
	query := `
		UPDATE payments
		SET provider_result = $1, status = COALESCE($2, status), updated_at = NOW()
		WHERE id = $3
	`

	res, err := r.q.ExecContext(ctx, query, jsonArg(result), status, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Payment, error) {
	var (
		payment   domain.Payment
		userID    sql.NullString
		startDate sql.NullTime
		endDate   sql.NullTime
		request   []byte
		response  []byte
		result    []byte
		status    sql.NullBool
	)

	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&payment.ID,
		&userID,
		&payment.Amount,
		&payment.Currency,
		&payment.Country,
		&startDate,
		&endDate,
		&payment.CarRental,
		&request,
		&payment.ProviderToken,
		&response,
		&result,
		&status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	payment.UserID = userID.String
	if startDate.Valid {
		payment.StartDate = &startDate.Time
	}
	if endDate.Valid {
		payment.EndDate = &endDate.Time
	}
	payment.ProviderRequest = request
	payment.ProviderResponse = response
	payment.ProviderResult = result
	if status.Valid {
		payment.Status = &status.Bool
	}

	return &payment, nil
}
