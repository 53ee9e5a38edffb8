package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardpay/internal/domain"
	"cardpay/internal/repository"
)

func TestMapError_UniqueViolation(t *testing.T) {
	err := mapError(&pq.Error{Code: uniqueViolation, Constraint: "payment_cards_user_last_six_key"})
	assert.ErrorIs(t, err, repository.ErrUniqueViolation)
	assert.Contains(t, err.Error(), "payment_cards_user_last_six_key")

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError(other))
	assert.NoError(t, mapError(nil))
}

func TestJSONArg(t *testing.T) {
	assert.Nil(t, jsonArg(nil))
	assert.Nil(t, jsonArg([]byte{}))
	assert.Equal(t, `{"a":1}`, jsonArg([]byte(`{"a":1}`)))
}

// withTx runs fn inside a transaction that is always rolled back. The test
// is skipped unless CARDPAY_TEST_POSTGRES_DSN points at a scratch database.
func withTx(t *testing.T, fn func(ctx context.Context, tx *sql.Tx)) {
	t.Helper()
	dsn := os.Getenv("CARDPAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CARDPAY_TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })

	require.NoError(t, Migrate(ctx, tx))
	fn(ctx, tx)
}

func seedUser(t *testing.T, ctx context.Context, tx *sql.Tx) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     "user-" + uuid.New().String()[:8],
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.Email = user.Username + "@example.com"
	require.NoError(t, NewUserRepositoryWithTx(tx).Create(ctx, user))
	return user
}

func TestCardRepository_UniqueFingerprintPerUser(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		user := seedUser(t, ctx, tx)
		repo := NewCardRepositoryWithTx(tx)

		card := func() *domain.Card {
			now := time.Now().UTC()
			return &domain.Card{
				ID:        uuid.New().String(),
				UserID:    user.ID,
				Name:      "ct-name",
				Number:    "ct-number",
				ExpMonth:  "ct-month",
				ExpYear:   "ct-year",
				CVV:       "ct-cvv",
				LastSix:   "111111",
				Alias:     "AbCd1234",
				Meta:      map[string]any{"brand": "visa"},
				Status:    domain.CardStatusActive,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}

		first := card()
		require.NoError(t, repo.Create(ctx, first))

		err := repo.Create(ctx, card())
		require.ErrorIs(t, err, repository.ErrUniqueViolation)
	})
}

func TestCardRepository_RoundTrip(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		user := seedUser(t, ctx, tx)
		repo := NewCardRepositoryWithTx(tx)
		now := time.Now().UTC().Truncate(time.Microsecond)

		card := &domain.Card{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			Name:      "ct-name",
			Number:    "ct-number",
			ExpMonth:  "ct-month",
			ExpYear:   "ct-year",
			CVV:       "ct-cvv",
			LastSix:   "222222",
			Alias:     "ZyXw9876",
			Meta:      map[string]any{},
			Status:    domain.CardStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, repo.Create(ctx, card))

		got, err := repo.GetByUserAndLastSix(ctx, user.ID, "222222")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, card.ID, got.ID)
		assert.Nil(t, got.LastPaymentStatus)
		assert.Nil(t, got.LastPaymentDate)

		missing, err := repo.GetByUserAndLastSix(ctx, user.ID, "333333")
		require.NoError(t, err)
		assert.Nil(t, missing)

		count, err := repo.CountByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, repo.UpdateLastPayment(ctx, card.ID, true, now))
		got, err = repo.GetByID(ctx, card.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastPaymentStatus)
		assert.True(t, *got.LastPaymentStatus)

		assert.ErrorIs(t, repo.DeleteByIDAndUser(ctx, card.ID, uuid.New().String()), repository.ErrNotFound)
		require.NoError(t, repo.DeleteByIDAndUser(ctx, card.ID, user.ID))

		cards, err := repo.ListByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, cards)
	})
}

func TestPaymentRepository_StatusNeverRegresses(t *testing.T) {
	withTx(t, func(ctx context.Context, tx *sql.Tx) {
		user := seedUser(t, ctx, tx)
		repo := NewPaymentRepositoryWithTx(tx)
		now := time.Now().UTC()

		payment := &domain.Payment{
			ID:              uuid.New().String(),
			UserID:          user.ID,
			Amount:          decimal.RequireFromString("150.00"),
			Currency:        "USD",
			ProviderRequest: json.RawMessage(`{"locale":"en"}`),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		require.NoError(t, repo.Create(ctx, payment))

		_, err := repo.GetByProviderToken(ctx, "tok-1")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		require.NoError(t, repo.AttachSession(ctx, payment.ID, "tok-1", json.RawMessage(`{"status":"success"}`)))

		confirmed := true
		require.NoError(t, repo.AttachResult(ctx, payment.ID, json.RawMessage(`{"authCode":"A1"}`), &confirmed))
		require.NoError(t, repo.AttachResult(ctx, payment.ID, json.RawMessage(`{"authCode":""}`), nil))

		got, err := repo.GetByProviderToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, payment.ID, got.ID)
		assert.True(t, got.Amount.Equal(payment.Amount))
		require.NotNil(t, got.Status)
		assert.True(t, *got.Status)
		assert.JSONEq(t, `{"authCode":""}`, string(got.ProviderResult))
	})
}
