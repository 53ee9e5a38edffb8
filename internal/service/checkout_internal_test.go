package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardpay/internal/tests"
)

func newFrozenCheckout(users *tests.MockUserRepository, payments *tests.MockPaymentRepository, p *tests.MockCheckoutProvider) *CheckoutService {
	logger := zap.NewNop()
	svc := NewCheckoutService(payments, NewUserService(users, logger), p, logger,
		CheckoutConfig{CallbackURL: "https://shop.example/callback"})
	frozen := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }
	return svc
}

func sameSecondBuyer(email string) BuyerInfo {
	return BuyerInfo{
		Name:           "Jane Doe",
		Email:          email,
		Phone:          "+905350000000",
		IdentityNumber: "74300864791",
		Address:        "Nidakule Goztepe",
		City:           "Istanbul",
		Country:        "Turkey",
		IP:             "85.34.78.112",
	}
}

func TestStartCheckout_SameNameSameSecondDistinctEmails(t *testing.T) {
	t.Parallel()
	users := tests.NewMockUserRepository()
	payments := tests.NewMockPaymentRepository()
	p := tests.NewMockCheckoutProvider()
	svc := newFrozenCheckout(users, payments, p)
	ctx := context.Background()

	ord := OrderInfo{
		Amount:   decimal.RequireFromString("10.00"),
		Currency: "TRY",
		Locale:   "TR",
		BasketItems: []BasketItem{
			{ID: "BI1", Name: "Ticket", Category1: "Tours", Price: decimal.RequireFromString("10.00")},
		},
	}

	first, err := svc.StartCheckout(ctx, sameSecondBuyer("jane1@example.com"), ord)
	require.NoError(t, err)
	assert.True(t, first.Status)

	second, err := svc.StartCheckout(ctx, sameSecondBuyer("jane2@example.com"), ord)
	require.NoError(t, err)
	assert.True(t, second.Status)

	assert.Equal(t, 2, users.CountUsers())
	assert.Equal(t, 2, payments.CountPayments())

	require.Len(t, p.CreateRequests, 2)
	assert.NotEqual(t, p.CreateRequests[0].Buyer.ID, p.CreateRequests[1].Buyer.ID)
	assert.Equal(t, "jane1@example.com", p.CreateRequests[0].Buyer.Email)
	assert.Equal(t, "jane2@example.com", p.CreateRequests[1].Buyer.Email)

	one, err := users.GetByEmail(ctx, "jane1@example.com")
	require.NoError(t, err)
	two, err := users.GetByEmail(ctx, "jane2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "jane-doe1792411200", one.Username)
	assert.Regexp(t, `^jane-doe1792411200-[a-z0-9]{4}$`, two.Username)
}

func TestProvisionBuyer_SameEmailReusesAccount(t *testing.T) {
	t.Parallel()
	users := tests.NewMockUserRepository()
	svc := newFrozenCheckout(users, tests.NewMockPaymentRepository(), tests.NewMockCheckoutProvider())
	ctx := context.Background()

	first, err := svc.provisionBuyer(ctx, "Jane", "Doe", "jane@example.com")
	require.NoError(t, err)
	second, err := svc.provisionBuyer(ctx, "Jane", "Doe", "jane@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, users.CountUsers())
}
