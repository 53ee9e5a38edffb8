package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardpay/internal/domain"
	"cardpay/internal/service"
	"cardpay/internal/tests"
)

func TestNotifyPaymentReconciled(t *testing.T) {
	t.Parallel()
	bus := tests.NewMockBroadcaster()
	svc := service.NewNotificationService(bus, zap.NewNop())

	confirmed := true
	err := svc.NotifyPaymentReconciled(context.Background(), &domain.Payment{
		ID:            "p-1",
		UserID:        "u-1",
		ProviderToken: "tok-1",
		Status:        &confirmed,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	calls := bus.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, string(service.EventPaymentReconciled), calls[0].Name)
	assert.Equal(t, []string{service.GroupPayment}, calls[0].Groups)

	payload, ok := calls[0].Payload.(service.PaymentReconciledEvent)
	require.True(t, ok)
	assert.Equal(t, "p-1", payload.PaymentID)
	assert.Equal(t, string(domain.PaymentStateSuccess), payload.State)
}

func TestNotify_BusErrorIsReturned(t *testing.T) {
	t.Parallel()
	bus := tests.NewMockBroadcaster()
	bus.Error = errors.New("redis: connection refused")
	svc := service.NewNotificationService(bus, zap.NewNop())

	err := svc.NotifyCardStored(context.Background(), &domain.Card{ID: "c-1", Status: domain.CardStatusActive})
	assert.Error(t, err)
	assert.Len(t, bus.Calls(), 1)
}
