package tests

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardpay/internal/app"
	"cardpay/internal/handler"
	"cardpay/internal/middleware"
	"cardpay/internal/provider/iyzico"
	internalRedis "cardpay/internal/redis"
	"cardpay/internal/service"
)

const cardOwner = "9a1e4c2b-6f3d-4d7a-8b5e-1c2d3e4f5a6b"

type harness struct {
	server   *httptest.Server
	mr       *miniredis.Miniredis
	redis    *redis.Client
	cards    *MockCardRepository
	payments *MockPaymentRepository
	users    *MockUserRepository
	provider *MockCheckoutProvider
	bus      *internalRedis.EventBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	h := &harness{
		mr:       mr,
		redis:    client,
		cards:    NewMockCardRepository(),
		payments: NewMockPaymentRepository(),
		users:    NewMockUserRepository(),
		provider: NewMockCheckoutProvider(),
		bus:      internalRedis.NewEventBus(client),
	}

	notifications := service.NewNotificationService(h.bus, logger)
	userService := service.NewUserService(h.users, logger)
	cardService := service.NewCardService(h.cards, internalRedis.NewEscrowStore(client, 0), internalRedis.NewLockStore(client), notifications, logger, service.CardServiceConfig{
		MaxCardsPerUser: 3,
		LockTTL:         5 * time.Second,
	})
	checkout := service.NewCheckoutService(h.payments, userService, h.provider, logger, service.CheckoutConfig{CallbackURL: "https://shop.example/cb"})
	reconcile := service.NewReconcileService(h.payments, h.provider, notifications, logger)

	router := app.NewRouter(app.RouterDeps{
		CardHandler: handler.NewCardHandler(cardService),
		CheckoutHandler: handler.NewCheckoutHandler(checkout, reconcile, handler.CheckoutDefaults{
			Currency:         "USD",
			BuyerIP:          "85.34.78.112",
			ProviderDeadline: 2 * time.Second,
		}),
		UserHandler: handler.NewUserHandler(userService),
		RedisClient: client,
		Logger:      logger,
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) post(t *testing.T, path, userID string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	return h.request(t, http.MethodPost, path, userID, body, headers...)
}

func (h *harness) request(t *testing.T, method, path, userID string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func card(number string) handler.CreateCardRequest {
	return handler.CreateCardRequest{Name: "Jane Doe", CardNumber: number, ExpMonth: "12", ExpYear: "2030", CVV: "123"}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, body := h.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

// Scenario A: fingerprint is the last six digits; a second card with the
// same fingerprint for the same user is a duplicate.
func TestScenario_DuplicateFingerprint(t *testing.T) {
	h := newHarness(t)

	sub := h.bus.Subscribe(context.Background(), service.GroupCardStorage)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	resp, body := h.post(t, "/v1/cards", cardOwner, card("4111111111111111"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created handler.CardResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "111111", created.CardLastSix)

	key, err := h.mr.Get("card:secure:111111:key")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, time.Duration(0), h.mr.TTL("card:secure:111111:key"))
	assert.True(t, h.mr.Exists("card:secure:111111:iv"))

	select {
	case msg := <-sub.Channel():
		var event internalRedis.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, string(service.EventCardStored), event.Name)
		assert.NotContains(t, string(event.Payload), "4111111111111111")
	case <-time.After(2 * time.Second):
		t.Fatal("card stored event not published")
	}

	resp, body = h.post(t, "/v1/cards", cardOwner, card("5500000000111111"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), service.ErrDuplicateRecord.Error())
	assert.Equal(t, 1, h.cards.CountCards(cardOwner))
}

// Scenario B: the fourth card for a user exceeds the limit.
func TestScenario_CardLimit(t *testing.T) {
	h := newHarness(t)

	for _, number := range []string{"4111111111111111", "4222222222222222", "4333333333333333"} {
		resp, body := h.post(t, "/v1/cards", cardOwner, card(number))
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	}

	resp, body := h.post(t, "/v1/cards", cardOwner, card("4444444444444444"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), service.ErrLimitExceeded.Error())
	assert.False(t, h.mr.Exists("card:secure:444444:key"), "no key material for rejected cards")
	assert.Equal(t, 3, h.cards.CountCards(cardOwner))
}

func TestScenario_ConcurrentCreatesKeepInvariants(t *testing.T) {
	h := newHarness(t)

	numbers := []string{
		"4111111111111111", "4111111111111111", "4222222222222222",
		"4333333333333333", "4444444444444444", "4555555555555555",
	}

	var wg sync.WaitGroup
	for _, n := range numbers {
		wg.Add(1)
		go func(number string) {
			defer wg.Done()
			h.post(t, "/v1/cards", cardOwner, card(number))
		}(n)
	}
	wg.Wait()

	resp, body := h.request(t, http.MethodGet, "/v1/cards", cardOwner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []handler.CardResponse
	require.NoError(t, json.Unmarshal(body, &list))

	assert.LessOrEqual(t, len(list), 3)
	seen := make(map[string]bool)
	for _, c := range list {
		assert.False(t, seen[c.CardLastSix], "duplicate fingerprint %s", c.CardLastSix)
		seen[c.CardLastSix] = true
	}
}

func TestScenario_IdempotentCardCreate(t *testing.T) {
	h := newHarness(t)

	first, body1 := h.post(t, "/v1/cards", cardOwner, card("4111111111111111"), "Idempotency-Key", "abc")
	second, body2 := h.post(t, "/v1/cards", cardOwner, card("4111111111111111"), "Idempotency-Key", "abc")

	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Equal(t, http.StatusCreated, second.StatusCode)
	assert.JSONEq(t, string(body1), string(body2))
	assert.Equal(t, "true", second.Header.Get(middleware.ReplayedHeader))
	assert.EqualValues(t, 1, h.cards.CreateCallCount)
}

func startBody() handler.StartCheckoutRequest {
	return handler.StartCheckoutRequest{
		Name:           "Jane Mary Doe",
		Email:          "jane@example.com",
		Address:        "Nidakule Goztepe",
		Phone:          "+905350000000",
		IdentityNumber: "74300864791",
		City:           "Istanbul",
		Country:        "Turkey",
		ZipCode:        "34732",
		State:          "Kadikoy",
		Locale:         "EN",
		Amount:         "150.00",
		BasketItems: []handler.BasketItemRequest{
			{ID: "BI101", Name: "Day pass", Category1: "Tours", Price: "150.00"},
		},
	}
}

// Scenario C and E, followed by a confirmed reconciliation.
func TestScenario_CheckoutAndReconcile(t *testing.T) {
	h := newHarness(t)

	resp, body := h.post(t, "/v1/payments/checkout/start", "", startBody())
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	req := h.provider.LastCreateRequest()
	require.NotNil(t, req)
	assert.Equal(t, "Jane Mary", req.Buyer.Name)
	assert.Equal(t, "Doe", req.Buyer.Surname)

	payment := h.payments.OnlyPayment()
	require.NotNil(t, payment)
	assert.Equal(t, "tok-1", payment.ProviderToken)
	assert.Nil(t, payment.Status)

	// Scenario E: empty auth code leaves the payment pending.
	h.provider.SetRetrieveResult(NewRetrieveResult("tok-1", iyzico.StatusSuccess, "", iyzico.PaymentStatusSuccess))
	resp, _ = h.post(t, "/v1/payments/checkout/status", "", handler.CheckStatusRequest{Token: "tok-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, h.payments.GetPayment(payment.ID).Status)
	assert.NotEmpty(t, h.payments.GetPayment(payment.ID).ProviderResult)

	h.provider.SetRetrieveResult(NewRetrieveResult("tok-1", iyzico.StatusSuccess, "A1B2C3", iyzico.PaymentStatusSuccess))
	resp, body = h.post(t, "/v1/payments/checkout/status", "", handler.CheckStatusRequest{Token: "tok-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "A1B2C3")

	status := h.payments.GetPayment(payment.ID).Status
	require.NotNil(t, status)
	assert.True(t, *status)
}

// Scenario D: a provider error fails the call and leaves the pending payment
// without a token.
func TestScenario_ProviderErrorKeepsPayment(t *testing.T) {
	h := newHarness(t)
	h.provider.CreateError = errors.New("connection reset by peer")

	resp, body := h.post(t, "/v1/payments/checkout/start", "", startBody())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), service.ErrProviderError.Error())

	payment := h.payments.OnlyPayment()
	require.NotNil(t, payment)
	assert.Empty(t, payment.ProviderToken)
	assert.Nil(t, payment.Status)
}

func TestScenario_CardRoutesRequireCaller(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.request(t, http.MethodGet, "/v1/cards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.post(t, "/v1/cards", "", card("4111111111111111"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, h.cards.CountCards(""))

	resp, _ = h.post(t, "/v1/cards", "not-a-uuid", card("4111111111111111"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, h.cards.CountCards("not-a-uuid"))
}

// The hosted form posts the session token back to the configured callback.
func TestScenario_ProviderCallbackReconciles(t *testing.T) {
	h := newHarness(t)

	resp, body := h.post(t, "/v1/payments/checkout/start", "", startBody())
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	h.provider.SetRetrieveResult(NewRetrieveResult("tok-1", iyzico.StatusSuccess, "A1B2C3", iyzico.PaymentStatusSuccess))

	resp, err := http.PostForm(h.server.URL+"/v1/payments/checkout/callback", url.Values{"token": {"tok-1"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := h.payments.OnlyPayment().Status
	require.NotNil(t, status)
	assert.True(t, *status)
}
