package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cardpay/internal/cardcrypto"
	"cardpay/internal/domain"
	"cardpay/internal/provider/iyzico"
	internalRedis "cardpay/internal/redis"
	"cardpay/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK CARD REPOSITORY
// ──────────────────────────────────────────────

// MockCardRepository is a mock implementation of CardRepository. It enforces
// the (user, last six) uniqueness the real table has.
type MockCardRepository struct {
	mu    sync.RWMutex
	cards map[string]*domain.Card

	// Counters for verification
	CreateCallCount int32
	DeleteCallCount int32

	// Error injection
	CreateError error
	CountError  error
}

// NewMockCardRepository creates a new mock card repository.
func NewMockCardRepository() *MockCardRepository {
	return &MockCardRepository{
		cards: make(map[string]*domain.Card),
	}
}

// AddCard adds a card to the mock repository.
func (m *MockCardRepository) AddCard(card *domain.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[card.ID] = card
}

func (m *MockCardRepository) Create(ctx context.Context, card *domain.Card) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.UserID == card.UserID && c.LastSix == card.LastSix {
			return repository.ErrUniqueViolation
		}
	}
	copy := *card
	m.cards[card.ID] = &copy
	return nil
}

func (m *MockCardRepository) GetByID(ctx context.Context, id string) (*domain.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, ok := m.cards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *card
	return &copy, nil
}

func (m *MockCardRepository) GetByUserAndLastSix(ctx context.Context, userID, lastSix string) (*domain.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cards {
		if c.UserID == userID && c.LastSix == lastSix {
			copy := *c
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockCardRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, c := range m.cards {
		if c.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *MockCardRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Card, 0)
	for _, c := range m.cards {
		if c.UserID == userID {
			copy := *c
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MockCardRepository) UpdateLastPayment(ctx context.Context, id string, status bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok {
		return repository.ErrNotFound
	}
	card.LastPaymentStatus = &status
	card.LastPaymentDate = &at
	return nil
}

func (m *MockCardRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[id]
	if !ok || card.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.cards, id)
	return nil
}

// CountCards returns the number of stored cards for a user.
func (m *MockCardRepository) CountCards(userID string) int {
	n, _ := m.CountByUser(context.Background(), userID)
	return n
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// Counters for verification
	CreateCallCount        int32
	AttachSessionCallCount int32
	AttachResultCallCount  int32

	// Error injection
	CreateError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *payment
	m.payments[payment.ID] = &copy
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *payment
	return &copy, nil
}

func (m *MockPaymentRepository) GetByProviderToken(ctx context.Context, token string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if token != "" && p.ProviderToken == token {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) AttachSession(ctx context.Context, id, token string, response json.RawMessage) error {
	atomic.AddInt32(&m.AttachSessionCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	payment.ProviderToken = token
	payment.ProviderResponse = response
	return nil
}

func (m *MockPaymentRepository) AttachResult(ctx context.Context, id string, result json.RawMessage, status *bool) error {
	atomic.AddInt32(&m.AttachResultCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	payment.ProviderResult = result
	if status != nil {
		s := *status
		payment.Status = &s
	}
	return nil
}

// CountPayments returns the number of stored payments.
func (m *MockPaymentRepository) CountPayments() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

// GetPayment returns the payment by ID (for test assertions).
func (m *MockPaymentRepository) GetPayment(id string) *domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.payments[id]
}

// OnlyPayment returns the single stored payment, or nil.
func (m *MockPaymentRepository) OnlyPayment() *domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.payments) != 1 {
		return nil
	}
	for _, p := range m.payments {
		return p
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	CreateCallCount int32
	CreateError     error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return fmt.Errorf("%w: users_username_key", repository.ErrUniqueViolation)
		}
		if u.Email == user.Email {
			return fmt.Errorf("%w: users_email_key", repository.ErrUniqueViolation)
		}
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

func (m *MockUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CountUsers returns the number of stored users.
func (m *MockUserRepository) CountUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// ──────────────────────────────────────────────
// MOCK KEY ESCROW
// ──────────────────────────────────────────────

// MockKeyEscrow is an in-memory KeyEscrow.
type MockKeyEscrow struct {
	mu      sync.RWMutex
	entries map[string]cardcrypto.KeyMaterial

	PutCallCount int32
	PutError     error
}

// NewMockKeyEscrow creates a new mock escrow.
func NewMockKeyEscrow() *MockKeyEscrow {
	return &MockKeyEscrow{entries: make(map[string]cardcrypto.KeyMaterial)}
}

func (m *MockKeyEscrow) Put(ctx context.Context, fingerprint string, km cardcrypto.KeyMaterial) error {
	atomic.AddInt32(&m.PutCallCount, 1)
	if m.PutError != nil {
		return m.PutError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fingerprint] = km
	return nil
}

func (m *MockKeyEscrow) Get(ctx context.Context, fingerprint string) (cardcrypto.KeyMaterial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	km, ok := m.entries[fingerprint]
	if !ok {
		return cardcrypto.KeyMaterial{}, internalRedis.ErrKeyMaterialNotFound
	}
	return km, nil
}

// Has reports whether key material is stored for the fingerprint.
func (m *MockKeyEscrow) Has(fingerprint string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[fingerprint]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	held  map[string]string
	seq   int
	Error error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]string)}
}

func (m *MockLockStore) AcquireCardLock(ctx context.Context, userID string, ttl time.Duration) (string, bool, error) {
	if m.Error != nil {
		return "", false, m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[userID]; ok {
		return "", false, nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.held[userID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseCardLock(ctx context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[userID] == token {
		delete(m.held, userID)
	}
	return nil
}

// Hold marks the user's lock as held by someone else.
func (m *MockLockStore) Hold(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[userID] = "held-elsewhere"
}

// Held reports whether the user's lock is currently held.
func (m *MockLockStore) Held(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[userID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK BROADCASTER
// ──────────────────────────────────────────────

// BroadcastCall records one Broadcast invocation.
type BroadcastCall struct {
	Name    string
	Payload any
	Groups  []string
}

// MockBroadcaster records broadcasts.
type MockBroadcaster struct {
	mu    sync.Mutex
	calls []BroadcastCall
	Error error
}

// NewMockBroadcaster creates a new mock broadcaster.
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, name string, payload any, groups []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, BroadcastCall{Name: name, Payload: payload, Groups: groups})
	return m.Error
}

// Calls returns the recorded broadcasts.
func (m *MockBroadcaster) Calls() []BroadcastCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BroadcastCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ──────────────────────────────────────────────
// MOCK CHECKOUT PROVIDER
// ──────────────────────────────────────────────

// MockCheckoutProvider completes callbacks from a goroutine, like the real client.
type MockCheckoutProvider struct {
	mu sync.Mutex

	CreateResult   *iyzico.CheckoutFormInitResult
	CreateError    error
	RetrieveResult *iyzico.CheckoutFormResult
	RetrieveError  error

	// DoubleCallback invokes every callback twice.
	DoubleCallback bool

	CreateRequests   []*iyzico.CheckoutFormRequest
	RetrieveRequests []*iyzico.RetrieveCheckoutFormRequest
}

// NewMockCheckoutProvider creates a provider that accepts every session.
func NewMockCheckoutProvider() *MockCheckoutProvider {
	return &MockCheckoutProvider{
		CreateResult: NewInitResult("tok-1", iyzico.StatusSuccess),
	}
}

func (m *MockCheckoutProvider) CreateCheckoutForm(ctx context.Context, req *iyzico.CheckoutFormRequest, done func(*iyzico.CheckoutFormInitResult, error)) {
	m.mu.Lock()
	m.CreateRequests = append(m.CreateRequests, req)
	res, err, twice := m.CreateResult, m.CreateError, m.DoubleCallback
	m.mu.Unlock()

	go func() {
		if err != nil {
			done(nil, err)
		} else {
			done(res, nil)
		}
		if twice {
			done(nil, context.Canceled)
		}
	}()
}

func (m *MockCheckoutProvider) RetrieveCheckoutForm(ctx context.Context, req *iyzico.RetrieveCheckoutFormRequest, done func(*iyzico.CheckoutFormResult, error)) {
	m.mu.Lock()
	m.RetrieveRequests = append(m.RetrieveRequests, req)
	res, err, twice := m.RetrieveResult, m.RetrieveError, m.DoubleCallback
	m.mu.Unlock()

	go func() {
		if err != nil {
			done(nil, err)
		} else {
			done(res, nil)
		}
		if twice {
			done(nil, context.Canceled)
		}
	}()
}

// SetRetrieveResult swaps the retrieve response.
func (m *MockCheckoutProvider) SetRetrieveResult(res *iyzico.CheckoutFormResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RetrieveResult = res
}

// LastCreateRequest returns the most recent create request.
func (m *MockCheckoutProvider) LastCreateRequest() *iyzico.CheckoutFormRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CreateRequests) == 0 {
		return nil
	}
	return m.CreateRequests[len(m.CreateRequests)-1]
}

// NewInitResult builds a checkout form init response with a populated Raw body.
func NewInitResult(token, status string) *iyzico.CheckoutFormInitResult {
	res := &iyzico.CheckoutFormInitResult{
		Result: iyzico.Result{Status: status},
	}
	if status == iyzico.StatusSuccess {
		res.Token = token
		res.PaymentPageURL = "https://sandbox-cpp.iyzipay.com?token=" + token
		res.TokenExpireTime = 1800
	} else {
		res.ErrorCode = "5006"
		res.ErrorMessage = "Transaction declined"
	}
	res.Raw, _ = json.Marshal(res)
	return res
}

// NewRetrieveResult builds a checkout form retrieve response with a populated Raw body.
func NewRetrieveResult(token, status, authCode, paymentStatus string) *iyzico.CheckoutFormResult {
	res := &iyzico.CheckoutFormResult{
		Result:        iyzico.Result{Status: status},
		Token:         token,
		AuthCode:      authCode,
		PaymentStatus: paymentStatus,
	}
	res.Raw, _ = json.Marshal(res)
	return res
}
