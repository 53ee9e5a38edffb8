package redis

import (
	"context"
	"time"

	"cardpay/internal/cardcrypto"
)

// KeyEscrow defines the interface for card key material storage.
type KeyEscrow interface {
	Put(ctx context.Context, fingerprint string, km cardcrypto.KeyMaterial) error
	Get(ctx context.Context, fingerprint string) (cardcrypto.KeyMaterial, error)
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireCardLock(ctx context.Context, userID string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseCardLock(ctx context.Context, userID, token string) error
}

// Broadcaster defines the interface for fire-and-forget event delivery.
type Broadcaster interface {
	Broadcast(ctx context.Context, name string, payload any, groups []string) error
}

// Ensure concrete types implement interfaces.
var (
	_ KeyEscrow          = (*EscrowStore)(nil)
	_ LockStoreInterface = (*LockStore)(nil)
	_ Broadcaster        = (*EventBus)(nil)
)
