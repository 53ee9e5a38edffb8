package redis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cardpay/internal/cardcrypto"
)

// ErrKeyMaterialNotFound is returned when no escrowed key or IV exists for a fingerprint.
var ErrKeyMaterialNotFound = errors.New("key material not found")

// Key prefix for escrowed card key material.
const escrowPrefix = "card:secure:"

// EscrowStore keeps per-card key material out of the primary store.
type EscrowStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEscrowStore creates a new EscrowStore. A zero ttl stores entries without expiry.
func NewEscrowStore(client *redis.Client, ttl time.Duration) *EscrowStore {
	return &EscrowStore{client: client, ttl: ttl}
}

func escrowKey(fingerprint, part string) string {
	return fmt.Sprintf("%s%s:%s", escrowPrefix, fingerprint, part)
}

// Put stores the key and IV as two base64 entries under the fingerprint.
func (s *EscrowStore) Put(ctx context.Context, fingerprint string, km cardcrypto.KeyMaterial) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, escrowKey(fingerprint, "key"), base64.StdEncoding.EncodeToString(km.Key), s.ttl)
	pipe.Set(ctx, escrowKey(fingerprint, "iv"), base64.StdEncoding.EncodeToString(km.IV), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get loads the key material stored under the fingerprint.
func (s *EscrowStore) Get(ctx context.Context, fingerprint string) (cardcrypto.KeyMaterial, error) {
	vals, err := s.client.MGet(ctx, escrowKey(fingerprint, "key"), escrowKey(fingerprint, "iv")).Result()
	if err != nil {
		return cardcrypto.KeyMaterial{}, err
	}

	decoded := make([][]byte, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			return cardcrypto.KeyMaterial{}, ErrKeyMaterialNotFound
		}
		b, err := base64.StdEncoding.DecodeString(str)
		if err != nil {
			return cardcrypto.KeyMaterial{}, fmt.Errorf("failed to decode escrowed key material: %w", err)
		}
		decoded[i] = b
	}

	return cardcrypto.KeyMaterial{Key: decoded[0], IV: decoded[1]}, nil
}

// Delete drops the key material stored under the fingerprint.
func (s *EscrowStore) Delete(ctx context.Context, fingerprint string) error {
	return s.client.Del(ctx, escrowKey(fingerprint, "key"), escrowKey(fingerprint, "iv")).Err()
}
