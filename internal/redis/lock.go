package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func cardLockKey(userID string) string {
	return fmt.Sprintf("lock:cards:%s", userID)
}

// AcquireCardLock attempts to acquire the card-creation lock for the given user.
// On success it returns the token that ReleaseCardLock needs; acquired is
// false if the lock is already held.
func (s *LockStore) AcquireCardLock(ctx context.Context, userID string, ttl time.Duration) (string, bool, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", false, fmt.Errorf("generate lock token: %w", err)
	}
	token := hex.EncodeToString(b)

	ok, err := s.client.SetNX(ctx, cardLockKey(userID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleaseCardLock releases the card-creation lock if it is still held with
// token. A lock that expired and was taken by another request is left alone.
func (s *LockStore) ReleaseCardLock(ctx context.Context, userID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{cardLockKey(userID)}, token).Err()
}
