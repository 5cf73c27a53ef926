package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList tracks token ids that must no longer be trusted, e.g.
// after logout. Entries carry the token's own expiry; once that passes
// the token rejects itself and the entry is dropped, so the list never
// outgrows the set of live revoked tokens.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revocationKeyPrefix = "auth:revoked:"

type redisRevocationList struct {
	client *redis.Client
}

// NewRedisRevocationList returns a redis-backed list. Entry TTLs mirror
// the remaining token lifetime so redis prunes them itself.
func NewRedisRevocationList(client *redis.Client) RevocationList {
	return &redisRevocationList{client: client}
}

func (l *redisRevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, revocationKeyPrefix+tokenID, "1", ttl).Err()
}

func (l *redisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, revocationKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type memoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList returns an in-process list for redis-less
// deployments and tests. Expired entries are pruned on every access.
func NewMemoryRevocationList() RevocationList {
	return &memoryRevocationList{entries: make(map[string]time.Time), now: time.Now}
}

func (l *memoryRevocationList) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	if expiresAt.After(l.now()) {
		l.entries[tokenID] = expiresAt
	}
	return nil
}

func (l *memoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	_, revoked := l.entries[tokenID]
	return revoked, nil
}

func (l *memoryRevocationList) pruneLocked() {
	now := l.now()
	for id, exp := range l.entries {
		if !exp.After(now) {
			delete(l.entries, id)
		}
	}
}
