package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked token ids until the token would have expired.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisBlacklist keeps revoked ids as expiring keys, shared by every
// instance of the service.
type RedisBlacklist struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisBlacklist creates a blacklist storing keys as prefix+jti.
func NewRedisBlacklist(rdb redis.Cmdable, prefix string) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb, prefix: prefix}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := b.rdb.Set(ctx, b.prefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", jti, err)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation %s: %w", jti, err)
	}
	return n > 0, nil
}

// MemoryBlacklist is a single-process blacklist used when no Redis is
// configured.
type MemoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryBlacklist creates an empty in-process blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{revoked: make(map[string]time.Time), now: time.Now}
}

func (b *MemoryBlacklist) Revoke(_ context.Context, jti string, until time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for id, exp := range b.revoked {
		if !exp.After(now) {
			delete(b.revoked, id)
		}
	}
	if until.After(now) {
		b.revoked[jti] = until
	}
	return nil
}

func (b *MemoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exp, ok := b.revoked[jti]
	return ok && exp.After(b.now()), nil
}
