package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKeyPrefix = "tripdesk:trl:jti:"

// RevocationList records revoked token ids until their natural expiry.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationList shares revocations across server instances.
type RedisRevocationList struct {
	client *redis.Client
}

func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := l.client.Get(ctx, revokedTokenKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRevocationList is a process-local revocation list for single-node
// deployments and tests.
type MemoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{revoked: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, until := range l.revoked {
		if !now.Before(until) {
			delete(l.revoked, id)
		}
	}
	l.revoked[jti] = now.Add(ttl)
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.revoked[jti]
	return ok && l.now().Before(until), nil
}
