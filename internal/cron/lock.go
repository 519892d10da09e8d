package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// Lock elects the single worker that runs a cron cycle.
type Lock interface {
	TryAcquire(ctx context.Context) (Lease, bool, error)
}

// Lease is one successful acquisition.
type Lease interface {
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
}

// RedisLock is a SETNX lock with a TTL so a crashed worker cannot hold the
// cycle forever.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) TryAcquire(ctx context.Context) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{lock: l, token: token}, true, nil
}

type redisLease struct {
	lock  *RedisLock
	token string
}

// Release deletes the key only while it still carries this lease's token.
// After TTL expiry another worker may own it.
func (l *redisLease) Release(ctx context.Context) error {
	if _, err := l.lock.client.DelIfEquals(ctx, l.lock.key, l.token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.lock.key, err)
	}
	return nil
}
