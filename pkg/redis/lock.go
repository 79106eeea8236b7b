package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 30 * time.Second

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// valueDeleter is implemented by *Client; fakes without it use GET then DEL.
type valueDeleter interface {
	DelIfValue(ctx context.Context, key, value string) (bool, error)
}

// Lock is a best-effort mutual exclusion on one key. Each holder writes a
// random token, so Release never frees a lock that expired and was taken over.
// The TTL bounds how long a crashed holder blocks others.
type Lock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token string
}

// NewLock builds a lock on key. ttl <= 0 means 30s.
func NewLock(store lockStore, key string, ttl time.Duration) (*Lock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis store required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Lock{store: store, key: key, ttl: ttl}, nil
}

// Acquire reports whether this caller now holds the lock. It never blocks.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release frees the lock if this caller still holds it. Releasing a lock that
// was never acquired, or already expired, is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	if deleter, ok := l.store.(valueDeleter); ok {
		if _, err := deleter.DelIfValue(ctx, l.key, token); err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		return nil
	}

	current, err := l.store.Get(ctx, l.key)
	if IsNil(err) || (err == nil && current != token) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock %s: %w", l.key, err)
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
