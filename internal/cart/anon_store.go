package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var errSessionOwnerRequired = errors.New("anonymous cart requires a session id")

type hashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetWithTTL(ctx context.Context, key, field string, value any, ttl time.Duration) error
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
	AnonCartKey(sessionID string) string
}

// AnonStore keeps anonymous carts in a Redis hash, one field per product.
// Every write slides the key's TTL forward.
type AnonStore struct {
	store hashStore
	ttl   time.Duration
}

func NewAnonStore(store hashStore, ttl time.Duration) (*AnonStore, error) {
	if store == nil {
		return nil, errors.New("hash store required")
	}
	if ttl <= 0 {
		return nil, errors.New("anonymous cart ttl must be positive")
	}
	return &AnonStore{store: store, ttl: ttl}, nil
}

func (a *AnonStore) Lines(ctx context.Context, owner Owner) ([]StoredLine, error) {
	if owner.SessionID == "" {
		return nil, errSessionOwnerRequired
	}
	fields, err := a.store.HGetAll(ctx, a.store.AnonCartKey(owner.SessionID))
	if err != nil {
		return nil, err
	}
	lines := make([]StoredLine, 0, len(fields))
	for field, raw := range fields {
		var line StoredLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", field, err)
		}
		if line.ProductID == uuid.Nil {
			line.ProductID, err = uuid.Parse(field)
			if err != nil {
				return nil, fmt.Errorf("decode cart field %s: %w", field, err)
			}
		}
		lines = append(lines, line)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].ProductID.String() < lines[j].ProductID.String()
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines, nil
}

func (a *AnonStore) Put(ctx context.Context, owner Owner, line StoredLine) error {
	if owner.SessionID == "" {
		return errSessionOwnerRequired
	}
	payload, err := json.Marshal(line)
	if err != nil {
		return err
	}
	return a.store.HSetWithTTL(ctx, a.store.AnonCartKey(owner.SessionID), line.ProductID.String(), string(payload), a.ttl)
}

func (a *AnonStore) Remove(ctx context.Context, owner Owner, productID uuid.UUID) error {
	if owner.SessionID == "" {
		return errSessionOwnerRequired
	}
	return a.store.HDel(ctx, a.store.AnonCartKey(owner.SessionID), productID.String())
}

func (a *AnonStore) Clear(ctx context.Context, owner Owner) error {
	if owner.SessionID == "" {
		return errSessionOwnerRequired
	}
	return a.store.Del(ctx, a.store.AnonCartKey(owner.SessionID))
}
