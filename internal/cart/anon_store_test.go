package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestAnonStoreOrdersByAddedAt(t *testing.T) {
	hash := newFakeHashStore()
	store, err := NewAnonStore(hash, time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	owner := ForSession("s")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := StoredLine{ProductID: uuid.New(), Brand: "B", UnitPrice: decimal.NewFromInt(1), Quantity: 1, AddedAt: base.Add(time.Minute)}
	first := StoredLine{ProductID: uuid.New(), Brand: "A", UnitPrice: decimal.NewFromInt(2), Quantity: 2, AddedAt: base}

	for _, line := range []StoredLine{second, first} {
		if err := store.Put(ctx, owner, line); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	lines, err := store.Lines(ctx, owner)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(lines) != 2 || lines[0].ProductID != first.ProductID {
		t.Fatalf("expected oldest line first, got %+v", lines)
	}
	if !lines[0].UnitPrice.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected price %s", lines[0].UnitPrice)
	}
}

func TestAnonStoreRequiresSession(t *testing.T) {
	store, err := NewAnonStore(newFakeHashStore(), time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Lines(context.Background(), ForUser(uuid.New())); err == nil {
		t.Fatal("expected error without session id")
	}
	if _, err := NewAnonStore(newFakeHashStore(), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
