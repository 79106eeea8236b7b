package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

type fakeHashStore struct {
	data map[string]map[string]string
	ttls map[string]time.Duration
}

func newFakeHashStore() *fakeHashStore {
	return &fakeHashStore{data: map[string]map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeHashStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.data[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeHashStore) HSetWithTTL(_ context.Context, key, field string, value any, ttl time.Duration) error {
	if f.data[key] == nil {
		f.data[key] = map[string]string{}
	}
	f.data[key][field] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeHashStore) HDel(_ context.Context, key string, fields ...string) error {
	for _, field := range fields {
		delete(f.data[key], field)
	}
	return nil
}

func (f *fakeHashStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeHashStore) AnonCartKey(sessionID string) string {
	return "ts:cart:anon:" + sessionID
}

type fakeProducts struct {
	byID map[uuid.UUID]models.Product
}

func (f *fakeProducts) FindActiveByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.byID[id]
	if !ok || !p.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (f *fakeProducts) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := map[uuid.UUID]models.Product{}
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeProducts) add(brand string, price int64, promo *int64, minQty *int, stock int) models.Product {
	p := models.Product{
		ID:               uuid.New(),
		SKU:              uuid.NewString(),
		Name:             brand + " tire",
		Brand:            brand,
		Width:            205,
		AspectRatio:      55,
		RimDiameter:      16,
		Season:           enums.TireSeasonAllSeason,
		Price:            decimal.NewFromInt(price),
		PromoMinQuantity: minQty,
		Stock:            stock,
		IsActive:         true,
	}
	if promo != nil {
		d := decimal.NewFromInt(*promo)
		p.PromotionalPrice = &d
	}
	f.byID[p.ID] = p
	return p
}

type harness struct {
	svc      Service
	hash     *fakeHashStore
	products *fakeProducts
	repo     *Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hash := newFakeHashStore()
	anon, err := NewAnonStore(hash, 24*time.Hour)
	if err != nil {
		t.Fatalf("anon store: %v", err)
	}
	repo := NewRepository(dbtest.Open(t))
	products := &fakeProducts{byID: map[uuid.UUID]models.Product{}}
	svc, err := NewService(repo, anon, products)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &harness{svc: svc, hash: hash, products: products, repo: repo}
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestAddItemUsesBundleDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bundle := h.products.add("Apollo", 2000, int64Ptr(7000), intPtr(4), 20)
	owner := ForSession("sess-1")

	view, err := h.svc.AddItem(ctx, owner, bundle.ID, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 4 {
		t.Fatalf("expected one line of 4, got %+v", view.Lines)
	}
	if !view.Lines[0].UnitPrice.Equal(decimal.NewFromInt(1750)) {
		t.Fatalf("expected unit price 1750, got %s", view.Lines[0].UnitPrice)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(7000)) {
		t.Fatalf("expected subtotal 7000, got %s", view.Subtotal)
	}
	if view.Breakdown.SetsOf4 != 1 || view.Breakdown.Remainder != 0 {
		t.Fatalf("unexpected breakdown %+v", view.Breakdown)
	}
	if h.hash.ttls["ts:cart:anon:sess-1"] != 24*time.Hour {
		t.Fatalf("expected sliding ttl to be applied")
	}
}

func TestAddItemTwiceIncrementsSingleLine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.products.add("Michelin", 3000, int64Ptr(2800), nil, 10)
	owner := ForUser(uuid.New())

	if _, err := h.svc.AddItem(ctx, owner, p.ID, nil); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := h.svc.AddItem(ctx, owner, p.ID, intPtr(2))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 3 {
		t.Fatalf("expected one line of 3, got %+v", view.Lines)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(8400)) {
		t.Fatalf("expected subtotal 8400, got %s", view.Subtotal)
	}
	if view.ItemCount != 3 {
		t.Fatalf("expected item count 3, got %d", view.ItemCount)
	}
}

func TestAddItemRejectsZeroAndOverStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.products.add("Apollo", 2000, nil, nil, 3)
	owner := ForSession("sess")

	if _, err := h.svc.AddItem(ctx, owner, p.ID, intPtr(0)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for qty 0, got %v", err)
	}
	if _, err := h.svc.AddItem(ctx, owner, p.ID, intPtr(4)); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict above stock, got %v", err)
	}
	empty := h.products.add("Apollo", 2000, nil, nil, 0)
	if _, err := h.svc.AddItem(ctx, owner, empty.ID, nil); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected out of stock conflict, got %v", err)
	}
	if _, err := h.svc.AddItem(ctx, owner, uuid.New(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddItemRejectsNonPositiveQuantityOnExistingLine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.products.add("Michelin", 2000, nil, nil, 10)
	owner := ForSession("sess")

	if _, err := h.svc.AddItem(ctx, owner, p.ID, intPtr(5)); err != nil {
		t.Fatalf("seed line: %v", err)
	}
	for _, qty := range []int{0, -3} {
		if _, err := h.svc.AddItem(ctx, owner, p.ID, intPtr(qty)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("qty %d: expected validation error, got %v", qty, err)
		}
	}
	view, err := h.svc.Get(ctx, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 5 {
		t.Fatalf("expected line untouched at 5, got %+v", view.Lines)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("expected subtotal 10000, got %s", view.Subtotal)
	}
}

func TestSetQuantityOnDelistedProductIsStateConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.products.add("Michelin", 2000, nil, nil, 10)
	owner := ForUser(uuid.New())

	if _, err := h.svc.AddItem(ctx, owner, p.ID, intPtr(2)); err != nil {
		t.Fatalf("add: %v", err)
	}
	delisted := h.products.byID[p.ID]
	delisted.IsActive = false
	h.products.byID[p.ID] = delisted

	if _, err := h.svc.SetQuantity(ctx, owner, p.ID, 3); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	view, err := h.svc.RemoveLine(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("remove line: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", view.Lines)
	}
}

func TestSetQuantityAndRemoveOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.products.add("Apollo", 2000, nil, nil, 10)
	owner := ForUser(uuid.New())

	if _, err := h.svc.AddItem(ctx, owner, p.ID, intPtr(1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.svc.SetQuantity(ctx, owner, p.ID, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	view, err := h.svc.SetQuantity(ctx, owner, p.ID, 5)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if !view.Subtotal.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("expected 7000 + 2000 for five Apollo tires, got %s", view.Subtotal)
	}

	if _, err := h.svc.SetQuantity(ctx, owner, p.ID, 11); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected stock conflict, got %v", err)
	}

	view, err = h.svc.RemoveOne(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("remove one: %v", err)
	}
	if view.Lines[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", view.Lines[0].Quantity)
	}

	if _, err := h.svc.SetQuantity(ctx, owner, p.ID, 1); err != nil {
		t.Fatalf("set to one: %v", err)
	}
	view, err = h.svc.RemoveOne(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("remove last: %v", err)
	}
	if len(view.Lines) != 0 || !view.Subtotal.IsZero() {
		t.Fatalf("expected empty cart, got %+v", view)
	}
	if _, err := h.svc.RemoveOne(ctx, owner, p.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on missing line, got %v", err)
	}
}

func TestRemoveLineAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.products.add("Apollo", 2000, nil, nil, 10)
	b := h.products.add("Bridgestone", 3500, nil, nil, 10)
	owner := ForSession("sess-clear")

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if _, err := h.svc.AddItem(ctx, owner, id, intPtr(2)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	view, err := h.svc.RemoveLine(ctx, owner, a.ID)
	if err != nil {
		t.Fatalf("remove line: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].ProductID != b.ID {
		t.Fatalf("unexpected lines %+v", view.Lines)
	}
	if err := h.svc.Clear(ctx, owner); err != nil {
		t.Fatalf("clear: %v", err)
	}
	view, err = h.svc.Get(ctx, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestMissingOwnerIsRejected(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Get(context.Background(), Owner{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMergeAnonymousSumsQuantities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shared := h.products.add("Apollo", 2000, nil, nil, 50)
	anonOnly := h.products.add("Michelin", 4000, nil, nil, 50)
	userID := uuid.New()
	account := ForUser(userID)
	anon := ForSession("sess-merge")

	if _, err := h.svc.AddItem(ctx, account, shared.ID, intPtr(2)); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if _, err := h.svc.AddItem(ctx, anon, shared.ID, intPtr(3)); err != nil {
		t.Fatalf("seed anon shared: %v", err)
	}
	if _, err := h.svc.AddItem(ctx, anon, anonOnly.ID, intPtr(1)); err != nil {
		t.Fatalf("seed anon only: %v", err)
	}

	if err := h.svc.MergeAnonymous(ctx, userID, anon.SessionID); err != nil {
		t.Fatalf("merge: %v", err)
	}

	view, err := h.svc.Get(ctx, account)
	if err != nil {
		t.Fatalf("get account cart: %v", err)
	}
	if len(view.Lines) != 2 {
		t.Fatalf("expected two lines, got %+v", view.Lines)
	}
	quantities := map[uuid.UUID]int{}
	for _, line := range view.Lines {
		quantities[line.ProductID] = line.Quantity
	}
	if quantities[shared.ID] != 5 || quantities[anonOnly.ID] != 1 {
		t.Fatalf("unexpected merged quantities %v", quantities)
	}
	if _, ok := h.hash.data["ts:cart:anon:sess-merge"]; ok {
		t.Fatal("expected anonymous cart to be deleted")
	}

	if err := h.svc.MergeAnonymous(ctx, userID, "missing"); err != nil {
		t.Fatalf("merge of missing cart should be a no-op: %v", err)
	}
}

func TestMergeLinesKeepsAccountPrice(t *testing.T) {
	id := uuid.New()
	account := []StoredLine{{ProductID: id, Brand: "Apollo", UnitPrice: decimal.NewFromInt(1900), Quantity: 1}}
	incoming := []StoredLine{{ProductID: id, Brand: "Apollo", UnitPrice: decimal.NewFromInt(2000), Quantity: 2}}

	changed := mergeLines(account, incoming)
	if len(changed) != 1 || changed[0].Quantity != 3 {
		t.Fatalf("unexpected merge %+v", changed)
	}
	if !changed[0].UnitPrice.Equal(decimal.NewFromInt(1900)) {
		t.Fatalf("expected account price kept, got %s", changed[0].UnitPrice)
	}
}
