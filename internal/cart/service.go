package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/internal/pricing"
	product "github.com/angelmondragon/tirestore-backend/internal/products"
	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

// Service exposes cart operations for anonymous and account owners.
type Service interface {
	Get(ctx context.Context, owner Owner) (*CartView, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, qty *int) (*CartView, error)
	SetQuantity(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*CartView, error)
	RemoveOne(ctx context.Context, owner Owner, productID uuid.UUID) (*CartView, error)
	RemoveLine(ctx context.Context, owner Owner, productID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, owner Owner) error
	MergeAnonymous(ctx context.Context, userID uuid.UUID, sessionID string) error
}

// CartLineView is a cart line joined with catalog details.
type CartLineView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Size      string          `json:"size"`
	ImageURL  *string         `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available bool            `json:"available"`
}

// CartView is the priced cart returned to clients.
type CartView struct {
	Lines     []CartLineView    `json:"lines"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	ItemCount int               `json:"item_count"`
}

type service struct {
	account  LineStore
	anon     LineStore
	products productReader
	now      func() time.Time
}

// NewService builds a cart service over the account and anonymous stores.
func NewService(account LineStore, anon LineStore, products productReader) (Service, error) {
	if account == nil {
		return nil, fmt.Errorf("account cart store required")
	}
	if anon == nil {
		return nil, fmt.Errorf("anonymous cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{account: account, anon: anon, products: products, now: time.Now}, nil
}

func (s *service) storeFor(owner Owner) (LineStore, error) {
	if !owner.valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session or login required")
	}
	if owner.IsAccount() {
		return s.account, nil
	}
	return s.anon, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*CartView, error) {
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	lines, err := store.Lines(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return s.view(ctx, lines)
}

// AddItem adds qty units, or the product's default add quantity when qty is nil.
// An existing line is incremented and repriced at the current effective price.
func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, qty *int) (*CartView, error) {
	if qty != nil && *qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	p, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock")
	}

	promo := product.PromoInput(*p)
	add := pricing.DefaultAddQuantity(promo)
	if qty != nil {
		add = *qty
	}

	lines, err := store.Lines(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	line := StoredLine{ProductID: p.ID, AddedAt: s.now().UTC()}
	if existing, ok := findLine(lines, productID); ok {
		line = existing
	}
	line.Brand = p.Brand
	line.UnitPrice = pricing.EffectiveUnitPrice(promo)
	line.Quantity += add

	if err := validateAgainstStock(line, p.Stock); err != nil {
		return nil, err
	}
	if err := store.Put(ctx, owner, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart line")
	}
	return s.Get(ctx, owner)
}

func (s *service) SetQuantity(ctx context.Context, owner Owner, productID uuid.UUID, qty int) (*CartView, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	lines, err := store.Lines(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	line, ok := findLine(lines, productID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	// Catalog deletes are soft, so a missing active product means it was delisted.
	p, err := s.loadProduct(ctx, productID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is no longer available; remove it from the cart")
	}
	if err != nil {
		return nil, err
	}
	line.Quantity = qty
	if err := validateAgainstStock(line, p.Stock); err != nil {
		return nil, err
	}
	if err := store.Put(ctx, owner, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart line")
	}
	return s.Get(ctx, owner)
}

// RemoveOne decrements the line, deleting it instead of going below one.
func (s *service) RemoveOne(ctx context.Context, owner Owner, productID uuid.UUID) (*CartView, error) {
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	lines, err := store.Lines(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	line, ok := findLine(lines, productID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if line.Quantity <= 1 {
		err = store.Remove(ctx, owner, productID)
	} else {
		line.Quantity--
		err = store.Put(ctx, owner, line)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart line")
	}
	return s.Get(ctx, owner)
}

func (s *service) RemoveLine(ctx context.Context, owner Owner, productID uuid.UUID) (*CartView, error) {
	store, err := s.storeFor(owner)
	if err != nil {
		return nil, err
	}
	if err := store.Remove(ctx, owner, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line")
	}
	return s.Get(ctx, owner)
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	store, err := s.storeFor(owner)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx, owner); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// MergeAnonymous folds an anonymous cart into the account cart by summing
// quantities per product, then drops the anonymous cart.
func (s *service) MergeAnonymous(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	anonOwner := ForSession(sessionID)
	anonLines, err := s.anon.Lines(ctx, anonOwner)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load anonymous cart")
	}
	if len(anonLines) == 0 {
		return nil
	}

	owner := ForUser(userID)
	accountLines, err := s.account.Lines(ctx, owner)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account cart")
	}
	for _, merged := range mergeLines(accountLines, anonLines) {
		if err := s.account.Put(ctx, owner, merged); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart line")
		}
	}
	if err := s.anon.Clear(ctx, anonOwner); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop anonymous cart")
	}
	return nil
}

// mergeLines returns the account lines that change when incoming lines are
// added. Matching products sum quantities and keep the account line's price.
func mergeLines(account, incoming []StoredLine) []StoredLine {
	index := make(map[uuid.UUID]int, len(account))
	for i, line := range account {
		index[line.ProductID] = i
	}
	changed := make([]StoredLine, 0, len(incoming))
	for _, line := range incoming {
		if i, ok := index[line.ProductID]; ok {
			merged := account[i]
			merged.Quantity += line.Quantity
			account[i] = merged
			changed = append(changed, merged)
			continue
		}
		index[line.ProductID] = len(account)
		account = append(account, line)
		changed = append(changed, line)
	}
	return changed
}

func (s *service) view(ctx context.Context, lines []StoredLine) (*CartView, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart products")
	}

	view := &CartView{Lines: make([]CartLineView, 0, len(lines))}
	priced := ToPricingLines(lines)
	for i, line := range lines {
		lv := CartLineView{
			ProductID: line.ProductID,
			Brand:     line.Brand,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: pricing.LineTotal(priced[i]),
		}
		if p, ok := catalog[line.ProductID]; ok {
			lv.Name = p.Name
			lv.Size = p.SizeLabel()
			lv.ImageURL = p.ImageURL
			lv.Available = p.IsActive && p.Stock >= line.Quantity
		}
		view.Lines = append(view.Lines, lv)
		view.ItemCount += line.Quantity
	}
	view.Subtotal = pricing.ComputeSubtotal(priced)
	view.Breakdown = pricing.ComputeBreakdown(priced)
	return view, nil
}

// ToPricingLines converts stored lines into pricing engine input.
func ToPricingLines(lines []StoredLine) []pricing.CartLine {
	out := make([]pricing.CartLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, pricing.CartLine{
			ProductID: line.ProductID,
			Brand:     line.Brand,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return out
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.products.FindActiveByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return p, nil
}

func validateAgainstStock(line StoredLine, stock int) error {
	if err := pricing.ValidateLine(ToPricingLines([]StoredLine{line})[0]); err != nil {
		return err
	}
	if line.Quantity > stock {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "requested quantity exceeds stock").
			WithDetails(map[string]any{"available": stock, "requested": line.Quantity})
	}
	return nil
}

func findLine(lines []StoredLine, productID uuid.UUID) (StoredLine, bool) {
	for _, line := range lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return StoredLine{}, false
}
