package pricing

import "github.com/shopspring/decimal"

// PromoInput is the catalog data the add-to-cart price depends on.
type PromoInput struct {
	Price            decimal.Decimal
	PromotionalPrice *decimal.Decimal
	PromoMinQuantity *int
}

// EffectiveUnitPrice returns the per-unit price stored on a cart line.
//
// A promotional price above the regular price together with a minimum quantity
// above one is read as a bundle total and divided across the bundle. A
// promotional price below the regular price is a plain unit discount.
// Bundle shares round to cents to match the numeric(12,2) price columns, so a
// bundle that does not divide evenly can sum a cent short of its total.
func EffectiveUnitPrice(p PromoInput) decimal.Decimal {
	promo := p.PromotionalPrice
	if promo == nil {
		return p.Price
	}
	if p.PromoMinQuantity != nil && *p.PromoMinQuantity > 1 && promo.GreaterThan(p.Price) {
		return promo.DivRound(decimal.NewFromInt(int64(*p.PromoMinQuantity)), 2)
	}
	if promo.IsPositive() && promo.LessThan(p.Price) {
		return *promo
	}
	return p.Price
}

// DefaultAddQuantity is the quantity a single add-to-cart action adds.
func DefaultAddQuantity(p PromoInput) int {
	if p.PromoMinQuantity != nil && *p.PromoMinQuantity >= 1 {
		return *p.PromoMinQuantity
	}
	return 1
}

// IsBundle reports whether the promotional price is a bundle total.
func IsBundle(p PromoInput) bool {
	return p.PromotionalPrice != nil &&
		p.PromoMinQuantity != nil &&
		*p.PromoMinQuantity > 1 &&
		p.PromotionalPrice.GreaterThan(p.Price)
}
