package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func TestEffectiveUnitPrice(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		in      PromoInput
		price   string
		qty     int
		bundled bool
	}{
		{
			name:    "bundle total spread over min qty",
			in:      PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("7000"), PromoMinQuantity: intPtr(4)},
			price:   "1750",
			qty:     4,
			bundled: true,
		},
		{
			name:  "unit discount with min qty one",
			in:    PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("1800"), PromoMinQuantity: intPtr(1)},
			price: "1800",
			qty:   1,
		},
		{
			name:  "unit discount without min qty",
			in:    PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("1800")},
			price: "1800",
			qty:   1,
		},
		{
			name:  "no promotion",
			in:    PromoInput{Price: decimal.NewFromInt(2000)},
			price: "2000",
			qty:   1,
		},
		{
			name:  "promo above price without bundle qty falls back",
			in:    PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("7000")},
			price: "2000",
			qty:   1,
		},
		{
			name:  "promo equal to price is ignored",
			in:    PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("2000"), PromoMinQuantity: intPtr(2)},
			price: "2000",
			qty:   2,
		},
		{
			name:  "unit discount with min qty above one",
			in:    PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("1900"), PromoMinQuantity: intPtr(2)},
			price: "1900",
			qty:   2,
		},
		{
			name:    "bundle rounds to two places",
			in:      PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("7000"), PromoMinQuantity: intPtr(3)},
			price:   "2333.33",
			qty:     3,
			bundled: true,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := EffectiveUnitPrice(tc.in)
			if !got.Equal(decimal.RequireFromString(tc.price)) {
				t.Fatalf("expected unit price %s, got %s", tc.price, got)
			}
			if qty := DefaultAddQuantity(tc.in); qty != tc.qty {
				t.Fatalf("expected default qty %d, got %d", tc.qty, qty)
			}
			if IsBundle(tc.in) != tc.bundled {
				t.Fatalf("expected bundle=%v", tc.bundled)
			}
		})
	}
}

func TestEffectiveUnitPriceNeverReturnsBundleTotal(t *testing.T) {
	t.Parallel()
	in := PromoInput{Price: decimal.NewFromInt(2000), PromotionalPrice: decPtr("7000"), PromoMinQuantity: intPtr(4)}
	if EffectiveUnitPrice(in).Equal(*in.PromotionalPrice) {
		t.Fatal("bundle total must not be stored as the unit price")
	}
}
