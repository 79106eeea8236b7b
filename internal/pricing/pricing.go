// Package pricing holds the cart pricing rules. Every function here is pure:
// callers fetch catalog data and pass validated lines in.
package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// PromoBrand is the only brand eligible for the set-of-4 price.
	PromoBrand = "Apollo"
	// SetSize is the number of tires in a discounted set.
	SetSize = 4
)

// SetPrice is the flat price charged for each full set of PromoBrand tires.
var SetPrice = decimal.NewFromInt(7000)

// CartLine is one product entry in a cart.
type CartLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Brand     string          `json:"brand"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Breakdown is the display-only split of a cart into sets of 4 and loose tires.
type Breakdown struct {
	SetsOf4   int    `json:"sets_of_4"`
	Remainder int    `json:"remainder"`
	Display   string `json:"display"`
}

// LineTotal returns what a single line contributes to the subtotal.
func LineTotal(line CartLine) decimal.Decimal {
	qty := line.Quantity
	if line.Brand == PromoBrand && qty >= SetSize {
		sets := qty / SetSize
		remainder := qty % SetSize
		return SetPrice.Mul(decimal.NewFromInt(int64(sets))).
			Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(remainder))))
	}
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// ComputeSubtotal sums LineTotal over lines. An empty cart costs zero.
func ComputeSubtotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineTotal(line))
	}
	return total
}

// ComputeBreakdown splits the total quantity of every line, whatever the brand,
// into sets of 4 and a remainder.
func ComputeBreakdown(lines []CartLine) Breakdown {
	totalQty := 0
	for _, line := range lines {
		totalQty += line.Quantity
	}
	sets := totalQty / SetSize
	remainder := totalQty % SetSize
	return Breakdown{
		SetsOf4:   sets,
		Remainder: remainder,
		Display:   fmt.Sprintf("%d Set(s) + %d Tire(s)", sets, remainder),
	}
}
