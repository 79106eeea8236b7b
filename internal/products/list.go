package product

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
)

// DefaultPageSize is the catalog page size when none is requested.
const DefaultPageSize = 24

// SortOrder names a supported catalog ordering.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortName      SortOrder = "name"
)

// ParseSortOrder maps a query value to a SortOrder, defaulting to newest.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(strings.TrimSpace(value)) {
	case "", SortNewest:
		return SortNewest, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	case SortName:
		return SortName, nil
	default:
		return "", fmt.Errorf("invalid sort %q", value)
	}
}

func (s SortOrder) orderClause() string {
	switch s {
	case SortPriceAsc:
		return "price ASC, id ASC"
	case SortPriceDesc:
		return "price DESC, id ASC"
	case SortName:
		return "name ASC, id ASC"
	default:
		return "created_at DESC, id DESC"
	}
}

// ListFilter describes the catalog browse knobs.
type ListFilter struct {
	Query           string
	Brand           string
	Width           *int
	AspectRatio     *int
	RimDiameter     *int
	Season          *enums.TireSeason
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	InStockOnly     bool
	IncludeInactive bool
	Sort            SortOrder
}

// ListInput pairs filters with offset paging.
type ListInput struct {
	Filter ListFilter
	Page   pagination.Page
}
