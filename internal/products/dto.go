package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/internal/pricing"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
)

// ProductDTO is the catalog payload returned to shoppers and admins.
type ProductDTO struct {
	ID                 uuid.UUID        `json:"id"`
	SKU                string           `json:"sku"`
	Name               string           `json:"name"`
	Brand              string           `json:"brand"`
	Width              int              `json:"width"`
	AspectRatio        int              `json:"aspect_ratio"`
	RimDiameter        int              `json:"rim_diameter"`
	Size               string           `json:"size"`
	LoadIndex          *string          `json:"load_index,omitempty"`
	SpeedRating        *string          `json:"speed_rating,omitempty"`
	Season             string           `json:"season"`
	Description        *string          `json:"description,omitempty"`
	Price              decimal.Decimal  `json:"price"`
	PromotionalPrice   *decimal.Decimal `json:"promotional_price,omitempty"`
	PromoMinQuantity   *int             `json:"promo_min_quantity,omitempty"`
	EffectiveUnitPrice decimal.Decimal  `json:"effective_unit_price"`
	DefaultAddQuantity int              `json:"default_add_quantity"`
	IsBundle           bool             `json:"is_bundle"`
	Stock              int              `json:"stock"`
	InStock            bool             `json:"in_stock"`
	ImageURL           *string          `json:"image_url,omitempty"`
	IsActive           bool             `json:"is_active"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// RatingSummaryDTO aggregates approved reviews.
type RatingSummaryDTO struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// ProductDetailDTO adds the rating summary to a product.
type ProductDetailDTO struct {
	ProductDTO
	Rating RatingSummaryDTO `json:"rating"`
}

// ProductListResult is a page of catalog products.
type ProductListResult struct {
	Products []ProductDTO        `json:"products"`
	Meta     pagination.PageMeta `json:"meta"`
}

// PromoInput extracts the pricing inputs of a product.
func PromoInput(p models.Product) pricing.PromoInput {
	return pricing.PromoInput{
		Price:            p.Price,
		PromotionalPrice: p.PromotionalPrice,
		PromoMinQuantity: p.PromoMinQuantity,
	}
}

func mapProductDTO(p models.Product) ProductDTO {
	promo := PromoInput(p)
	return ProductDTO{
		ID:                 p.ID,
		SKU:                p.SKU,
		Name:               p.Name,
		Brand:              p.Brand,
		Width:              p.Width,
		AspectRatio:        p.AspectRatio,
		RimDiameter:        p.RimDiameter,
		Size:               p.SizeLabel(),
		LoadIndex:          p.LoadIndex,
		SpeedRating:        p.SpeedRating,
		Season:             p.Season.String(),
		Description:        p.Description,
		Price:              p.Price,
		PromotionalPrice:   p.PromotionalPrice,
		PromoMinQuantity:   p.PromoMinQuantity,
		EffectiveUnitPrice: pricing.EffectiveUnitPrice(promo),
		DefaultAddQuantity: pricing.DefaultAddQuantity(promo),
		IsBundle:           pricing.IsBundle(promo),
		Stock:              p.Stock,
		InStock:            p.Stock > 0,
		ImageURL:           p.ImageURL,
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func mapProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapProductDTO(row))
	}
	return out
}
