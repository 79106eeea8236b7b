package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/enums"
)

// Product is a single tire listing.
//
// PromotionalPrice is overloaded: with PromoMinQuantity above one and a value
// above Price it holds the bundle total, otherwise a per-unit sale price.
type Product struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SKU              string           `gorm:"column:sku;not null;uniqueIndex"`
	Name             string           `gorm:"column:name;not null"`
	Brand            string           `gorm:"column:brand;not null;index"`
	Width            int              `gorm:"column:width;not null"`
	AspectRatio      int              `gorm:"column:aspect_ratio;not null"`
	RimDiameter      int              `gorm:"column:rim_diameter;not null"`
	LoadIndex        *string          `gorm:"column:load_index"`
	SpeedRating      *string          `gorm:"column:speed_rating"`
	Season           enums.TireSeason `gorm:"column:season;type:tire_season;not null;default:'all_season'"`
	Description      *string          `gorm:"column:description"`
	Price            decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	PromotionalPrice *decimal.Decimal `gorm:"column:promotional_price;type:numeric(12,2)"`
	PromoMinQuantity *int             `gorm:"column:promo_min_quantity"`
	Stock            int              `gorm:"column:stock;not null;default:0"`
	ImageURL         *string          `gorm:"column:image_url"`
	IsActive         bool             `gorm:"column:is_active;not null"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// SizeLabel renders the sidewall size, e.g. 205/55R16.
func (p Product) SizeLabel() string {
	return fmt.Sprintf("%d/%dR%d", p.Width, p.AspectRatio, p.RimDiameter)
}
