package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/enums"
)

// Review is a customer rating for a product. One per user and product.
type Review struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_reviews_user_product"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_reviews_user_product"`
	AuthorName string             `gorm:"column:author_name;not null"`
	Rating     int                `gorm:"column:rating;not null"`
	Comment    string             `gorm:"column:comment;not null;default:''"`
	Status     enums.ReviewStatus `gorm:"column:status;type:review_status;not null;default:'pending'"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
