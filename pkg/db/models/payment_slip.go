package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/enums"
)

// PaymentSlip is an uploaded bank transfer receipt stored in GCS.
type PaymentSlip struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	StorageKey  string                  `gorm:"column:storage_key;not null;unique"`
	ContentType string                  `gorm:"column:content_type;not null"`
	SizeBytes   int64                   `gorm:"column:size_bytes;not null"`
	Status      enums.PaymentSlipStatus `gorm:"column:status;type:payment_slip_status;not null;default:'submitted'"`
	ReviewedBy  *uuid.UUID              `gorm:"column:reviewed_by;type:uuid"`
	ReviewNote  *string                 `gorm:"column:review_note"`
	ReviewedAt  *time.Time              `gorm:"column:reviewed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (s *PaymentSlip) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
