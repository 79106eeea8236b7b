package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/enums"
)

// Order is a submitted cart awaiting or past payment.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	ShippingName    string            `gorm:"column:shipping_name;not null"`
	ShippingPhone   string            `gorm:"column:shipping_phone;not null"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	Notes           *string           `gorm:"column:notes"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	SetsOf4         int               `gorm:"column:sets_of_4;not null;default:0"`
	Remainder       int               `gorm:"column:remainder;not null;default:0"`
	ExpiresAt       time.Time         `gorm:"column:expires_at;not null"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	ShippedAt       *time.Time        `gorm:"column:shipped_at"`
	CompletedAt     *time.Time        `gorm:"column:completed_at"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	ExpiredAt       *time.Time        `gorm:"column:expired_at"`
	TrackingNumber  *string           `gorm:"column:tracking_number"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Slips           []PaymentSlip     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// PaymentOverdue reports whether a pending order has passed its payment window.
func (o Order) PaymentOverdue(now time.Time) bool {
	return o.Status == enums.OrderStatusPendingPayment && !o.ExpiresAt.After(now)
}

// OrderItem snapshots a cart line at checkout.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Brand       string          `gorm:"column:brand;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
