package orders

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
)

// OrderItemDTO is the snapshot of one purchased product.
type OrderItemDTO struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Brand       string          `json:"brand"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PaymentSlipDTO describes an uploaded slip without exposing its storage key.
type PaymentSlipDTO struct {
	ID          uuid.UUID               `json:"id"`
	ContentType string                  `json:"content_type"`
	SizeBytes   int64                   `json:"size_bytes"`
	Status      enums.PaymentSlipStatus `json:"status"`
	ReviewNote  *string                 `json:"review_note,omitempty"`
	ReviewedAt  *time.Time              `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// OrderDTO is the order shape returned to customers and admins.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"order_number"`
	UserID          uuid.UUID         `json:"user_id"`
	Status          enums.OrderStatus `json:"status"`
	ShippingName    string            `json:"shipping_name"`
	ShippingPhone   string            `json:"shipping_phone"`
	ShippingAddress string            `json:"shipping_address"`
	Notes           *string           `json:"notes,omitempty"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	SetsOf4         int               `json:"sets_of_4"`
	Remainder       int               `json:"remainder"`
	ItemCount       int               `json:"item_count"`
	ExpiresAt       time.Time         `json:"expires_at"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	ShippedAt       *time.Time        `json:"shipped_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	ExpiredAt       *time.Time        `json:"expired_at,omitempty"`
	TrackingNumber  *string           `json:"tracking_number,omitempty"`
	Items           []OrderItemDTO    `json:"items"`
	Slips           []PaymentSlipDTO  `json:"payment_slips,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// TrackingDTO is the reduced view shown to guests tracking an order.
type TrackingDTO struct {
	OrderNumber    string            `json:"order_number"`
	Status         enums.OrderStatus `json:"status"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	ItemCount      int               `json:"item_count"`
	ExpiresAt      time.Time         `json:"expires_at"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	ShippedAt      *time.Time        `json:"shipped_at,omitempty"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// OrderList wraps an offset page of orders.
type OrderList struct {
	Orders []OrderDTO          `json:"orders"`
	Meta   pagination.PageMeta `json:"meta"`
}

// AdminOrderList wraps a keyset page of orders plus the next page cursor.
type AdminOrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// SlipDownload is an open payment slip object. Callers must close Body.
type SlipDownload struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	FileName    string
}

// MapOrder converts an order model to its DTO.
func MapOrder(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          o.Status,
		ShippingName:    o.ShippingName,
		ShippingPhone:   o.ShippingPhone,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Subtotal:        o.Subtotal,
		SetsOf4:         o.SetsOf4,
		Remainder:       o.Remainder,
		ExpiresAt:       o.ExpiresAt,
		PaidAt:          o.PaidAt,
		ShippedAt:       o.ShippedAt,
		CompletedAt:     o.CompletedAt,
		CancelledAt:     o.CancelledAt,
		ExpiredAt:       o.ExpiredAt,
		TrackingNumber:  o.TrackingNumber,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
	}
	for _, item := range o.Items {
		dto.ItemCount += item.Quantity
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Brand:       item.Brand,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	for _, slip := range o.Slips {
		dto.Slips = append(dto.Slips, mapSlip(slip))
	}
	return dto
}

func mapSlip(s models.PaymentSlip) PaymentSlipDTO {
	return PaymentSlipDTO{
		ID:          s.ID,
		ContentType: s.ContentType,
		SizeBytes:   s.SizeBytes,
		Status:      s.Status,
		ReviewNote:  s.ReviewNote,
		ReviewedAt:  s.ReviewedAt,
		CreatedAt:   s.CreatedAt,
	}
}

func mapTracking(o models.Order) TrackingDTO {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return TrackingDTO{
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		Subtotal:       o.Subtotal,
		ItemCount:      count,
		ExpiresAt:      o.ExpiresAt,
		PaidAt:         o.PaidAt,
		ShippedAt:      o.ShippedAt,
		TrackingNumber: o.TrackingNumber,
		CreatedAt:      o.CreatedAt,
	}
}
