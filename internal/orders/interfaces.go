package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/internal/ledger"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
)

// Repository defines persistence operations for orders, their items and slips.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.Order, int64, error)
	ListAdmin(ctx context.Context, filter AdminFilter, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	FindDuePending(ctx context.Context, scope ExpiryScope, now time.Time) ([]models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	RestoreStock(ctx context.Context, items []models.OrderItem) error
	CreateSlip(ctx context.Context, slip *models.PaymentSlip) error
	FindSlip(ctx context.Context, slipID uuid.UUID) (*models.PaymentSlip, error)
	ReviewSlip(ctx context.Context, slipID uuid.UUID, updates map[string]any) (bool, error)
}

// ExpiryScope narrows the lazy expiration sweep. Zero values mean no filter.
type ExpiryScope struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
}

// AdminFilter narrows the back-office order list.
type AdminFilter struct {
	Status *enums.OrderStatus
	Query  string
}

type ledgerRecorder interface {
	RecordOrderIncome(ctx context.Context, input ledger.OrderIncomeInput) error
}

type eventPublisher interface {
	Publish(ctx context.Context, evt pubsub.Event) error
}

type orderMetrics interface {
	AddExpired(n int)
	IncTransition(status string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
