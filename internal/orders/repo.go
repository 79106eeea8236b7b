package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.withDetails(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.withDetails(ctx).Where("order_number = ?", strings.ToUpper(strings.TrimSpace(orderNumber))).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Slips", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") })
}

// ListByUser returns one offset page of the user's orders, newest first.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.Order, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := base().
		Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListAdmin returns a keyset page of orders plus the cursor of the next page.
func (r *repository) ListAdmin(ctx context.Context, filter AdminFilter, params pagination.Params) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items")
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(shipping_name) LIKE ? OR shipping_phone LIKE ?", like, like, like)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&orders).Error; err != nil {
		return nil, nil, err
	}
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[limit-1]
		return orders, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return orders, nil, nil
}

// FindDuePending loads pending orders whose payment window closed at or before now.
func (r *repository) FindDuePending(ctx context.Context, scope ExpiryScope, now time.Time) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND expires_at <= ?", enums.OrderStatusPendingPayment, now)
	if scope.UserID != uuid.Nil {
		query = query.Where("user_id = ?", scope.UserID)
	}
	if scope.OrderID != uuid.Nil {
		query = query.Where("id = ?", scope.OrderID)
	}
	var orders []models.Order
	if err := query.Order("expires_at ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionStatus moves the order from one status to another. It reports false
// when the order was no longer in the expected status.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RestoreStock puts the quantities of items back on their products.
func (r *repository) RestoreStock(ctx context.Context, items []models.OrderItem) error {
	for _, item := range items {
		err := r.db.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) CreateSlip(ctx context.Context, slip *models.PaymentSlip) error {
	return r.db.WithContext(ctx).Create(slip).Error
}

func (r *repository) FindSlip(ctx context.Context, slipID uuid.UUID) (*models.PaymentSlip, error) {
	var slip models.PaymentSlip
	if err := r.db.WithContext(ctx).Where("id = ?", slipID).First(&slip).Error; err != nil {
		return nil, err
	}
	return &slip, nil
}

// ReviewSlip applies a decision to a slip still awaiting review.
func (r *repository) ReviewSlip(ctx context.Context, slipID uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentSlip{}).
		Where("id = ? AND status = ?", slipID, enums.PaymentSlipStatusSubmitted).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
