package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
)

var errAccountOwnerRequired = errors.New("account cart requires a user id")

// Repository stores account cart lines in Postgres.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Lines(ctx context.Context, owner Owner) ([]StoredLine, error) {
	if !owner.IsAccount() {
		return nil, errAccountOwnerRequired
	}
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", owner.UserID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]StoredLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, StoredLine{
			ProductID: row.ProductID,
			Brand:     row.Brand,
			UnitPrice: row.UnitPrice,
			Quantity:  row.Quantity,
			AddedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

// Put inserts the line or overwrites brand, price and quantity of the existing one.
func (r *Repository) Put(ctx context.Context, owner Owner, line StoredLine) error {
	if !owner.IsAccount() {
		return errAccountOwnerRequired
	}
	item := &models.CartItem{
		UserID:    owner.UserID,
		ProductID: line.ProductID,
		Brand:     line.Brand,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"brand", "unit_price", "quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *Repository) Remove(ctx context.Context, owner Owner, productID uuid.UUID) error {
	if !owner.IsAccount() {
		return errAccountOwnerRequired
	}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", owner.UserID, productID).
		Delete(&models.CartItem{}).Error
}

func (r *Repository) Clear(ctx context.Context, owner Owner) error {
	if !owner.IsAccount() {
		return errAccountOwnerRequired
	}
	return r.db.WithContext(ctx).Where("user_id = ?", owner.UserID).Delete(&models.CartItem{}).Error
}
