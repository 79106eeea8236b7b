package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
)

// ErrInsufficientStock is returned when a stock change would go negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository wraps product persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a product regardless of its active flag.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByID loads a product only when it is listed.
func (r *Repository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads products keyed by id. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Deactivate hides a product from the storefront.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdjustStock adds delta to stock. Negative deltas fail with ErrInsufficientStock
// instead of driving stock below zero.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

// List returns a filtered page of products plus the total match count.
func (r *Repository) List(ctx context.Context, input ListInput) ([]models.Product, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&models.Product{}), input.Filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := base().
		Order(input.Filter.Sort.orderClause()).
		Limit(input.Page.Limit).
		Offset(input.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) applyFilter(query *gorm.DB, f ListFilter) *gorm.DB {
	if !f.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(sku) LIKE ?)", like, like)
	}
	if brand := strings.TrimSpace(f.Brand); brand != "" {
		query = query.Where("brand = ?", brand)
	}
	if f.Width != nil {
		query = query.Where("width = ?", *f.Width)
	}
	if f.AspectRatio != nil {
		query = query.Where("aspect_ratio = ?", *f.AspectRatio)
	}
	if f.RimDiameter != nil {
		query = query.Where("rim_diameter = ?", *f.RimDiameter)
	}
	if f.Season != nil {
		query = query.Where("season = ?", *f.Season)
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}
	if f.InStockOnly {
		query = query.Where("stock > 0")
	}
	return query
}

// ListBrands returns the distinct brands of listed products.
func (r *Repository) ListBrands(ctx context.Context) ([]string, error) {
	var brands []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ?", true).
		Distinct("brand").
		Order("brand ASC").
		Pluck("brand", &brands).Error
	if err != nil {
		return nil, err
	}
	return brands, nil
}
