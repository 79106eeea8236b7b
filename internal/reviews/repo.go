package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
)

// Repository persists product reviews.
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

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ReviewStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Review{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByProduct returns a page of reviews for a product in the given status.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID, status enums.ReviewStatus, page pagination.Page) ([]models.Review, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Review{}).Where("product_id = ? AND status = ?", productID, status)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Review
	if err := base().Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// List returns reviews for the back office, optionally by status.
func (r *Repository) List(ctx context.Context, status *enums.ReviewStatus, page pagination.Page) ([]models.Review, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Review{})
		if status != nil {
			q = q.Where("status = ?", *status)
		}
		return q
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Review
	if err := base().Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset()).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

type summaryRow struct {
	Average float64
	Count   int64
}

// ApprovedSummary returns the average rating and count of approved reviews.
func (r *Repository) ApprovedSummary(ctx context.Context, productID uuid.UUID) (float64, int64, error) {
	var row summaryRow
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ? AND status = ?", productID, enums.ReviewStatusApproved).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Average, row.Count, nil
}
