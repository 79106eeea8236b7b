package reviews

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 2000
	defaultPageSize  = 20
)

// ReviewDTO is the public shape of a review.
type ReviewDTO struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	AuthorName string    `json:"author_name"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewList is a page of reviews.
type ReviewList struct {
	Reviews []ReviewDTO         `json:"reviews"`
	Meta    pagination.PageMeta `json:"meta"`
}

// SummaryDTO aggregates approved reviews.
type SummaryDTO struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// CreateInput is a customer's review submission.
type CreateInput struct {
	Rating  int
	Comment string
}

// Service manages product reviews.
type Service interface {
	Create(ctx context.Context, userID, productID uuid.UUID, input CreateInput) (*ReviewDTO, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, page pagination.Page) (*ReviewList, error)
	Summary(ctx context.Context, productID uuid.UUID) (*SummaryDTO, error)
	AdminList(ctx context.Context, status *enums.ReviewStatus, page pagination.Page) (*ReviewList, error)
	Moderate(ctx context.Context, reviewID uuid.UUID, status enums.ReviewStatus) (*ReviewDTO, error)
	Delete(ctx context.Context, reviewID uuid.UUID) error
}

type productReader interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo     *Repository
	products productReader
	users    userReader
}

func NewService(repo *Repository, products productReader, users userReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	return &service{repo: repo, products: products, users: users}, nil
}

func (s *service) Create(ctx context.Context, userID, productID uuid.UUID, input CreateInput) (*ReviewDTO, error) {
	comment := strings.TrimSpace(input.Comment)
	problems := map[string]string{}
	if input.Rating < MinRating || input.Rating > MaxRating {
		problems["rating"] = fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)
	}
	if len(comment) > MaxCommentLength {
		problems["comment"] = fmt.Sprintf("must be at most %d characters", MaxCommentLength)
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid review").WithDetails(problems)
	}

	if _, err := s.products.FindActiveByID(ctx, productID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	review := &models.Review{
		ProductID:  productID,
		UserID:     userID,
		AuthorName: user.FullName,
		Rating:     input.Rating,
		Comment:    comment,
		Status:     enums.ReviewStatusPending,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "idx_reviews_user_product") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
	}
	dto := mapReview(*review)
	return &dto, nil
}

func (s *service) ListForProduct(ctx context.Context, productID uuid.UUID, page pagination.Page) (*ReviewList, error) {
	page = page.Normalize(defaultPageSize)
	rows, total, err := s.repo.ListByProduct(ctx, productID, enums.ReviewStatusApproved, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	return &ReviewList{Reviews: mapReviews(rows), Meta: page.Meta(total)}, nil
}

func (s *service) Summary(ctx context.Context, productID uuid.UUID) (*SummaryDTO, error) {
	avg, count, err := s.repo.ApprovedSummary(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarize reviews")
	}
	return &SummaryDTO{Average: math.Round(avg*10) / 10, Count: count}, nil
}

func (s *service) AdminList(ctx context.Context, status *enums.ReviewStatus, page pagination.Page) (*ReviewList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid review status")
	}
	page = page.Normalize(defaultPageSize)
	rows, total, err := s.repo.List(ctx, status, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	return &ReviewList{Reviews: mapReviews(rows), Meta: page.Meta(total)}, nil
}

// Moderate publishes or hides a review. Pending is not a moderation target.
func (s *service) Moderate(ctx context.Context, reviewID uuid.UUID, status enums.ReviewStatus) (*ReviewDTO, error) {
	if status != enums.ReviewStatusApproved && status != enums.ReviewStatusHidden {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved or hidden")
	}
	if err := s.repo.UpdateStatus(ctx, reviewID, status); err != nil {
		return nil, mapLookupError(err)
	}
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	dto := mapReview(*review)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, reviewID uuid.UUID) error {
	if err := s.repo.Delete(ctx, reviewID); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func mapLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
}

func mapReview(r models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         r.ID,
		ProductID:  r.ProductID,
		AuthorName: r.AuthorName,
		Rating:     r.Rating,
		Comment:    r.Comment,
		Status:     r.Status.String(),
		CreatedAt:  r.CreatedAt,
	}
}

func mapReviews(rows []models.Review) []ReviewDTO {
	out := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapReview(row))
	}
	return out
}
