package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

// Service exposes catalog reads and back-office product management.
type Service interface {
	List(ctx context.Context, input ListInput) (*ProductListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDetailDTO, error)
	ListBrands(ctx context.Context) ([]string, error)

	AdminList(ctx context.Context, input ListInput) (*ProductListResult, error)
	AdminGet(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*ProductDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU              string
	Name             string
	Brand            string
	Width            int
	AspectRatio      int
	RimDiameter      int
	LoadIndex        *string
	SpeedRating      *string
	Season           enums.TireSeason
	Description      *string
	Price            decimal.Decimal
	PromotionalPrice *decimal.Decimal
	PromoMinQuantity *int
	Stock            int
	ImageURL         *string
	IsActive         bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	SKU              *string
	Name             *string
	Brand            *string
	Width            *int
	AspectRatio      *int
	RimDiameter      *int
	LoadIndex        *string
	SpeedRating      *string
	Season           *enums.TireSeason
	Description      *string
	Price            *decimal.Decimal
	PromotionalPrice *decimal.Decimal
	ClearPromotion   bool
	PromoMinQuantity *int
	ImageURL         *string
	IsActive         *bool
}

type ratingReader interface {
	ApprovedSummary(ctx context.Context, productID uuid.UUID) (float64, int64, error)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	ratings  ratingReader
}

// NewService constructs a product service instance.
func NewService(repo *Repository, dbClient *db.Client, ratings ratingReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if ratings == nil {
		return nil, fmt.Errorf("rating reader required")
	}
	return &service{repo: repo, dbClient: dbClient, ratings: ratings}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ProductListResult, error) {
	input.Filter.IncludeInactive = false
	return s.list(ctx, input)
}

func (s *service) AdminList(ctx context.Context, input ListInput) (*ProductListResult, error) {
	input.Filter.IncludeInactive = true
	return s.list(ctx, input)
}

func (s *service) list(ctx context.Context, input ListInput) (*ProductListResult, error) {
	input.Page = input.Page.Normalize(DefaultPageSize)
	if input.Filter.Sort == "" {
		input.Filter.Sort = SortNewest
	}
	if input.Filter.MinPrice != nil && input.Filter.MaxPrice != nil && input.Filter.MinPrice.GreaterThan(*input.Filter.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price cannot exceed max_price")
	}

	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return &ProductListResult{
		Products: mapProductDTOs(rows),
		Meta:     input.Page.Meta(total),
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDetailDTO, error) {
	product, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	avg, count, err := s.ratings.ApprovedSummary(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rating summary")
	}
	return &ProductDetailDTO{
		ProductDTO: mapProductDTO(*product),
		Rating:     RatingSummaryDTO{Average: avg, Count: count},
	}, nil
}

func (s *service) ListBrands(ctx context.Context) ([]string, error) {
	brands, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list brands")
	}
	return brands, nil
}

func (s *service) AdminGet(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	dto := mapProductDTO(*product)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	product := &models.Product{
		SKU:              strings.TrimSpace(input.SKU),
		Name:             strings.TrimSpace(input.Name),
		Brand:            strings.TrimSpace(input.Brand),
		Width:            input.Width,
		AspectRatio:      input.AspectRatio,
		RimDiameter:      input.RimDiameter,
		LoadIndex:        trimPtr(input.LoadIndex),
		SpeedRating:      trimPtr(input.SpeedRating),
		Season:           input.Season,
		Description:      input.Description,
		Price:            input.Price,
		PromotionalPrice: input.PromotionalPrice,
		PromoMinQuantity: input.PromoMinQuantity,
		Stock:            input.Stock,
		ImageURL:         trimPtr(input.ImageURL),
		IsActive:         input.IsActive,
	}
	if product.Season == "" {
		product.Season = enums.TireSeasonAllSeason
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	dto := mapProductDTO(*product)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	var updated models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		applyUpdate(product, input)
		if err := validateProduct(product); err != nil {
			return err
		}
		if err := repo.Save(ctx, product); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
		}
		updated = *product
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := mapProductDTO(updated)
	return &dto, nil
}

// Delete hides the product. Order history keeps referencing it.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func (s *service) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*ProductDTO, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}
	if err := s.repo.AdjustStock(ctx, id, delta); err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stock cannot go below zero")
		}
		return nil, mapLookupError(err)
	}
	return s.AdminGet(ctx, id)
}

func applyUpdate(p *models.Product, in UpdateProductInput) {
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Brand != nil {
		p.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.Width != nil {
		p.Width = *in.Width
	}
	if in.AspectRatio != nil {
		p.AspectRatio = *in.AspectRatio
	}
	if in.RimDiameter != nil {
		p.RimDiameter = *in.RimDiameter
	}
	if in.LoadIndex != nil {
		p.LoadIndex = trimPtr(in.LoadIndex)
	}
	if in.SpeedRating != nil {
		p.SpeedRating = trimPtr(in.SpeedRating)
	}
	if in.Season != nil {
		p.Season = *in.Season
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.ClearPromotion {
		p.PromotionalPrice = nil
		p.PromoMinQuantity = nil
	}
	if in.PromotionalPrice != nil {
		p.PromotionalPrice = in.PromotionalPrice
	}
	if in.PromoMinQuantity != nil {
		p.PromoMinQuantity = in.PromoMinQuantity
	}
	if in.ImageURL != nil {
		p.ImageURL = trimPtr(in.ImageURL)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

func validateProduct(p *models.Product) error {
	problems := map[string]string{}
	if p.SKU == "" {
		problems["sku"] = "required"
	}
	if p.Name == "" {
		problems["name"] = "required"
	}
	if p.Brand == "" {
		problems["brand"] = "required"
	}
	if p.Width <= 0 {
		problems["width"] = "must be positive"
	}
	if p.AspectRatio <= 0 {
		problems["aspect_ratio"] = "must be positive"
	}
	if p.RimDiameter <= 0 {
		problems["rim_diameter"] = "must be positive"
	}
	if !p.Season.IsValid() {
		problems["season"] = "invalid"
	}
	if !p.Price.IsPositive() {
		problems["price"] = "must be greater than zero"
	}
	if p.PromotionalPrice != nil && !p.PromotionalPrice.IsPositive() {
		problems["promotional_price"] = "must be greater than zero"
	}
	if p.PromoMinQuantity != nil && *p.PromoMinQuantity < 1 {
		problems["promo_min_quantity"] = "must be at least 1"
	}
	if p.Stock < 0 {
		problems["stock"] = "must not be negative"
	}
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(problems)
}

func mapLookupError(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
