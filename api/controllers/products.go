package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/api/responses"
	"github.com/angelmondragon/tirestore-backend/api/validators"
	productsvc "github.com/angelmondragon/tirestore-backend/internal/products"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
)

// ProductList serves the public catalog with filters, sorting and offset paging.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		input, err := parseProductListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ProductBrands(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		brands, err := svc.ListBrands(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"brands": brands})
	}
}

func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminProductList includes inactive products.
func AdminProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		input, err := parseProductListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AdminList(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.AdminGet(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type createProductRequest struct {
	SKU              string           `json:"sku" validate:"required,max=64"`
	Name             string           `json:"name" validate:"required,max=200"`
	Brand            string           `json:"brand" validate:"required,max=80"`
	Width            int              `json:"width" validate:"required,min=100,max=400"`
	AspectRatio      int              `json:"aspect_ratio" validate:"required,min=20,max=100"`
	RimDiameter      int              `json:"rim_diameter" validate:"required,min=10,max=26"`
	LoadIndex        *string          `json:"load_index,omitempty" validate:"omitempty,max=8"`
	SpeedRating      *string          `json:"speed_rating,omitempty" validate:"omitempty,max=4"`
	Season           string           `json:"season" validate:"required"`
	Description      *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price            decimal.Decimal  `json:"price"`
	PromotionalPrice *decimal.Decimal `json:"promotional_price,omitempty"`
	PromoMinQuantity *int             `json:"promo_min_quantity,omitempty" validate:"omitempty,min=1"`
	Stock            int              `json:"stock" validate:"min=0"`
	ImageURL         *string          `json:"image_url,omitempty" validate:"omitempty,url,max=1000"`
	IsActive         *bool            `json:"is_active,omitempty"`
}

func (req createProductRequest) toInput() (productsvc.CreateProductInput, error) {
	season, err := enums.ParseTireSeason(strings.TrimSpace(req.Season))
	if err != nil {
		return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid season")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return productsvc.CreateProductInput{
		SKU:              req.SKU,
		Name:             req.Name,
		Brand:            req.Brand,
		Width:            req.Width,
		AspectRatio:      req.AspectRatio,
		RimDiameter:      req.RimDiameter,
		LoadIndex:        req.LoadIndex,
		SpeedRating:      req.SpeedRating,
		Season:           season,
		Description:      req.Description,
		Price:            req.Price,
		PromotionalPrice: req.PromotionalPrice,
		PromoMinQuantity: req.PromoMinQuantity,
		Stock:            req.Stock,
		ImageURL:         req.ImageURL,
		IsActive:         active,
	}, nil
}

func AdminProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	SKU              *string          `json:"sku,omitempty" validate:"omitempty,min=1,max=64"`
	Name             *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Brand            *string          `json:"brand,omitempty" validate:"omitempty,min=1,max=80"`
	Width            *int             `json:"width,omitempty" validate:"omitempty,min=100,max=400"`
	AspectRatio      *int             `json:"aspect_ratio,omitempty" validate:"omitempty,min=20,max=100"`
	RimDiameter      *int             `json:"rim_diameter,omitempty" validate:"omitempty,min=10,max=26"`
	LoadIndex        *string          `json:"load_index,omitempty" validate:"omitempty,max=8"`
	SpeedRating      *string          `json:"speed_rating,omitempty" validate:"omitempty,max=4"`
	Season           *string          `json:"season,omitempty"`
	Description      *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	PromotionalPrice *decimal.Decimal `json:"promotional_price,omitempty"`
	ClearPromotion   bool             `json:"clear_promotion,omitempty"`
	PromoMinQuantity *int             `json:"promo_min_quantity,omitempty" validate:"omitempty,min=1"`
	ImageURL         *string          `json:"image_url,omitempty" validate:"omitempty,max=1000"`
	IsActive         *bool            `json:"is_active,omitempty"`
}

func (req updateProductRequest) toInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		SKU:              req.SKU,
		Name:             req.Name,
		Brand:            req.Brand,
		Width:            req.Width,
		AspectRatio:      req.AspectRatio,
		RimDiameter:      req.RimDiameter,
		LoadIndex:        req.LoadIndex,
		SpeedRating:      req.SpeedRating,
		Description:      req.Description,
		Price:            req.Price,
		PromotionalPrice: req.PromotionalPrice,
		ClearPromotion:   req.ClearPromotion,
		PromoMinQuantity: req.PromoMinQuantity,
		ImageURL:         req.ImageURL,
		IsActive:         req.IsActive,
	}
	if req.Season != nil {
		season, err := enums.ParseTireSeason(strings.TrimSpace(*req.Season))
		if err != nil {
			return productsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid season")
		}
		input.Season = &season
	}
	return input, nil
}

func AdminProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminProductDelete soft-deletes by deactivating the product.
func AdminProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func AdminProductAdjustStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("product"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.AdjustStock(r.Context(), id, body.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func parseProductListInput(r *http.Request) (productsvc.ListInput, error) {
	page, err := pageFromQuery(r, productsvc.DefaultPageSize)
	if err != nil {
		return productsvc.ListInput{}, err
	}

	sortOrder, err := productsvc.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		return productsvc.ListInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort").WithDetails(map[string]any{"field": "sort"})
	}

	filter := productsvc.ListFilter{
		Brand:       strings.TrimSpace(r.URL.Query().Get("brand")),
		InStockOnly: validators.ParseQueryBool(r, "in_stock"),
		Sort:        sortOrder,
	}
	if q := validators.OptionalQueryString(r, "q", 100); q != nil {
		filter.Query = *q
	}

	if filter.Width, err = validators.ParseOptionalQueryInt(r, "width"); err != nil {
		return productsvc.ListInput{}, err
	}
	if filter.AspectRatio, err = validators.ParseOptionalQueryInt(r, "aspect_ratio"); err != nil {
		return productsvc.ListInput{}, err
	}
	if filter.RimDiameter, err = validators.ParseOptionalQueryInt(r, "rim"); err != nil {
		return productsvc.ListInput{}, err
	}
	if filter.MinPrice, err = validators.ParseOptionalQueryDecimal(r, "min_price"); err != nil {
		return productsvc.ListInput{}, err
	}
	if filter.MaxPrice, err = validators.ParseOptionalQueryDecimal(r, "max_price"); err != nil {
		return productsvc.ListInput{}, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("season")); raw != "" {
		season, err := enums.ParseTireSeason(raw)
		if err != nil {
			return productsvc.ListInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid season").WithDetails(map[string]any{"field": "season"})
		}
		filter.Season = &season
	}

	return productsvc.ListInput{Filter: filter, Page: page}, nil
}
