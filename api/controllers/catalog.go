package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mechastore/mecha-backend/api/responses"
	"github.com/mechastore/mecha-backend/api/validators"
	"github.com/mechastore/mecha-backend/internal/catalog"
	"github.com/mechastore/mecha-backend/pkg/db/models"
	pkgerrors "github.com/mechastore/mecha-backend/pkg/errors"
	"github.com/mechastore/mecha-backend/pkg/logger"
)

// CatalogListProducts handles the public product listing.
func CatalogListProducts(repo catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := repo.ListProducts(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products"))
			return
		}

		out := make([]productResponse, 0, len(products))
		for i := range products {
			out = append(out, newProductResponse(&products[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// CatalogGetProduct handles a single product lookup with its tier prices.
func CatalogGetProduct(repo catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := repo.FindProductByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductResponse(product))
	}
}

// CatalogListServices handles the public listing of bookable services.
func CatalogListServices(repo catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		services, err := repo.ListActiveServices(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list services"))
			return
		}

		out := make([]serviceResponse, 0, len(services))
		for i := range services {
			out = append(out, newServiceResponse(&services[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type productResponse struct {
	ID            uuid.UUID           `json:"id"`
	SKU           string              `json:"sku"`
	Name          string              `json:"name"`
	Description   *string             `json:"description,omitempty"`
	UnitOfMeasure *string             `json:"unit_of_measure,omitempty"`
	BasePrice     decimal.Decimal     `json:"base_price"`
	StockQuantity int                 `json:"stock_quantity"`
	TierPrices    []tierPriceResponse `json:"tier_prices"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type tierPriceResponse struct {
	MinQty    int             `json:"min_qty"`
	MaxQty    *int            `json:"max_qty,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func newProductResponse(product *models.Product) productResponse {
	tiers := make([]tierPriceResponse, 0, len(product.TierPrices))
	for _, tier := range product.TierPrices {
		tiers = append(tiers, tierPriceResponse{
			MinQty:    tier.MinQty,
			MaxQty:    tier.MaxQty,
			UnitPrice: tier.UnitPrice,
		})
	}
	return productResponse{
		ID:            product.ID,
		SKU:           product.SKU,
		Name:          product.Name,
		Description:   product.Description,
		UnitOfMeasure: product.UnitOfMeasure,
		BasePrice:     product.BasePrice,
		StockQuantity: product.StockQuantity,
		TierPrices:    tiers,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

type serviceResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newServiceResponse(offering *models.ServiceOffering) serviceResponse {
	return serviceResponse{
		ID:          offering.ID,
		Name:        offering.Name,
		Description: offering.Description,
		BasePrice:   offering.BasePrice,
		Status:      string(offering.Status),
		CreatedAt:   offering.CreatedAt,
	}
}
