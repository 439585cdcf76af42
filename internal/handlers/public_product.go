package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

const relatedProductLimit = 4

type CatalogStores struct {
	Products   repository.ProductRepository
	Categories repository.CategoryRepository
}

type ProductDetail struct {
	Product  *models.Product  `json:"product"`
	Category *models.Category `json:"category,omitempty"`
	Related  []models.Product `json:"related"`
}

// productFilterFromQuery reads search, category, page and limit.
func productFilterFromQuery(c *gin.Context) (repository.ProductFilter, int64, int64, error) {
	page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		return repository.ProductFilter{}, 0, 0, err
	}

	f := repository.ProductFilter{
		Search: strings.TrimSpace(c.Query("search")),
		SortBy: c.Query("sort"),
		Page:   pageWindow(page, limit),
	}
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return repository.ProductFilter{}, 0, 0, errors.New("invalid category")
		}
		f.CategoryID = &id
	}
	return f, page, limit, nil
}

/*
GET /api/products
- active products only
- ?search matches name, sku and specs; ?category is a category id
*/
func GetProducts(products repository.ProductRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products"
		defer handlePanic(c, route)

		filter, page, limit, err := productFilterFromQuery(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		filter.ActiveOnly = true

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := products.Count(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "product not found")
			return
		}
		list, err := products.List(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "product not found")
			return
		}

		c.JSON(http.StatusOK, paginated(list, page, limit, total))
	}
}

/*
GET /api/products/:id
- inactive products are hidden
- includes the category and up to four active products from the same category
*/
func GetProduct(stores CatalogStores) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := stores.Products.Get(ctx, id)
		if err != nil {
			respondStoreError(c, route, err, "product not found")
			return
		}
		if !product.IsActive {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		detail := ProductDetail{Product: product, Related: []models.Product{}}
		if product.CategoryID != nil {
			category, err := stores.Categories.Get(ctx, *product.CategoryID)
			switch {
			case err == nil:
				detail.Category = category
			case !errors.Is(err, repository.ErrNotFound):
				respondStoreError(c, route, err, "category not found")
				return
			}

			related, err := stores.Products.List(ctx, repository.ProductFilter{
				CategoryID: product.CategoryID,
				ActiveOnly: true,
				ExcludeID:  &product.ID,
				Page:       repository.Page{Limit: relatedProductLimit},
			})
			if err != nil {
				respondStoreError(c, route, err, "product not found")
				return
			}
			detail.Related = related
		}

		c.JSON(http.StatusOK, detail)
	}
}
