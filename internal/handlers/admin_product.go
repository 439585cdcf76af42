package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

// checkCategory answers 400 when a referenced category does not exist.
func checkCategory(ctx context.Context, c *gin.Context, route string, categories repository.CategoryRepository, id *primitive.ObjectID) bool {
	if id == nil {
		return true
	}
	if _, err := categories.Get(ctx, *id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(c, http.StatusBadRequest, route, "category not found")
			return false
		}
		respondStoreError(c, route, err, "category not found")
		return false
	}
	return true
}

func checkSKU(ctx context.Context, c *gin.Context, route string, products repository.ProductRepository, sku string, exclude *primitive.ObjectID) bool {
	exists, err := products.SKUExists(ctx, sku, exclude)
	if err != nil {
		respondStoreError(c, route, err, "product not found")
		return false
	}
	if exists {
		respondWithError(c, http.StatusConflict, route, "sku already exists")
		return false
	}
	return true
}

/*
GET /admin/api/products
- inactive products included unless ?isActive=true
*/
func GetAllProducts(products repository.ProductRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products"
		defer handlePanic(c, route)

		filter, page, limit, err := productFilterFromQuery(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		filter.ActiveOnly = strings.EqualFold(strings.TrimSpace(c.Query("isActive")), "true")

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

// GET /admin/api/products/:id
func GetAdminProduct(products repository.ProductRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, err := products.Get(ctx, id)
		if err != nil {
			respondStoreError(c, route, err, "product not found")
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

/*
POST /admin/api/products
- sku and name required, sku unique
- moq defaults to 1, isActive to true
*/
func CreateProduct(stores CatalogStores, images ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"
		defer handlePanic(c, route)

		input, err := parseProductRequest(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if input.SKU == "" || input.Name == "" {
			respondWithError(c, http.StatusBadRequest, route, "sku and name are required")
			return
		}
		if input.MinOrderQtySet && input.MinOrderQty < 1 {
			respondWithError(c, http.StatusBadRequest, route, "moq must be at least 1")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		if !checkSKU(ctx, c, route, stores.Products, input.SKU, nil) ||
			!checkCategory(ctx, c, route, stores.Categories, input.CategoryID) {
			return
		}

		imageURL, err := storeUpload(ctx, images, input.ImageFile)
		if err != nil {
			respondWithError(c, uploadErrorStatus(err), route, err.Error())
			return
		}
		if imageURL == "" && !input.RemoveImage {
			imageURL = input.ImageURL
		}

		product := &models.Product{
			SKU:         input.SKU,
			Name:        input.Name,
			Description: input.Description,
			Specs:       input.Specs,
			CategoryID:  input.CategoryID,
			ImageURL:    imageURL,
			MinOrderQty: 1,
			IsActive:    true,
		}
		if input.MinOrderQtySet {
			product.MinOrderQty = input.MinOrderQty
		}
		if input.IsActiveSet {
			product.IsActive = input.IsActive
		}

		if err := stores.Products.Create(ctx, product); err != nil {
			if input.ImageFile != nil {
				discardImage(ctx, images, route, imageURL)
			}
			if errors.Is(err, repository.ErrDuplicate) {
				respondWithError(c, http.StatusConflict, route, "sku already exists")
				return
			}
			respondStoreError(c, route, err, "product not found")
			return
		}

		routeLog(route).WithFields(logrus.Fields{"productId": product.ID.Hex(), "sku": product.SKU}).Info("product created")
		c.JSON(http.StatusCreated, product)
	}
}

/*
PUT /admin/api/products/:id
- partial update; a replaced or removed image is deleted from storage
*/
func UpdateProduct(stores CatalogStores, images ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		input, err := parseProductRequest(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if (input.SKUSet && input.SKU == "") || (input.NameSet && input.Name == "") {
			respondWithError(c, http.StatusBadRequest, route, "sku and name cannot be empty")
			return
		}
		if input.MinOrderQtySet && input.MinOrderQty < 1 {
			respondWithError(c, http.StatusBadRequest, route, "moq must be at least 1")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		current, err := stores.Products.Get(ctx, id)
		if err != nil {
			respondStoreError(c, route, err, "product not found")
			return
		}
		if input.SKUSet && input.SKU != current.SKU && !checkSKU(ctx, c, route, stores.Products, input.SKU, &id) {
			return
		}
		if input.CategoryIDSet && !checkCategory(ctx, c, route, stores.Categories, input.CategoryID) {
			return
		}

		uploaded, err := storeUpload(ctx, images, input.ImageFile)
		if err != nil {
			respondWithError(c, uploadErrorStatus(err), route, err.Error())
			return
		}

		patch := input.patch(uploaded)
		updated, err := stores.Products.Update(ctx, id, patch)
		if err != nil {
			discardImage(ctx, images, route, uploaded)
			if errors.Is(err, repository.ErrDuplicate) {
				respondWithError(c, http.StatusConflict, route, "sku already exists")
				return
			}
			respondStoreError(c, route, err, "product not found")
			return
		}

		if current.ImageURL != "" && current.ImageURL != updated.ImageURL {
			discardImage(ctx, images, route, current.ImageURL)
		}

		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/api/products/:id
- the product image goes with it
- past order lines keep their name and sku snapshot
*/
func DeleteProduct(products repository.ProductRepository, images ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		deleted, err := products.Delete(ctx, id)
		if err != nil {
			respondStoreError(c, route, err, "product not found")
			return
		}
		discardImage(ctx, images, route, deleted.ImageURL)

		routeLog(route).WithFields(logrus.Fields{"productId": id.Hex(), "sku": deleted.SKU}).Info("product deleted")
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}
