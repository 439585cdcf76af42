package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

type CategoryCreateRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"displayOrder"`
	IsActive     *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	DisplayOrder *int    `json:"displayOrder"`
	IsActive     *bool   `json:"isActive"`
}

type CategoryWithCount struct {
	models.Category
	ProductCount int64 `json:"productCount"`
}

/*
GET /admin/api/categories
- active and inactive, each with its product count
*/
func GetAllCategories(stores CatalogStores) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/categories"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		categories, err := stores.Categories.List(ctx, false)
		if err != nil {
			respondStoreError(c, route, err, "category not found")
			return
		}
		counts, err := stores.Products.CountByCategory(ctx)
		if err != nil {
			respondStoreError(c, route, err, "category not found")
			return
		}

		out := make([]CategoryWithCount, 0, len(categories))
		for _, category := range categories {
			out = append(out, CategoryWithCount{Category: category, ProductCount: counts[category.ID]})
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	}
}

/*
POST /admin/api/categories
- names are unique
*/
func CreateCategory(categories repository.CategoryRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/categories"
		defer handlePanic(c, route)

		var req CategoryCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		exists, err := categories.NameExists(ctx, name, nil)
		if err != nil {
			respondStoreError(c, route, err, "category not found")
			return
		}
		if exists {
			respondWithError(c, http.StatusConflict, route, "category already exists")
			return
		}

		category := &models.Category{
			Name:         name,
			Description:  strings.TrimSpace(req.Description),
			DisplayOrder: req.DisplayOrder,
			IsActive:     true,
		}
		if req.IsActive != nil {
			category.IsActive = *req.IsActive
		}

		if err := categories.Create(ctx, category); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				respondWithError(c, http.StatusConflict, route, "category already exists")
				return
			}
			respondStoreError(c, route, err, "category not found")
			return
		}

		c.JSON(http.StatusCreated, category)
	}
}

// PUT /admin/api/categories/:id
func UpdateCategory(categories repository.CategoryRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		patch := models.CategoryPatch{
			Name:         trimmedPtr(req.Name),
			Description:  trimmedPtr(req.Description),
			DisplayOrder: req.DisplayOrder,
			IsActive:     req.IsActive,
		}
		if patch.Name != nil && *patch.Name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
			return
		}
		if patch == (models.CategoryPatch{}) {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if patch.Name != nil {
			exists, err := categories.NameExists(ctx, *patch.Name, &id)
			if err != nil {
				respondStoreError(c, route, err, "category not found")
				return
			}
			if exists {
				respondWithError(c, http.StatusConflict, route, "category already exists")
				return
			}
		}

		updated, err := categories.Update(ctx, id, patch)
		if err != nil {
			respondStoreError(c, route, err, "category not found")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/api/categories/:id
- products in the category stay, uncategorised
*/
func DeleteCategory(stores CatalogStores) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/categories/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := stores.Categories.Delete(ctx, id); err != nil {
			respondStoreError(c, route, err, "category not found")
			return
		}
		detached, err := stores.Products.DetachCategory(ctx, id)
		if err != nil {
			routeLog(route).WithError(err).WithField("categoryId", id.Hex()).Error("products not detached from deleted category")
		}

		routeLog(route).WithFields(logrus.Fields{"categoryId": id.Hex(), "detached": detached}).Info("category deleted")
		c.Status(http.StatusNoContent)
	}
}
