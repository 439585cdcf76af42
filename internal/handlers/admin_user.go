package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

type RoleUpdateRequest struct {
	Role string `json:"role" binding:"required,oneof=admin user"`
}

/*
GET /admin/api/users
- ?search= matches email, name and company; ?role= filters
*/
func GetAllUsers(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/users"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		filter := repository.UserFilter{
			Search: strings.TrimSpace(c.Query("search")),
			Page:   pageWindow(page, limit),
		}
		if role := strings.TrimSpace(c.Query("role")); role != "" {
			if !models.ValidRole(role) {
				respondWithError(c, http.StatusBadRequest, route, "invalid role")
				return
			}
			filter.Role = role
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := users.Count(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "user not found")
			return
		}
		list, err := users.List(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "user not found")
			return
		}
		c.JSON(http.StatusOK, paginated(list, page, limit, total))
	}
}

// GET /admin/api/users/:id
func GetAdminUser(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/users/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		user, err := users.Get(ctx, id)
		if err != nil {
			respondStoreError(c, route, err, "user not found")
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// PUT /admin/api/users/:id
func UpdateAdminUser(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/users/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req ProfileUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		patch := req.patch()
		if patch.FullName != nil && *patch.FullName == "" {
			respondWithError(c, http.StatusBadRequest, route, "fullName cannot be empty")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := users.UpdateProfile(ctx, id, patch)
		if err != nil {
			respondStoreError(c, route, err, "user not found")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

/*
PUT /admin/api/users/:id/role
- admins cannot change their own role
*/
func UpdateUserRole(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/users/:id/role"
		defer handlePanic(c, route)

		self, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req RoleUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if id == self {
			respondWithError(c, http.StatusConflict, route, "cannot change own role")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := users.UpdateRole(ctx, id, req.Role)
		if err != nil {
			respondStoreError(c, route, err, "user not found")
			return
		}

		routeLog(route).WithFields(logrus.Fields{"userId": id.Hex(), "role": req.Role, "by": self.Hex()}).Info("role changed")
		c.JSON(http.StatusOK, updated)
	}
}
