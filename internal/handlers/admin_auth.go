package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ordersite/internal/middleware"
	"ordersite/internal/models"
)

/*
POST /admin/login
- same credentials as /auth/login, but only role=admin gets a token
- no refresh token: admin sessions re-authenticate
*/
func AdminLogin(stores AuthStores, cfg TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "email and password are required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		admin, ok := authenticate(ctx, c, route, stores.Users, req)
		if !ok {
			return
		}
		if admin.Role != models.RoleAdmin {
			respondWithError(c, http.StatusUnauthorized, route, "invalid credentials")
			return
		}

		signed, err := middleware.NewAccessToken(cfg.Secret, admin.ID, admin.Email, models.RoleAdmin, cfg.AccessTTL, time.Now())
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		routeLog(route).WithField("userId", admin.ID.Hex()).Info("admin login succeeded")
		c.JSON(http.StatusOK, gin.H{
			"token":     signed,
			"expiresIn": int64(cfg.AccessTTL.Seconds()),
			"user":      admin,
		})
	}
}
