package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ordersite/internal/mail"
	"ordersite/internal/models"
	"ordersite/internal/repository"
)

/*
GET /admin/api/notifications
- newest first; ?type= and ?status=sent|failed filter
*/
func GetNotificationLogs(logs repository.NotificationLogRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/notifications"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := repository.NotificationLogFilter{Page: pageWindow(page, limit)}
		if kind := strings.TrimSpace(c.Query("type")); kind != "" {
			if !mail.Type(kind).Valid() {
				respondWithError(c, http.StatusBadRequest, route, "invalid type")
				return
			}
			filter.Type = kind
		}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			if status != models.NotificationSent && status != models.NotificationFailed {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			filter.Status = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		total, err := logs.Count(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "log not found")
			return
		}
		list, err := logs.List(ctx, filter)
		if err != nil {
			respondStoreError(c, route, err, "log not found")
			return
		}
		c.JSON(http.StatusOK, paginated(list, page, limit, total))
	}
}
