package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ordersite/internal/models"
)

type SettingsSource interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
}

// Maintenance answers 503 while maintenance mode is switched on. When the
// settings cannot be read the request goes through.
func Maintenance(settings SettingsSource) gin.HandlerFunc {
	log := logrus.WithField("component", "maintenance")
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		s, err := settings.Get(ctx)
		if err != nil {
			log.WithError(err).Warn("settings unavailable, skipping maintenance check")
			c.Next()
			return
		}
		if s.MaintenanceMode {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":       "ただいまメンテナンス中です。しばらくしてから再度アクセスしてください。",
				"maintenance": true,
			})
			return
		}
		c.Next()
	}
}
