package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ordersite/internal/models"
)

// SettingsStore is satisfied by the cached settings in internal/cache.
type SettingsStore interface {
	Get(ctx context.Context) (*models.SiteSettings, error)
	Save(ctx context.Context, s *models.SiteSettings) error
}

const secretMask = "********"

var settingsValidator = validator.New()

// maskSecret keeps the last four characters so admins can tell keys apart.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return secretMask
	}
	return secretMask + secret[len(secret)-4:]
}

func maskedSettings(s models.SiteSettings) models.SiteSettings {
	s.SendGridAPIKey = maskSecret(s.SendGridAPIKey)
	s.SMTPPassword = maskSecret(s.SMTPPassword)
	return s
}

// keepSecret returns the stored secret when the client echoed the masked form.
func keepSecret(incoming, stored string) string {
	incoming = strings.TrimSpace(incoming)
	if strings.HasPrefix(incoming, secretMask) {
		return stored
	}
	return incoming
}

func validateSettings(s *models.SiteSettings) string {
	emails := map[string]string{
		"contactEmail":     s.ContactEmail,
		"fromEmail":        s.FromEmail,
		"contactFromEmail": s.ContactFromEmail,
	}
	for field, value := range emails {
		if err := settingsValidator.Var(value, "omitempty,email"); err != nil {
			return field + " must be a valid email"
		}
	}
	switch {
	case s.DefaultShippingFee < 0 || s.ExpressShippingFee < 0 || s.FreeShippingThreshold < 0:
		return "fees cannot be negative"
	case s.EstimatedDeliveryDays < 0:
		return "estimatedDeliveryDays cannot be negative"
	case s.SMTPPort < 0 || s.SMTPPort > 65535:
		return "smtpPort is out of range"
	}
	return ""
}

/*
GET /admin/api/settings
- secrets come back masked
*/
func GetSettings(settings SettingsStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/settings"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		s, err := settings.Get(ctx)
		if err != nil {
			respondStoreError(c, route, err, "settings not found")
			return
		}
		c.JSON(http.StatusOK, maskedSettings(*s))
	}
}

/*
PUT /admin/api/settings
- replaces the whole document
- a masked secret sent back unchanged keeps the stored one
*/
func UpdateSettings(settings SettingsStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/settings"
		defer handlePanic(c, route)

		var req models.SiteSettings
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}
		if problem := validateSettings(&req); problem != "" {
			respondWithError(c, http.StatusBadRequest, route, problem)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		current, err := settings.Get(ctx)
		if err != nil {
			respondStoreError(c, route, err, "settings not found")
			return
		}

		req.ID = models.SiteSettingsID
		req.SendGridAPIKey = keepSecret(req.SendGridAPIKey, current.SendGridAPIKey)
		req.SMTPPassword = keepSecret(req.SMTPPassword, current.SMTPPassword)
		if req.ShippingMethods == nil {
			req.ShippingMethods = models.StringList{}
		}

		if err := settings.Save(ctx, &req); err != nil {
			respondStoreError(c, route, err, "settings not found")
			return
		}

		routeLog(route).WithField("maintenanceMode", req.MaintenanceMode).Info("settings saved")
		c.JSON(http.StatusOK, maskedSettings(req))
	}
}
