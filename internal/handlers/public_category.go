package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

// GET /api/categories
func GetCategories(categories repository.CategoryRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/categories"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := categories.List(ctx, true)
		if err != nil {
			respondStoreError(c, route, err, "category not found")
			return
		}

		routeLog(route).WithField("count", len(list)).Debug("categories listed")
		c.JSON(http.StatusOK, list)
	}
}

/*
GET /api/announcements
- active only, priority first
- a store failure is a 500; there is no fallback content
*/
func GetAnnouncements(announcements repository.AnnouncementRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/announcements"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := announcements.List(ctx, true)
		if err != nil {
			respondStoreError(c, route, err, "announcement not found")
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// PublicSettings is the part of the site settings the storefront may see.
type PublicSettings struct {
	SiteName              string            `json:"siteName"`
	SiteDescription       string            `json:"siteDescription"`
	SiteLogoURL           string            `json:"siteLogoUrl"`
	ContactEmail          string            `json:"contactEmail"`
	ContactPhone          string            `json:"contactPhone"`
	ContactAddress        string            `json:"contactAddress"`
	BusinessHours         string            `json:"businessHours"`
	MaintenanceMode       bool              `json:"maintenanceMode"`
	EstimatedDeliveryDays int               `json:"estimatedDeliveryDays"`
	ShippingMethods       models.StringList `json:"shippingMethods"`
}

// GET /api/site
func GetPublicSettings(settings SettingsStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/site"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		s, err := settings.Get(ctx)
		if err != nil {
			respondStoreError(c, route, err, "settings not found")
			return
		}
		c.JSON(http.StatusOK, PublicSettings{
			SiteName:              s.SiteName,
			SiteDescription:       s.SiteDescription,
			SiteLogoURL:           s.SiteLogoURL,
			ContactEmail:          s.ContactEmail,
			ContactPhone:          s.ContactPhone,
			ContactAddress:        s.ContactAddress,
			BusinessHours:         s.BusinessHours,
			MaintenanceMode:       s.MaintenanceMode,
			EstimatedDeliveryDays: s.DeliveryDays(),
			ShippingMethods:       s.ShippingMethods,
		})
	}
}
