package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ordersite/internal/models"
	"ordersite/internal/repository"
)

type AnnouncementCreateRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Type     string `json:"type"`
	IsActive *bool  `json:"isActive"`
	Priority int    `json:"priority"`
}

type AnnouncementUpdateRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Type     *string `json:"type"`
	IsActive *bool   `json:"isActive"`
	Priority *int    `json:"priority"`
}

// GET /admin/api/announcements
func GetAllAnnouncements(announcements repository.AnnouncementRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/announcements"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, err := announcements.List(ctx, false)
		if err != nil {
			respondStoreError(c, route, err, "announcement not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

/*
POST /admin/api/announcements
- type defaults to info
*/
func CreateAnnouncement(announcements repository.AnnouncementRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/announcements"
		defer handlePanic(c, route)

		userID, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req AnnouncementCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		a := &models.Announcement{
			Title:     strings.TrimSpace(req.Title),
			Content:   strings.TrimSpace(req.Content),
			Type:      strings.TrimSpace(req.Type),
			IsActive:  true,
			Priority:  req.Priority,
			CreatedBy: &userID,
		}
		if a.Type == "" {
			a.Type = models.AnnouncementInfo
		}
		if !models.ValidAnnouncementType(a.Type) {
			respondWithError(c, http.StatusBadRequest, route, "invalid type")
			return
		}
		if a.Title == "" || a.Content == "" {
			respondWithError(c, http.StatusBadRequest, route, "title and content are required")
			return
		}
		if req.IsActive != nil {
			a.IsActive = *req.IsActive
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := announcements.Create(ctx, a); err != nil {
			respondStoreError(c, route, err, "announcement not found")
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

// PUT /admin/api/announcements/:id
func UpdateAnnouncement(announcements repository.AnnouncementRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/announcements/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req AnnouncementUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}
		patch := models.AnnouncementPatch{
			Title:    trimmedPtr(req.Title),
			Content:  trimmedPtr(req.Content),
			Type:     trimmedPtr(req.Type),
			IsActive: req.IsActive,
			Priority: req.Priority,
		}
		if (patch.Title != nil && *patch.Title == "") || (patch.Content != nil && *patch.Content == "") {
			respondWithError(c, http.StatusBadRequest, route, "title and content cannot be empty")
			return
		}
		if patch.Type != nil && !models.ValidAnnouncementType(*patch.Type) {
			respondWithError(c, http.StatusBadRequest, route, "invalid type")
			return
		}
		if patch == (models.AnnouncementPatch{}) {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		updated, err := announcements.Update(ctx, id, patch)
		if err != nil {
			respondStoreError(c, route, err, "announcement not found")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DELETE /admin/api/announcements/:id
func DeleteAnnouncement(announcements repository.AnnouncementRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/announcements/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := announcements.Delete(ctx, id); err != nil {
			respondStoreError(c, route, err, "announcement not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
