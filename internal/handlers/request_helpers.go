package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ordersite/internal/middleware"
	"ordersite/internal/repository"
)

const requestTimeout = 5 * time.Second

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

func routeLog(route string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"component": "http", "route": route})
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		routeLog(route).WithField("panic", r).Error("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db Pinger) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Ping(checkCtx, readpref.Primary())
}

// RequireDatabase answers 503 when the primary cannot be reached. It guards
// the write routes.
func RequireDatabase(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			routeLog(c.FullPath()).WithError(err).Error("database ping failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
			return
		}
		c.Next()
	}
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	entry := routeLog(route).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondStoreError maps repository sentinels onto HTTP codes. notFound is the
// message used for ErrNotFound.
func respondStoreError(c *gin.Context, route string, err error, notFound string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondWithError(c, http.StatusNotFound, route, notFound)
	case errors.Is(err, repository.ErrDuplicate):
		respondWithError(c, http.StatusConflict, route, "already exists")
	case errors.Is(err, context.DeadlineExceeded):
		routeLog(route).WithError(err).Error("store timeout")
		respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
	default:
		routeLog(route).WithError(err).Error("store failure")
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "email":
				details = append(details, fmt.Sprintf("%s must be a valid email", field))
			case "min", "gte":
				details = append(details, fmt.Sprintf("%s must be at least %s", field, fieldError.Param()))
			case "max", "lte":
				details = append(details, fmt.Sprintf("%s must be at most %s", field, fieldError.Param()))
			case "oneof":
				details = append(details, fmt.Sprintf("%s must be one of %s", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// objectIDParam reads a hex id from the path; it writes the 400 itself.
func objectIDParam(c *gin.Context, route, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(c.Param(name)))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUser returns the authenticated user id or writes a 401.
func currentUser(c *gin.Context, route string) (primitive.ObjectID, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
		return primitive.NilObjectID, false
	}
	return id, true
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
