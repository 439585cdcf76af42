package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/config"
	"ordersite/internal/middleware"
	"ordersite/internal/models"
	"ordersite/internal/repository"
)

const routesSecret = "routes-secret"

func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app := &application{
		cfg:     config.Config{JWTSecret: routesSecret, AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour},
		store:   &repository.Store{},
		limiter: middleware.NewIPRateLimiter(100, 100),
	}
	r := gin.New()
	app.routes(r)
	return r
}

func TestSendEmailRequiresAdmin(t *testing.T) {
	r := testEngine(t)
	body := `{"type":"order_confirmation","to":"victim@example.com","data":{"orderNumber":"ORD-20260105-001"}}`

	send := func(auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/send-email", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))

	token, err := middleware.NewAccessToken(routesSecret, primitive.NewObjectID(), "buyer@example.com", models.RoleUser, time.Minute, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, send("Bearer "+token))
}
