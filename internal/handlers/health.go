package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /health
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

/*
GET /ready
- 503 until the database answers a ping
*/
func Ready(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /ready"
		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			routeLog(route).WithError(err).Warn("not ready")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	}
}
