package middleware

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ordersite/internal/models"
)

// UserAuth accepts any signed-in account, customer or admin.
func UserAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, models.RoleUser, models.RoleAdmin)
}

// CurrentUserID returns the id AuthGuard stored for the request.
func CurrentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok && !id.IsZero()
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(RoleKey) == models.RoleAdmin
}
