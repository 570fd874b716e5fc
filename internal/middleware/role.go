package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/response"
)

// RequireAccess returns a middleware that allows only the given access types.
func RequireAccess(access ...models.AccessType) gin.HandlerFunc {
	allowed := make(map[models.AccessType]struct{}, len(access))
	for _, a := range access {
		allowed[a] = struct{}{}
	}
	return func(c *gin.Context) {
		v, ok := c.Get(ContextUser)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		user, _ := v.(*models.User)
		if user == nil {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[user.AccessType]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin allows only ADMIN accounts.
func RequireAdmin() gin.HandlerFunc {
	return RequireAccess(models.AccessAdmin)
}
