package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/auth"
	"github.com/membership-portal/backend/internal/models"
	"github.com/membership-portal/backend/pkg/response"
)

const (
	// ContextUser is the key for the authenticated *models.User in gin context.
	ContextUser = "user"
)

// UserLoader fetches the current state of the token's user on every request,
// so access changes and blocks take effect without waiting for token expiry.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// JWT returns a middleware that validates the bearer token and loads the user into context.
func JWT(tokens TokenValidator, loader UserLoader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := tokens.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		user, err := loader.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				response.Unauthorized(c, "account no longer exists")
			} else {
				logger.Error("load authenticated user", zap.String("user_id", claims.UserID.String()), zap.Error(err))
				response.Internal(c, "failed to load account")
			}
			c.Abort()
			return
		}
		if user.IsBlocked() {
			response.Forbidden(c, "Your account has been blocked")
			c.Abort()
			return
		}
		c.Set(ContextUser, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by JWT. It panics if JWT did not run.
func CurrentUser(c *gin.Context) *models.User {
	return c.MustGet(ContextUser).(*models.User)
}
