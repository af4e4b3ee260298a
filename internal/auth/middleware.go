package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/healthcard/healthcard-api/pkg/httperr"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Context keys set by the middleware
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// Middleware verifies the Bearer token and stores the caller's
// identity in the request context.
func Middleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httperr.Respond(c, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "Authorization token required"))
			c.Abort()
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			httperr.Respond(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose token carries a different role
func RequireRole(role types.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			httperr.Respond(c, types.NewForbiddenError(types.ErrCodeForbidden, "Access denied for this role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user ID from the request context
func CallerID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// CallerRole returns the authenticated role from the request context
func CallerRole(c *gin.Context) types.UserRole {
	if v, ok := c.Get(ContextRole); ok {
		if role, ok := v.(types.UserRole); ok {
			return role
		}
	}
	return ""
}
