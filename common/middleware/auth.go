package middleware

import (
	"strings"

	"github.com/Bames007/sauni/common/auth"
	apperrors "github.com/Bames007/sauni/common/errors"
	"github.com/gin-gonic/gin"
)

const (
	SubjectContextKey = "subject"
	RoleContextKey    = "role"
)

// BearerAuth validates "Authorization: Bearer <jwt>" and stores the subject
// and role claims on the context. Failures are left for ErrorMiddleware.
func BearerAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			_ = c.Error(apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := tokens.ParseAndValidateToken(strings.TrimSpace(tokenStr), auth.TokenAccess)
		if err != nil {
			_ = c.Error(apperrors.Wrap(apperrors.ErrInvalidToken, err))
			c.Abort()
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Set(SubjectContextKey, sub)
		}
		if role, ok := claims[auth.ClaimRole].(string); ok {
			c.Set(RoleContextKey, role)
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleContextKey) != auth.RoleAdmin {
			_ = c.Error(apperrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
