package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

// RequireRoles blocks requests whose authenticated role is not in the
// allowed set. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			abortWith(c, appErrors.ErrUnauthorized)
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; !ok {
			abortWith(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
