package auth

import (
	"strings"

	"gamelobby/coordinator/pkg/token"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and sets the uid if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				if uid, err := token.ParseUID(parts[1]); err == nil {
					c.Set("uid", uid)
				}
			}
		}
		c.Next()
	}
}
