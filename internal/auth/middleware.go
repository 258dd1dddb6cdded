package auth

import (
	"net/http"
	"strings"

	"gamelobby/coordinator/pkg/token"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware rejects requests without a valid Bearer session token and
// sets the uid for downstream handlers.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or malformed Authorization header"})
			return
		}

		uid, err := token.ParseUID(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("uid", uid)
		c.Next()
	}
}
