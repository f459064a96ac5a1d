package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meetsync/utils"
)

// JWTAuthMiddleware guards the operator API endpoints with a bearer token.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := utils.ValidateToken(tokenString)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if sub, err := utils.ExtractSubjectFromToken(tokenString); err == nil {
			c.Set("caller", sub)
		}
		c.Next()
	}
}
