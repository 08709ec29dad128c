package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uoknil/tauschBar/internal/auth"
)

const (
	// ContextKeyUserID holds the key for the user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyUsername holds the key for the username in Gin context.
	ContextKeyUsername = "username"
	// ContextKeyIsModerator holds the key for moderator status in Gin context.
	ContextKeyIsModerator = "isModerator"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": fmt.Sprintf("Invalid or expired token: %v", err)})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyIsModerator, claims.IsModerator)

		c.Next()
	}
}

// ModeratorMiddleware checks for moderator privileges. Assumes AuthMiddleware
// runs first; the capability travels in the JWT claim, so no extra lookup.
func ModeratorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		isModerator, exists := c.Get(ContextKeyIsModerator)
		if !exists || !isModerator.(bool) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Moderator privileges required"})
			return
		}
		c.Next()
	}
}
