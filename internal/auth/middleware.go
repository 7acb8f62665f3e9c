package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sanitization-status-backend/internal/engine"
)

const (
	contextKeyRole    = "auth.role"
	contextKeySubject = "auth.subject"
	contextKeyName    = "auth.name"
)

// Authenticate requires a valid bearer token and stores the caller's
// identity on the gin context. Role enforcement is left to the engine.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication is not configured"})
			return
		}
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := ParseJWT(strings.TrimSpace(token), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		role, _ := NormalizeRole(claims.Role)
		c.Set(contextKeyRole, role)
		c.Set(contextKeySubject, claims.Subject)
		c.Set(contextKeyName, claims.Name)
		c.Next()
	}
}

// RoleFrom returns the authenticated role, or "" when the request carried none.
func RoleFrom(c *gin.Context) engine.Role {
	if v, ok := c.Get(contextKeyRole); ok {
		if role, ok := v.(engine.Role); ok {
			return role
		}
	}
	return ""
}

// NameFrom returns the authenticated display name, falling back to the subject.
func NameFrom(c *gin.Context) string {
	if v := c.GetString(contextKeyName); v != "" {
		return v
	}
	return c.GetString(contextKeySubject)
}
