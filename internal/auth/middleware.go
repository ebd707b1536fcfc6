package auth

import (
	"errors"
	"net/http"
	"strings"

	"eventsbga/internal/api"

	"github.com/gin-gonic/gin"
)

const (
	ContextSubject = "user_subject"
	ContextEmail   = "user_email"
	ContextRole    = "user_role"
)

func AuthMiddleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			api.AbortWithError(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "Bearer" {
			api.AbortWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			api.AbortWithError(c, http.StatusUnauthorized, "Token is empty")
			return
		}

		principal, err := v.Verify(tokenString)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				api.AbortWithError(c, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, ErrMissingSubject):
				api.AbortWithError(c, http.StatusUnauthorized, "Token has no subject")
			default:
				api.AbortWithError(c, http.StatusUnauthorized, "Invalid or malformed token")
			}
			return
		}

		c.Set(ContextSubject, principal.Subject)
		c.Set(ContextEmail, principal.Email)
		c.Set(ContextRole, principal.Role)

		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			api.AbortWithError(c, http.StatusUnauthorized, "User role not found")
			return
		}

		roleStr, ok := role.(string)
		if !ok {
			api.AbortWithError(c, http.StatusUnauthorized, "Invalid role type")
			return
		}

		for _, r := range roles {
			if roleStr == r {
				c.Next()
				return
			}
		}

		api.AbortWithError(c, http.StatusForbidden, "Insufficient permissions")
	}
}

func GetSubject(c *gin.Context) (string, bool) {
	return getString(c, ContextSubject)
}

func GetEmail(c *gin.Context) string {
	s, _ := getString(c, ContextEmail)
	return s
}

func GetRole(c *gin.Context) string {
	s, _ := getString(c, ContextRole)
	return s
}

func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == RoleAdmin
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
