package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/services"
)

const (
	contextUserKey    = "user"
	sessionCookieName = "hub_session"
)

// SessionAuth resolves the caller's session from the session cookie or a
// bearer token and stores the user in the request context. Requests without a
// valid session are rejected.
func SessionAuth(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := sessionIDFromRequest(c)
		if sessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Not authenticated"})
			return
		}

		user, err := auth.ResolveSession(c.Request.Context(), sessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Session invalid or expired"})
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireRoles allows only the listed roles past. It must run after
// SessionAuth.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "Not authenticated"})
			return
		}
		if !allowed[user.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: "Insufficient role"})
			return
		}
		c.Next()
	}
}

func sessionIDFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
