package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/utils/auth"
)

// PublicPaths are reachable without a token. Entries ending in "/" match by prefix.
var PublicPaths = []string{
	"/api/auth/login",
	"/api/auth/refresh",
	"/health",
	"/swagger/",
}

func isPublic(path string) bool {
	for _, public := range PublicPaths {
		if strings.HasSuffix(public, "/") {
			if strings.HasPrefix(path, public) {
				return true
			}
			continue
		}
		if path == public {
			return true
		}
	}
	return false
}

// RequireAuthentication validates the caller's token before anything is proxied.
// Services check the token again, so this only stops anonymous traffic at the edge.
func RequireAuthentication(tokens *auth.TokenManager, blacklist middleware.TokenBlacklist) gin.HandlerFunc {
	authenticate := middleware.AuthMiddleware(tokens, blacklist)
	return func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" || isPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		authenticate(c)
	}
}
