// useragent.go blocks requests from user agents on the configured denylist
// before they reach the lookup handler or count against the cache.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultBlockedUserAgents is the substring denylist applied to the public
// lookup path when the configuration does not override it. curl is allowed so
// operators can probe the endpoint by hand.
var DefaultBlockedUserAgents = []string{
	"wget",
	"python-requests",
	"go-http-client",
	"bot",
	"crawler",
	"spider",
	"scraper",
}

// UserAgentFilterMiddleware rejects requests whose User-Agent contains any of
// the blocked substrings (case-insensitive) with 403. Blocked attempts are
// logged with the client IP so operators can tune the list.
func UserAgentFilterMiddleware(blocked []string) gin.HandlerFunc {
	if len(blocked) == 0 {
		blocked = DefaultBlockedUserAgents
	}
	lowered := make([]string, len(blocked))
	for i, entry := range blocked {
		lowered[i] = strings.ToLower(entry)
	}

	return func(c *gin.Context) {
		userAgent := strings.ToLower(c.Request.UserAgent())
		for _, entry := range lowered {
			if strings.Contains(userAgent, entry) {
				slog.Warn("API access blocked",
					"ip", c.ClientIP(),
					"user_agent", c.Request.UserAgent(),
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "Access denied",
					"message": "User agent not allowed",
				})
				return
			}
		}
		c.Next()
	}
}
