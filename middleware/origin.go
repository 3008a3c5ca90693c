package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origin rejects websocket upgrades on path whose Origin host is not in allowed. An empty list
// allows everything; requests without an Origin header (non-browser clients) always pass.
func Origin(path string, allowed []string) gin.HandlerFunc {
	hosts := make(map[string]struct{}, len(allowed))
	for _, h := range allowed {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if len(hosts) == 0 || c.Request.Method != http.MethodGet || c.Request.URL.Path != path {
			c.Next()
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		u, err := url.Parse(origin)
		if err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if _, ok := hosts[strings.ToLower(u.Host)]; !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
