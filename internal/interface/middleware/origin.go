package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/lms-backend/pkg/apperror"
)

// OriginGuard rejects cross-origin requests from origins outside allowed with
// a Forbidden signal. It runs ahead of the CORS handler, which would otherwise
// answer with a bare 403. An empty list allows every origin.
func OriginGuard(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(set) == 0 || origin == "" || sameOrigin(c, origin) {
			c.Next()
			return
		}
		if _, ok := set[origin]; !ok {
			_ = c.Error(apperror.Forbidden("origin not allowed"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// matches the CORS handler's same-origin exemption
func sameOrigin(c *gin.Context, origin string) bool {
	host := c.Request.Host
	return origin == "http://"+host || origin == "https://"+host
}
