package middleware

import (
	"github.com/gin-gonic/gin"
)

// RealIP stores the client IP under "real_ip". It relies on gin's ClientIP,
// so forwarding headers count only when the engine trusts the sending proxy
// (SetTrustedProxies) or platform (TrustedPlatform).
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("real_ip", c.ClientIP())
		c.Next()
	}
}
