package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/lms-backend/pkg/apperror"
)

// KeyFunc derives the counter key for a request.
type KeyFunc func(c *gin.Context) string

// AllowFunc reports whether a request skips the limit entirely.
type AllowFunc func(c *gin.Context) bool

// RatePolicy is a fixed-window limit of Max requests per Window and key.
type RatePolicy struct {
	Max    int
	Window time.Duration
	Key    KeyFunc
	Allow  AllowFunc
}

func (p RatePolicy) enabled() bool {
	return p.Max > 0 && p.Window > 0 && p.Key != nil
}

// ipFromCtx prefers the address resolved by RealIP.
func ipFromCtx(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// KeyByIP counts every request of a client under one scope.
func KeyByIP(scope string) KeyFunc {
	return func(c *gin.Context) string {
		return "rl:" + scope + ":" + ipFromCtx(c)
	}
}

// KeyByRoute counts per client and matched route pattern, so /users/:id
// shares one counter whatever the id.
func KeyByRoute(scope string) KeyFunc {
	return func(c *gin.Context) string {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		return "rl:" + scope + ":" + c.Request.Method + " " + route + ":" + ipFromCtx(c)
	}
}

// returns {count, pttl} in one round trip
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

type window struct {
	count int
	reset time.Duration
}

func hit(c *gin.Context, rdb *redis.Client, key string, p RatePolicy) (window, error) {
	res, err := windowScript.Run(c.Request.Context(), rdb, []string{key}, p.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return window{}, err
	}
	w := window{}
	if len(res) > 0 {
		w.count = int(res[0])
	}
	if len(res) > 1 && res[1] > 0 {
		w.reset = time.Duration(res[1]) * time.Millisecond
	}
	return w, nil
}

// RateLimit enforces p with counters in Redis. Without a client, or when
// Redis errors, requests pass through unthrottled.
func RateLimit(rdb *redis.Client, p RatePolicy) gin.HandlerFunc {
	if rdb == nil || !p.enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (p.Allow != nil && p.Allow(c)) {
			c.Next()
			return
		}

		w, err := hit(c, rdb, p.Key(c), p)
		if err != nil {
			c.Next()
			return
		}

		resetSec := int(math.Ceil(w.reset.Seconds()))
		c.Header("X-RateLimit-Limit", strconv.Itoa(p.Max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining(p.Max, w.count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if w.count > p.Max {
			if resetSec > 0 {
				c.Header("Retry-After", strconv.Itoa(resetSec))
			}
			_ = c.Error(apperror.New(apperror.KindTooManyRequests, "rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func remaining(max, count int) int {
	if count >= max {
		return 0
	}
	return max - count
}
