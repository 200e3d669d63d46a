package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/lms-backend/pkg/apperror"
)

type envelope struct {
	Status    int    `json:"status"`
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     any    `json:"error"`
}

func newTestEngine(production bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(ErrorHandler(logger, production))
	r.Use(Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RealIP())
	r.Use(BodyLimit(16))

	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperror.NotFound("user not found"))
	})
	r.GET("/invalid", func(c *gin.Context) {
		_ = c.Error(apperror.Validation("validation failed", map[string]string{"email": "must be a valid email"}))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("dial tcp: connection refused"))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("nil map write")
	})
	r.GET("/written", func(c *gin.Context) {
		c.String(http.StatusAccepted, "partial")
		_ = c.Error(errors.New("late failure"))
	})
	r.POST("/echo", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			_ = c.Error(apperror.New(apperror.KindPayloadTooLarge, "request body too large"))
			return
		}
		c.String(http.StatusOK, string(b))
	})
	return r
}

func do(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestErrorHandler_ClientErrors(t *testing.T) {
	r := newTestEngine(true)

	w, env := do(t, r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "user not found", env.Message)
	assert.Equal(t, http.StatusNotFound, env.Status)

	w, env = do(t, r, httptest.NewRequest(http.MethodGet, "/invalid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", env.Message)
	assert.Equal(t, map[string]any{"email": "must be a valid email"}, env.Error)
}

func TestErrorHandler_ServerErrorsByEnvironment(t *testing.T) {
	t.Run("production hides internals", func(t *testing.T) {
		w, env := do(t, newTestEngine(true), httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", env.Message)
		assert.Nil(t, env.Error)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("development exposes cause", func(t *testing.T) {
		w, env := do(t, newTestEngine(false), httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", env.Message)
		assert.Equal(t, "dial tcp: connection refused", env.Error)
	})
}

func TestRecovery_PanicBecomesSignal(t *testing.T) {
	w, env := do(t, newTestEngine(false), httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "nil map write")
}

func TestErrorHandler_SkipsWrittenResponses(t *testing.T) {
	w := httptest.NewRecorder()
	newTestEngine(true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := newTestEngine(true)

	w, env := do(t, r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, env.RequestID)

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, inbound)
	w, _ = do(t, r, req)
	assert.Equal(t, inbound, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w, _ = do(t, r, req)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}

func TestBodyLimit(t *testing.T) {
	r := newTestEngine(true)

	w, _ := do(t, r, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "small", w.Body.String())

	w, env := do(t, r, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "request body too large", env.Message)

	// undeclared length fails while reading
	req := httptest.NewRequest(http.MethodPost, "/echo", io.NopCloser(strings.NewReader(strings.Repeat("x", 64))))
	req.ContentLength = -1
	w, _ = do(t, r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// ipEngine echoes the resolved client IP. proxies nil trusts no proxy.
func ipEngine(t *testing.T, proxies []string, platform string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(proxies))
	r.TrustedPlatform = platform
	r.Use(RealIP())
	r.GET("/ip", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })
	return r
}

func TestRealIP(t *testing.T) {
	cases := []struct {
		name     string
		proxies  []string
		platform string
		remote   string
		headers  map[string]string
		want     string
	}{
		{"forwarding ignored without trusted proxy", nil, "", "203.0.113.9:4000",
			map[string]string{"X-Forwarded-For": "127.0.0.1", "CF-Connecting-IP": "10.0.0.1"}, "203.0.113.9"},
		{"forwarding honoured from trusted proxy", []string{"10.0.0.0/8"}, "", "10.1.2.3:4000",
			map[string]string{"X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"untrusted proxy", []string{"10.0.0.0/8"}, "", "203.0.113.9:4000",
			map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.9"},
		{"cloudflare platform", nil, gin.PlatformCloudflare, "203.0.113.9:4000",
			map[string]string{"CF-Connecting-IP": "198.51.100.7"}, "198.51.100.7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ip", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			ipEngine(t, tc.proxies, tc.platform).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Body.String())
		})
	}
}

func TestAllowPrivateIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	allow := AllowPrivateIP()
	for ip, want := range map[string]bool{"127.0.0.1": true, "10.1.2.3": true, "192.168.0.5": true, "203.0.113.7": false, "": false} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = ""
		c.Set("real_ip", ip)
		assert.Equal(t, want, allow(c), ip)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimit(rdb, RatePolicy{Max: 1, Window: time.Minute, Key: KeyByIP("test")}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRateLimit_NoClientPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(nil, RatePolicy{Max: 1, Window: time.Minute, Key: KeyByIP("test")}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var byIP, byRoute string
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.Use(RealIP())
	r.GET("/users/:id", func(c *gin.Context) {
		byIP = KeyByIP("api")(c)
		byRoute = KeyByRoute("signup")(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	req.Header.Set("CF-Connecting-IP", "198.51.100.77")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "rl:api:203.0.113.7", byIP)
	assert.Equal(t, "rl:signup:GET /users/:id:203.0.113.7", byRoute)
}

func newLimitedEngine(t *testing.T, p RatePolicy) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.Use(ErrorHandler(logger, true))
	r.Use(RealIP())
	r.Use(RateLimit(rdb, p))
	r.GET("/limited", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, mr
}

func TestRateLimit_EnforcesPolicy(t *testing.T) {
	r, mr := newLimitedEngine(t, RatePolicy{Max: 2, Window: time.Minute, Key: KeyByIP("test")})

	wantRemaining := []string{"1", "0"}
	for i := 0; i < 2; i++ {
		w, _ := do(t, r, httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, wantRemaining[i], w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "60", w.Header().Get("X-RateLimit-Reset"))
	}

	w, env := do(t, r, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "rate limit exceeded", env.Message)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	count, err := mr.Get("rl:test:192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, "3", count)

	// a new window starts once the counter expires
	mr.FastForward(time.Minute)
	w, _ = do(t, r, httptest.NewRequest(http.MethodGet, "/limited", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit_SpoofedHeadersDoNotBypass(t *testing.T) {
	r, _ := newLimitedEngine(t, RatePolicy{
		Max:    1,
		Window: time.Minute,
		Key:    KeyByIP("test"),
		Allow:  AllowPrivateIP(),
	})

	codes := make([]int, 0, 3)
	for i, spoof := range []string{"127.0.0.1", "10.0.0.1", "198.51.100.1"} {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", spoof)
		req.Header.Set("CF-Connecting-IP", "198.51.100."+strconv.Itoa(i+10))
		w, _ := do(t, r, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)

	// loopback at the socket level is still exempt
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "127.0.0.1:4000"
		w, _ := do(t, r, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 9, remaining(10, 1))
	assert.Equal(t, 0, remaining(10, 10))
	assert.Equal(t, 0, remaining(10, 11))
}
