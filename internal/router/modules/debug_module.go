package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/lms-backend/internal/interface/middleware"
)

// DebugModule serves expvar counters, including http_errors_by_kind.
type DebugModule struct {
	Redis *redis.Client
}

func NewDebugModule(rdb *redis.Client) *DebugModule { return &DebugModule{Redis: rdb} }

func (m *DebugModule) Name() string { return "debug" }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	limit := middleware.RateLimit(m.Redis, middleware.RatePolicy{
		Max:    120,
		Window: time.Minute,
		Key:    middleware.KeyByIP("debug"),
	})
	rg.GET("/debug/vars", limit, gin.WrapH(expvar.Handler()))
}
