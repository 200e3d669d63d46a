package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/lms-backend/internal/interface/http"
	"github.com/oksasatya/lms-backend/internal/interface/middleware"
)

// UserModule mounts registration, profile and enrollment routes:
// POST /users, GET|PATCH /users/:id, POST /users/:id/enrollments.
type UserModule struct {
	Handler *handlers.UserHandler
	Redis   *redis.Client
}

func NewUserModule(h *handlers.UserHandler, rdb *redis.Client) *UserModule {
	return &UserModule{Handler: h, Redis: rdb}
}

func (m *UserModule) Name() string { return "users" }

func (m *UserModule) Register(rg *gin.RouterGroup) {
	// signups are the only unauthenticated write
	signupLimit := middleware.RateLimit(m.Redis, middleware.RatePolicy{
		Max:    10,
		Window: time.Minute,
		Key:    middleware.KeyByRoute("signup"),
	})

	users := rg.Group("/users")
	users.POST("", signupLimit, m.Handler.Register)
	users.GET("/:id", m.Handler.GetProfile)
	users.PATCH("/:id", m.Handler.UpdateProfile)
	users.POST("/:id/enrollments", m.Handler.Enroll)
}
