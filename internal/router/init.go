package router

import (
	"github.com/redis/go-redis/v9"

	appuser "github.com/oksasatya/lms-backend/internal/application"
	"github.com/oksasatya/lms-backend/internal/container"
	handlers "github.com/oksasatya/lms-backend/internal/interface/http"
	"github.com/oksasatya/lms-backend/internal/router/modules"
)

type UserModuleDeps struct {
	Service *appuser.Service
	Handler *handlers.UserHandler
}

func buildUserDeps(c *container.Container) UserModuleDeps {
	// keep the interface nil when no client is configured
	var cache redis.Cmdable
	if c.Redis != nil {
		cache = c.Redis
	}

	service := appuser.NewService(
		c.Users,
		c.Hasher,
		cache,
		c.Logger,
		c.Config.UserCacheTTL,
	)

	return UserModuleDeps{
		Service: service,
		Handler: handlers.NewUserHandler(service, c.Logger),
	}
}

// InitModules builds the feature modules from c and adds them to r.
func InitModules(r *Registry, c *container.Container) {
	userDeps := buildUserDeps(c)
	r.Add(
		modules.NewHealthModule(handlers.NewHealthHandler(userDeps.Service)),
		modules.NewUserModule(userDeps.Handler, c.Redis),
	)
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c.Redis))
	}
}
