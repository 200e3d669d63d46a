package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIPrefix is the base path of versioned API routes.
const APIPrefix = "/api/v1"

// Registry collects modules and the middleware shared by all of them, then
// mounts everything under APIPrefix in one pass.
type Registry struct {
	api     *gin.RouterGroup
	logger  *logrus.Logger
	shared  []gin.HandlerFunc
	modules []Module
	mounted bool
}

func NewRegistry(engine *gin.Engine, logger *logrus.Logger) *Registry {
	return &Registry{api: engine.Group(APIPrefix), logger: logger}
}

// Use adds middleware applied to every module route. It must be called
// before Mount.
func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.shared = append(r.shared, mw...)
}

func (r *Registry) Add(mods ...Module) {
	r.modules = append(r.modules, mods...)
}

// Mount registers every module once; later calls are no-ops.
func (r *Registry) Mount() {
	if r.mounted {
		return
	}
	r.mounted = true
	r.api.Use(r.shared...)

	names := make([]string, 0, len(r.modules))
	for _, m := range r.modules {
		m.Register(r.api)
		names = append(names, m.Name())
	}
	if r.logger != nil {
		r.logger.WithField("modules", names).Debug("api modules mounted")
	}
}
