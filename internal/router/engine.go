package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/lms-backend/config"
	"github.com/oksasatya/lms-backend/internal/container"
	handlers "github.com/oksasatya/lms-backend/internal/interface/http"
	"github.com/oksasatya/lms-backend/internal/interface/middleware"
	"github.com/oksasatya/lms-backend/pkg/apperror"
	"github.com/oksasatya/lms-backend/pkg/validation"
)

// NewEngine builds the Gin engine: global middleware, the health route, all
// API modules and the catch-all 404.
func NewEngine(c *container.Container) *gin.Engine {
	cfg := c.Config
	validation.Init()

	r := gin.New()
	configureClientIP(r, cfg, c.Logger)
	// ErrorHandler must wrap Recovery so recovered panics reach it
	r.Use(middleware.ErrorHandler(c.Logger, cfg.IsProduction()))
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	r.Use(middleware.OriginGuard(cfg.CORSOrigins()))
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	r.GET("/test", handlers.NewHealthHandler(nil).Test)

	reg := NewRegistry(r, c.Logger)
	// soft per-IP limit for the whole API; internal callers are exempt
	reg.Use(middleware.RateLimit(c.Redis, middleware.RatePolicy{
		Max:    300,
		Window: time.Minute,
		Key:    middleware.KeyByIP("api"),
		Allow:  middleware.AllowPrivateIP(),
	}))
	InitModules(reg, c)
	reg.Mount()

	r.NoRoute(func(ctx *gin.Context) {
		_ = ctx.Error(apperror.NotFoundf("Route %s not found", ctx.Request.URL.RequestURI()))
	})
	return r
}

// configureClientIP limits which forwarding headers gin's ClientIP believes.
// With no TRUSTED_PROXIES the socket address is used as is.
func configureClientIP(r *gin.Engine, cfg *config.Config, logger *logrus.Logger) {
	proxies := cfg.TrustedProxyList()
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		if logger != nil {
			logger.WithError(err).Warn("invalid TRUSTED_PROXIES; forwarding headers ignored")
		}
		_ = r.SetTrustedProxies(nil)
	}

	switch strings.ToLower(cfg.TrustedPlatform) {
	case "":
	case "cloudflare":
		r.TrustedPlatform = gin.PlatformCloudflare
	case "appengine", "google":
		r.TrustedPlatform = gin.PlatformGoogleAppEngine
	default:
		// any other value is taken as the header name itself
		r.TrustedPlatform = cfg.TrustedPlatform
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if origins := cfg.CORSOrigins(); len(origins) > 0 {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	return corsCfg
}
