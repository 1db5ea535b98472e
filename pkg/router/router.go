package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"talking-pet/companion/internal/api"
	"talking-pet/companion/internal/ws"
	"talking-pet/companion/pkg/config"
	"talking-pet/companion/pkg/errors"
	"talking-pet/companion/pkg/logger"
	"talking-pet/companion/pkg/middleware"
)

// Dependencies are the components the control surface routes to
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Companion   api.Companion
	Hub         *ws.Hub
	RateLimiter *middleware.RateLimiter
	Health      gin.HandlerFunc
	Metrics     http.Handler
}

// Router is the loopback control surface
type Router struct {
	Engine *gin.Engine
	deps   Dependencies
}

// New creates the router with the standard middleware chain
func New(deps Dependencies) *Router {
	if deps.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(deps.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	if deps.RateLimiter != nil {
		engine.Use(deps.RateLimiter.Middleware())
	}

	return &Router{Engine: engine, deps: deps}
}

// SetupRoutes registers all control surface routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())
	r.AddOpenAPIValidation()

	if r.deps.Health != nil {
		r.Engine.GET("/health", r.deps.Health)
	}
	if r.deps.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(r.deps.Metrics))
	}

	api.NewCompanionHandler(r.deps.Companion, r.deps.Config.Server.MaxUploadSize).RegisterRoutes(r.Engine)

	if r.deps.Hub != nil {
		r.Engine.GET("/ws", func(c *gin.Context) {
			ws.ServeWs(r.deps.Hub, c)
		})
	}
}

// corsMiddleware lets a locally served UI call the surface, including websocket upgrades
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
