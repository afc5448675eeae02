package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fabworks/fabworks-auth/internal/config"
	"github.com/fabworks/fabworks-auth/internal/http/handler"
	"github.com/fabworks/fabworks-auth/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *middleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/mfa/verify", authHandler.VerifyMFA)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)

		authGroup.POST("/logout_all", authMiddleware.ValidateBearer, authHandler.LogoutAll)
		authGroup.POST("/password/change", authMiddleware.ValidateBearer, authHandler.ChangePassword)
		authGroup.GET("/me", authMiddleware.ValidateBearer, authHandler.Me)
		authGroup.GET("/sessions", authMiddleware.ValidateBearer, authHandler.Sessions)
		authGroup.DELETE("/sessions/:id", authMiddleware.ValidateBearer, authHandler.RevokeSession)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
