package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircchat/internal/auth"
	"github.com/vovakirdan/ircchat/internal/core"
	"github.com/vovakirdan/ircchat/internal/store"
)

// NewServer builds the admin HTTP server: health, live state and account
// endpoints.
func NewServer(hub *core.Hub, authService *auth.Service, st store.UserStore, addr string, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              addr,
		Handler:           NewRouter(hub, authService, st, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewRouter wires the gin routes.
func NewRouter(hub *core.Hub, authService *auth.Service, st store.UserStore, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	admin := NewAdminHandlers(hub, logger)
	r.GET("/health", healthHandler)
	r.GET("/channels", admin.ListChannels)
	r.GET("/sessions", admin.ListSessions)

	api := NewAPIHandlers(authService, logger)
	users := NewUserHandlers(st, logger)
	r.POST("/api/register", api.Register)
	r.POST("/api/login", api.Login)
	r.GET("/api/me", AuthMiddleware(authService, logger), users.Me)

	return r
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
