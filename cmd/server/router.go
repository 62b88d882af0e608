package main

import (
	"net/http"

	"github.com/Pizzaface/PizzaPi-sub003/internal/api/handlers"
	"github.com/Pizzaface/PizzaPi-sub003/internal/api/middleware"
	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/config"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/store"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func newRouter(
	cfg *config.Config,
	authn *auth.Authenticator,
	dir *directory.Directory,
	st store.Store,
	socketIOServer *websocket.SocketIOServer,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.APIKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.AllowedOrigins) == 0 || containsWildcard(cfg.AllowedOrigins) {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))
	router.Use(middleware.LoggingMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "PizzaPi relay")
	})

	sessionHandler := handlers.NewSessionHandler(dir, socketIOServer)
	runnerHandler := handlers.NewRunnerHandler(dir, socketIOServer)
	healthHandler := handlers.NewHealthHandler(st)

	api := router.Group("/api")
	api.GET("/health", healthHandler.Health)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authn))
	{
		protected.GET("/sessions", sessionHandler.ListSessions)
		protected.GET("/sessions/:id", sessionHandler.GetSession)
		protected.DELETE("/sessions/:id", sessionHandler.DeleteSession)

		protected.GET("/runners", runnerHandler.ListRunners)
		protected.POST("/runners/:id/spawn", runnerHandler.Spawn)
		protected.GET("/runners/:id/terminals", runnerHandler.ListTerminals)
		protected.POST("/runners/:id/terminals", runnerHandler.CreateTerminal)
	}

	// Credentials are checked in the Socket.IO handshake, not here.
	router.Any("/socket.io", socketIOServer.HandleSocketIO())
	router.Any("/socket.io/*any", socketIOServer.HandleSocketIO())

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
