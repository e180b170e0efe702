// Package api wires the HTTP surface: REST endpoints for discovery,
// selection and playback, plus the websocket event stream.
package api

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/aosaki/dlnacast/api/controllers"
	"github.com/aosaki/dlnacast/api/middlewares"
	"github.com/aosaki/dlnacast/api/notifyhub"
	"github.com/aosaki/dlnacast/player"
	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

// Server represents the HTTP API server.
type Server struct {
	cfg    *types.AppConfig
	player *player.Orchestrator
	hub    *notifyhub.Hub

	mu     sync.RWMutex
	server *http.Server
}

func NewServer(cfg *types.AppConfig, p *player.Orchestrator, hub *notifyhub.Hub) *Server {
	return &Server{
		cfg:    cfg,
		player: p,
		hub:    hub,
	}
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// Every error path answers JSON, stack traces never leave the process.
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		tool.DefaultLogger.Errorf("Panic in handler: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, tool.FastReturnError("Internal server error"))
	}))

	if s.cfg.Security.RateLimitEnabled {
		engine.Use(middlewares.RateLimit(s.cfg.Security.RateLimitRPS))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Not found"))
	})
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, tool.FastReturnError("Method not allowed"))
	})

	statusCtrl := controllers.NewStatusController(s.player)
	deviceCtrl := controllers.NewDeviceController(s.player)
	playbackCtrl := controllers.NewPlaybackController(s.player)
	streamCtrl := controllers.NewStreamController(s.player)

	engine.GET("/health", statusCtrl.HandleHealth)
	engine.GET("/devices", deviceCtrl.HandleList)
	engine.GET("/devices/current", deviceCtrl.HandleCurrent)
	engine.GET("/status", playbackCtrl.HandleStatus)
	engine.GET("/streams/cached", streamCtrl.HandleCached)
	if s.hub != nil {
		engine.GET("/events/ws", notifyhub.HandleEventsWS(s.hub))
	}

	// Mutating endpoints sit behind the API key when auth is enabled.
	mutating := engine.Group("/")
	if s.cfg.Security.APIAuthEnabled {
		mutating.Use(middlewares.RequireAPIKey(s.cfg.Security.APIKey))
	}
	mutating.POST("/devices/select", deviceCtrl.HandleSelect)
	mutating.POST("/play", playbackCtrl.HandlePlay)
	mutating.POST("/stop", playbackCtrl.HandleStop)

	return engine
}

// Start builds the routes and serves until the listener fails or the process
// exits.
func (s *Server) Start() error {
	engine := s.setupRoutes()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler: engine,
	}
	server := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on http://%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	return server.ListenAndServe()
}
