// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/lineup/internal/api"
	"github.com/stwalsh4118/lineup/internal/backend"
	"github.com/stwalsh4118/lineup/internal/config"
	"github.com/stwalsh4118/lineup/internal/db"
	"github.com/stwalsh4118/lineup/internal/events"
	"github.com/stwalsh4118/lineup/internal/logger"
	"github.com/stwalsh4118/lineup/internal/manager"
	"github.com/stwalsh4118/lineup/internal/middleware"
	"github.com/stwalsh4118/lineup/internal/policy"
)

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	db       *db.DB
	manager  *manager.Manager
	backends *backend.Directory
	policy   *policy.Provider
	bus      *events.Bus
	last     events.LastEventStore
	router   *gin.Engine
	server   *http.Server
}

// New creates a new server instance. The HTTP server is built here so
// Shutdown can stop it at any point, even before Start serves. The bus
// feeds the event stream; last answers last-event lookups and falls back
// to the bus when nil.
func New(cfg *config.Config, database *db.DB, m *manager.Manager, backends *backend.Directory, p *policy.Provider, bus *events.Bus, last events.LastEventStore) *Server {
	s := &Server{
		config:   cfg,
		db:       database,
		manager:  m,
		backends: backends,
		policy:   p,
		bus:      bus,
		last:     last,
	}
	s.setupRouter()

	s.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
	return s
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.manager, s.backends)
	api.SetupGroupRoutes(apiGroup, s.manager)
	api.SetupSettingsRoutes(apiGroup, s.policy)
	api.SetupBackendRoutes(apiGroup, s.backends, s.manager)
	api.SetupEventRoutes(apiGroup, s.bus, s.last)
}

// Start loads the channel groups and serves HTTP until Shutdown is called.
// It returns http.ErrServerClosed when Shutdown ran first.
func (s *Server) Start(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		if errors.Is(err, manager.ErrManagerStopped) {
			return http.ErrServerClosed
		}
		return fmt.Errorf("failed to start group manager: %w", err)
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// A server that never served refuses to start afterwards
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Stops the refresh loop and releases policy subscriptions
	if s.manager != nil {
		s.manager.Stop()
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
