// Package server exposes the annotation wizard to the web front-end over
// HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/config"
	"github.com/medannot/medannot/internal/kv"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/wizard"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	DB          *store.DB
	Importer    *audio.Importer
	Transcriber wizard.Transcriber
	Generator   wizard.Generator
	// Sessions holds restore-prompt markers. Nil selects an in-memory
	// cache with the configured session TTL.
	Sessions kv.Store
	Now      func() time.Time
}

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	router  *gin.Engine
	deps    Deps
	metrics *metrics
	locks   profileLocks
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.Sessions == nil {
		deps.Sessions = kv.NewCache(cfg.SessionTTL, cfg.SessionTTL/2)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	// Create router
	router := gin.New()
	router.Use(gin.Recovery())

	// Configure proxy trust for production
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Error("Failed to set trusted proxies", "error", err)
	}
	// Uploads beyond this spill to temp files.
	router.MaxMultipartMemory = 8 << 20

	server := &Server{
		config:  cfg,
		logger:  logger,
		router:  router,
		deps:    deps,
		metrics: newMetrics(),
	}

	// Setup middleware and routes
	router.Use(server.requestLogger(), server.metrics.middleware())
	setupSecurityMiddleware(router, cfg, logger)
	server.setupRoutes()

	return server
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and shuts it down gracefully when ctx ends.
func Run(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "port", s.config.Port)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errC; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", s.metrics.handler())

	api := s.router.Group("/api/v1", s.identify)
	{
		api.GET("/patients", s.handleListPatients)
		api.POST("/patients", s.handleCreatePatient)
		api.GET("/patients/:id", s.handleGetPatient)
		api.DELETE("/patients/:id", s.handleArchivePatient)

		api.GET("/draft", s.handleGetDraft)
		api.PUT("/draft", s.handlePutDraft)
		api.DELETE("/draft", s.handleDeleteDraft)
		api.GET("/draft/prompt", s.handlePrompt)
		api.POST("/draft/prompt/resolve", s.handleResolvePrompt)

		api.GET("/wizard", s.handleWizard)
		api.POST("/wizard/start", s.handleStart)
		api.POST("/wizard/next", s.handleNext)
		api.POST("/wizard/back", s.handleBack)
		api.PUT("/wizard/patient", s.handleSelectPatient)
		api.PUT("/wizard/visit", s.handleSetVisit)
		api.PUT("/wizard/transcription", s.handleSetTranscription)
		api.PUT("/wizard/annotation", s.handleSetAnnotation)

		api.POST("/audio", s.handleAudio)
		api.POST("/annotations/generate", s.handleGenerate)
		api.POST("/annotations", s.handleSave)
		api.GET("/annotations", s.handleListAnnotations)

		api.GET("/settings/template", s.handleGetTemplate)
		api.PUT("/settings/template", s.handlePutTemplate)
	}

	// Serve the web front-end when one is configured. Static only answers
	// paths that exist on disk, so API routes are unaffected.
	if s.config.StaticDir != "" {
		setupStatic(s.router, s.config.StaticDir, s.logger)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	state := "healthy"
	if err := s.deps.DB.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"service": "medannot",
	})
}
