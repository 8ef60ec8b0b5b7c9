package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/telemetry"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Server wraps the gin engine and HTTP server lifecycle.
type Server struct {
	router *gin.Engine
	server *http.Server
	log    logger.Logger
}

// NewServer builds the HTTP server with middleware and routes.
func NewServer(cfg *config.Config, handlers *Handlers, tel *telemetry.Provider, log logger.Logger) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recovery(log))
	router.Use(requestLogger(log))
	// No origins configured means no cross-origin access; cors.New rejects
	// an empty allow-list, so the middleware is only installed when there is
	// something to allow.
	if len(cfg.Service.CORSOrigins) > 0 {
		router.Use(corsMiddleware(cfg.Service.CORSOrigins))
	}

	setupRoutes(router, cfg, handlers, tel)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
			Handler:      router,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		log: log,
	}
}

// corsMiddleware restricts cross-origin access to the fixed origin
// allow-list. Callers must not pass an empty list.
func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func setupRoutes(router *gin.Engine, cfg *config.Config, handlers *Handlers, tel *telemetry.Provider) {
	// Liveness and metrics stay reachable regardless of the feature flag so
	// orchestration and scraping keep working.
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.Service.Name, "version": cfg.Service.Version})
	})
	router.GET("/metrics", gin.WrapH(tel.Handler()))

	v1 := router.Group("/api/v1/visibility")
	v1.Use(requireEnabled(cfg.Visibility.Enabled))
	{
		v1.POST("/runs", handlers.CreateRun)
		v1.GET("/results", handlers.GetResults)
		v1.GET("/results/grouped", handlers.GroupedResults)
		v1.GET("/compare", handlers.Compare)
		v1.GET("/export.csv", handlers.ExportCSV)
		v1.POST("/intents/generate", handlers.GenerateIntents)
		v1.GET("/health", handlers.Health)
		v1.GET("/debug/provenance", handlers.Provenance)
	}
}

// Router returns the underlying gin engine. Used in tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server until shutdown or failure.
func (s *Server) Start() error {
	s.log.Info("starting http server", logger.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
