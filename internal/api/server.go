package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"

	"github.com/killallgit/player-api/internal/service"
	"github.com/killallgit/player-api/pkg/config"
)

// Server is the HTTP transport mounted over a Service. It owns no
// business logic of its own: every route parses request parameters
// into a dispatcher.Params map and hands off to Service.Dispatch.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	svc        *service.Service

	rateLimiters      sync.Map
	rateLimitCleanup  chan struct{}
	rateLimitInitOnce sync.Once
}

// Engine returns the underlying Gin engine, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// NewServer builds the HTTP transport over svc using cfg's server and
// security settings.
func NewServer(svc *service.Service, cfg *config.Config) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	s := &Server{
		engine:           engine,
		svc:              svc,
		rateLimitCleanup: make(chan struct{}),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    30 * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware(cfg *config.Config) {
	s.engine.Use(gin.Recovery())
	s.engine.Use(gin.Logger())

	if cfg.Security.EnableCORS {
		s.engine.Use(CORS(cfg.Security.CORSOrigins, cfg.Security.CORSMethods, cfg.Security.CORSHeaders))
	}
	s.engine.Use(RequestSizeLimit(1024 * 1024))

	if cfg.Security.RateLimitRPS > 0 {
		s.engine.Use(PerClientRateLimit(&s.rateLimiters, s.rateLimitCleanup, &s.rateLimitInitOnce,
			cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst))
	}
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/", s.versionHandler)
	s.engine.GET("/docs/*any", ginswagger.WrapHandler(swaggerfiles.Handler))

	v1 := s.engine.Group("/api/v1/markers")
	{
		v1.GET("/query", s.operation("query"))
		v1.POST("", s.operation("add"))
		v1.PUT("/:id", s.operation("edit"))
		v1.DELETE("/:id", s.operation("delete"))
		v1.POST("/:id/shift", s.operation("shift"))
		v1.GET("/:id/shift", s.operation("check_shift"))

		v1.GET("/sections", s.operation("get_sections"))
		v1.GET("/sections/:id/items", s.operation("get_section"))
		v1.GET("/shows/:id/seasons", s.operation("get_seasons"))
		v1.GET("/seasons/:id/episodes", s.operation("get_episodes"))
		v1.GET("/sections/:id/stats", s.operation("get_stats"))

		v1.GET("/:id/purge", s.operation("purge_check"))
		v1.GET("/sections/:id/purges", s.operationRenaming("all_purges", "sectionId"))
		v1.POST("/purges/:id/restore", s.operationRenaming("restore", "markerId"))
		v1.POST("/purges/:id/ignore", s.operationRenaming("ignore_purge", "markerId"))

		v1.POST("/suspend", s.operation("suspend"))
		v1.POST("/resume", s.operation("resume"))
	}

	s.engine.NoRoute(s.notFoundHandler)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"state":     s.svc.State(),
	})
}

func (s *Server) versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "marker-service",
		"description": "marker CRUD, bulk shift and purge reconciliation for a media library",
	})
}

func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "resource not found"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and stops the rate
// limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.rateLimitCleanup)
	return s.httpServer.Shutdown(ctx)
}
