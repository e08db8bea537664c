package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sla/internal/api/handlers"
	"github.com/platformbuilds/mirador-sla/internal/api/middleware"
	"github.com/platformbuilds/mirador-sla/internal/api/websocket"
	"github.com/platformbuilds/mirador-sla/internal/config"
	"github.com/platformbuilds/mirador-sla/internal/events"
	"github.com/platformbuilds/mirador-sla/internal/monitoring"
	"github.com/platformbuilds/mirador-sla/internal/services"
	"github.com/platformbuilds/mirador-sla/pkg/cache"
	"github.com/platformbuilds/mirador-sla/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.Valkey
	registry   *services.SLARegistryService
	monitor    *services.SLAMonitorService
	compliance *services.ComplianceService
	bus        *events.Bus
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	valkey cache.Valkey,
	registry *services.SLARegistryService,
	monitor *services.SLAMonitorService,
	compliance *services.ComplianceService,
	bus *events.Bus,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:     cfg,
		logger:     log,
		cache:      valkey,
		registry:   registry,
		monitor:    monitor,
		compliance: compliance,
		bus:        bus,
		router:     gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.MetricsMiddleware())

	if s.config.Monitoring.Enabled {
		monitoring.SetupPrometheusMetrics(s.router, s.config.Monitoring.MetricsPath)
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.registry, s.cache, s.logger)
	slaHandler := handlers.NewSLAHandler(s.registry, s.monitor, s.compliance, s.logger)
	breachHandler := handlers.NewBreachHandler(s.monitor, s.cache, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")

	v1.POST("/slas", slaHandler.CreateSLA)
	v1.GET("/slas", slaHandler.ListSLAs)
	v1.GET("/slas/:id", slaHandler.GetSLA)
	v1.PUT("/slas/:id", slaHandler.UpdateSLA)
	v1.DELETE("/slas/:id", slaHandler.DeleteSLA)
	v1.POST("/slas/:id/measurements", slaHandler.RecordMeasurement)
	v1.GET("/slas/:id/patterns", slaHandler.GetPatterns)
	v1.GET("/slas/:id/compliance", slaHandler.GetCompliance)

	v1.GET("/breaches/active", breachHandler.GetActiveBreaches)
	v1.GET("/breaches/history", breachHandler.GetBreachHistory)
	v1.GET("/breaches/statistics", breachHandler.GetBreachStatistics)
	v1.GET("/breaches/:id", breachHandler.GetBreach)
	v1.PUT("/breaches/:id/acknowledge", breachHandler.AcknowledgeBreach)
	v1.PUT("/breaches/:id/resolve", breachHandler.ResolveBreach)

	if s.config.WebSocket.Enabled {
		ws := websocket.NewEventStreamHandler(
			s.bus,
			s.config.WebSocket.ReadBufferSize,
			s.config.WebSocket.WriteBufferSize,
			time.Duration(s.config.WebSocket.PingInterval)*time.Second,
			s.logger,
		)
		v1.GET("/ws/events", ws.HandleEventStream)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MIRADOR-SLA REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down MIRADOR-SLA gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
