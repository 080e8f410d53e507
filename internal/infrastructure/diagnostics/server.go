package diagnostics

import (
	"context"
	"net/http"
	"time"

	"a2dpmgr/internal/core/ports"
	"a2dpmgr/internal/core/services"
	"a2dpmgr/internal/infrastructure/middleware"
	"a2dpmgr/internal/infrastructure/monitoring"
	"a2dpmgr/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is C10, the DiagnosticServer: a gin HTTP server exposing the §6
// CLI/dump surface, health/readiness, and Prometheus metrics. It never
// mutates FSM state itself — StreamStart/Connect/etc. go through the Api
// methods already wired on ports.Api, reached here only for reads.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	logger     *zap.SugaredLogger
}

// New assembles the diagnostic server's gin engine from the shared
// middleware stack plus the peers/auth/health routes.
func New(
	cfg *config.Config,
	api ports.Api,
	authService services.AuthService,
	healthChecker *monitoring.HealthChecker,
	diagnosticCache ports.DiagnosticCache,
	logger *zap.SugaredLogger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.TracingMiddleware())
	engine.Use(middleware.ErrorHandlerMiddleware(logger))
	engine.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	NewPeersHandler(api, diagnosticCache, logger).SetupRoutes(engine)
	NewAuthHandler(authService, cfg.Auth.JWTSecret).SetupRoutes(engine)

	engine.GET("/healthz", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Diagnostics.Address,
			Handler:      engine,
			ReadTimeout:  cfg.Diagnostics.ReadTimeout,
			WriteTimeout: cfg.Diagnostics.WriteTimeout,
		},
		engine: engine,
		logger: logger,
	}
}

// Start runs the diagnostic server until ListenAndServe returns.
func (s *Server) Start() error {
	s.logger.Infow("starting diagnostic server", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the diagnostic server.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
