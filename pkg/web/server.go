// Package web serves the dashboard's JSON API over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/grantqa/pkg/buildinfo"
	"github.com/otherjamesbrown/grantqa/pkg/dashboard"
	"github.com/otherjamesbrown/grantqa/pkg/db"
	"github.com/otherjamesbrown/grantqa/pkg/listing"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
	"github.com/otherjamesbrown/grantqa/pkg/review"
	"github.com/otherjamesbrown/grantqa/pkg/search"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// HealthChecker reports the health of the backing store.
type HealthChecker interface {
	Health(ctx context.Context) *db.HealthStatus
}

// Services are the components the handlers call.
type Services struct {
	Listing   *listing.Service
	Search    *search.Service
	Review    *review.Service
	Dashboard *dashboard.Service
	Health    HealthChecker
}

// Server routes HTTP requests to the services.
type Server struct {
	svc      Services
	logger   logging.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	gatherer prometheus.Gatherer
}

// NewServer creates a server. metrics may be nil; gatherer backs /metrics.
func NewServer(svc Services, logger logging.Logger, metrics *observability.Metrics, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		svc:      svc,
		logger:   logger.With(logging.F("component", "web")),
		metrics:  metrics,
		tracer:   observability.NewTracer(),
		gatherer: gatherer,
	}
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.observe())

	r.GET("/healthz", s.healthz)
	r.GET("/version", buildinfo.Handler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/search", s.search)
	api.GET("/organizations", s.listOrganizations)
	api.GET("/organizations/:id", s.organizationDetail)
	api.GET("/grants", s.listGrants)
	api.GET("/grants/:id", s.grantDetail)
	api.GET("/dashboard", s.dashboard)
	api.GET("/duplicates", s.duplicates)
	api.POST("/duplicates/:id/review", s.reviewDuplicate)
	api.GET("/issues", s.issues)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.F("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
