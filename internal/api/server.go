// Package api is the HTTP surface over sitewatch's store and
// orchestrators: two bearer-authenticated trigger endpoints for the cron
// scheduler, a manual fire-and-forget trigger, a review endpoint, and a
// handful of read-only list/detail endpoints, grounded on the teacher's
// Echo v5 server (pkg/api/server.go).
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/sitewatch/sitewatch/internal/findings"
	"github.com/sitewatch/sitewatch/internal/scan"
	"github.com/sitewatch/sitewatch/internal/store"
	"github.com/sitewatch/sitewatch/internal/weekly"
)

// Server is the HTTP API server.
type Server struct {
	echo          *echo.Echo
	httpServer    *http.Server
	store         *store.Store
	scanOrch      *scan.Orchestrator
	weeklyOrch    *weekly.Orchestrator
	findingsWriter *findings.Writer // nil until SetFindingsWriter
	triggerSecret string
}

// NewServer creates a new API server with Echo v5. triggerSecret gates the
// two /internal/* scheduler endpoints.
func NewServer(s *store.Store, scanOrch *scan.Orchestrator, weeklyOrch *weekly.Orchestrator, triggerSecret string) *Server {
	e := echo.New()
	srv := &Server{
		echo:          e,
		store:         s,
		scanOrch:      scanOrch,
		weeklyOrch:    weeklyOrch,
		triggerSecret: triggerSecret,
	}
	srv.setupRoutes()
	return srv
}

// SetFindingsWriter wires the review endpoint's dependency. Must be called
// before Start/StartWithListener.
func (s *Server) SetFindingsWriter(w *findings.Writer) {
	s.findingsWriter = w
}

// ValidateWiring checks that every Set* dependency has been provided,
// catching wiring gaps at startup rather than as 500s at request time.
func (s *Server) ValidateWiring() error {
	var errs []error
	if s.findingsWriter == nil {
		errs = append(errs, fmt.Errorf("findingsWriter not set (call SetFindingsWriter)"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/healthz", s.healthHandler)

	internalGroup := s.echo.Group("/internal")
	internalGroup.Use(s.bearerAuth())
	internalGroup.POST("/scan", s.triggerScanHandler)
	internalGroup.POST("/weekly", s.triggerWeeklyHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/scan/trigger", s.triggerScanHandler)
	v1.POST("/review", s.reviewHandler)
	v1.GET("/overview", s.overviewHandler)
	v1.GET("/pages", s.listPagesHandler)
	v1.GET("/findings", s.listFindingsHandler)
	v1.GET("/trends", s.listTrendsHandler)
	v1.GET("/conversion-audit/latest", s.latestConversionAuditHandler)
}

// Start starts the HTTP server on the given address (non-blocking from the
// caller's perspective only in the sense that ListenAndServe blocks this
// goroutine — callers run it in its own goroutine).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests serving on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

const healthCheckTimeout = 5 * time.Second

// healthHandler handles GET /healthz: process + DB reachability. Unlike
// the teacher's health endpoint, sitewatch has no worker-pool/MCP
// equivalent to report — only the store connection matters here.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{
			Status: "unhealthy",
			Checks: map[string]HealthCheck{
				"database": {Status: "unhealthy", Message: err.Error()},
			},
		})
	}
	return c.JSON(http.StatusOK, &HealthResponse{
		Status: "healthy",
		Checks: map[string]HealthCheck{
			"database": {Status: "healthy"},
		},
	})
}
