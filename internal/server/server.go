// Package server exposes scans over HTTP for the mobile bridge and local
// dashboards: a blocking JSON endpoint and an SSE endpoint that streams
// chunks as the generator produces them.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/qrs-ai/roadscan/internal/generate"
	"github.com/qrs-ai/roadscan/internal/history"
	"github.com/qrs-ai/roadscan/internal/logging"
	"github.com/qrs-ai/roadscan/internal/scan"
)

const (
	defaultScanTimeout = 2 * time.Minute
	heartbeatInterval  = 15 * time.Second
	streamBuffer       = 64
	shutdownGrace      = 10 * time.Second
)

// Scanner runs one scan. *scan.Scanner implements it.
type Scanner interface {
	Scan(ctx context.Context, fix scan.Fix, sink generate.Sink) (*scan.Report, error)
}

// HistoryReader lists recent scans. *history.Store implements it.
type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]history.Record, error)
}

// Config wires a Server. Scanner is passed to New separately.
type Config struct {
	Addr        string
	CORSOrigins []string
	// DefaultFix is used when a request carries no coordinates.
	DefaultFix  scan.Fix
	ScanTimeout time.Duration
	// Ready probes the backend for GET /api/status. Nil reports ready.
	Ready   func(ctx context.Context) error
	History HistoryReader
	Logger  *logging.Logger
}

type Server struct {
	scanner Scanner
	cfg     Config
	log     *logging.Logger
	engine  *gin.Engine
}

func New(scanner Scanner, cfg Config) *Server {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = defaultScanTimeout
	}
	if cfg.DefaultFix == (scan.Fix{}) || !cfg.DefaultFix.Valid() {
		cfg.DefaultFix = scan.DefaultFix
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{scanner: scanner, cfg: cfg, log: log.With("component", "server")}
	s.engine = s.newRouter()
	return s
}

// Handler returns the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	if len(s.cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "X-Requested-With"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthz)
	api := router.Group("/api")
	{
		api.GET("/status", s.status)
		api.POST("/scan", s.scanJSON)
		api.GET("/scan/stream", s.scanStream)
		api.GET("/history", s.recent)
	}
	return router
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
