// Package api exposes the operator HTTP interface of the monitor.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/metrics"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	requestTimeout    = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxRequestBody    = 1 << 20
)

// CrawlService is the part of the scheduler the API drives.
type CrawlService interface {
	TriggerManualCrawl(ctx context.Context, siteID string) (models.CrawlJob, error)
	GetHistory(ctx context.Context, siteID string, limit int) (*models.History, error)
	Reschedule(ctx context.Context, siteID string) error
}

// Server wires HTTP handlers to the scheduler and stores.
type Server struct {
	router   chi.Router
	store    models.MetadataStore
	crawls   CrawlService
	backups  models.BackupStore
	metrics  *metrics.Metrics
	validate *validator.Validate
	addr     string
	logger   zerolog.Logger

	httpServer *http.Server
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", s.healthz)

	r.Route("/sites", func(r chi.Router) {
		r.Get("/", s.listSites)
		r.Post("/", s.createSite)
		r.Route("/{siteID}", func(r chi.Router) {
			r.Get("/", s.getSite)
			r.Patch("/", s.updateSite)
			r.Delete("/", s.deleteSite)
			r.Post("/crawl", s.triggerCrawl)
			r.Get("/history", s.getHistory)
			r.Get("/diffs/{diffID}/html", s.diffReport)
		})
	})
	r.Get("/snapshots/{hash}", s.getSnapshot)

	s.router = r
}

// Handler returns the router for use with http.Server or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return common.WrapErrorf(err, "failed to listen on %s", s.addr)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Operator API listening")
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return common.WrapError(err, "operator API stopped")
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down operator API")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// ServerBuilder provides a fluent interface for creating Server instances
type ServerBuilder struct {
	store   models.MetadataStore
	crawls  CrawlService
	backups models.BackupStore
	metrics *metrics.Metrics
	addr    string
	logger  zerolog.Logger
}

// NewServerBuilder creates a new ServerBuilder
func NewServerBuilder(logger zerolog.Logger) *ServerBuilder {
	return &ServerBuilder{
		addr:   config.DefaultAPIListenAddr,
		logger: logger.With().Str("component", "API").Logger(),
	}
}

// WithStore sets the metadata store
func (b *ServerBuilder) WithStore(store models.MetadataStore) *ServerBuilder {
	b.store = store
	return b
}

// WithCrawlService sets the manual trigger and history provider
func (b *ServerBuilder) WithCrawlService(crawls CrawlService) *ServerBuilder {
	b.crawls = crawls
	return b
}

// WithBackupStore sets the snapshot byte store
func (b *ServerBuilder) WithBackupStore(backups models.BackupStore) *ServerBuilder {
	b.backups = backups
	return b
}

// WithMetrics enables /metrics and request instrumentation
func (b *ServerBuilder) WithMetrics(m *metrics.Metrics) *ServerBuilder {
	b.metrics = m
	return b
}

// WithAPIConfig sets the listen address
func (b *ServerBuilder) WithAPIConfig(cfg config.APIConfig) *ServerBuilder {
	if cfg.ListenAddr != "" {
		b.addr = cfg.ListenAddr
	}
	return b
}

// Build creates a new Server instance
func (b *ServerBuilder) Build() (*Server, error) {
	switch {
	case b.store == nil:
		return nil, common.NewValidationError("store", nil, "metadata store cannot be nil")
	case b.crawls == nil:
		return nil, common.NewValidationError("crawl_service", nil, "crawl service cannot be nil")
	case b.backups == nil:
		return nil, common.NewValidationError("backup_store", nil, "backup store cannot be nil")
	}

	s := &Server{
		store:    b.store,
		crawls:   b.crawls,
		backups:  b.backups,
		metrics:  b.metrics,
		validate: validator.New(),
		addr:     b.addr,
		logger:   b.logger,
	}
	s.routes()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}
