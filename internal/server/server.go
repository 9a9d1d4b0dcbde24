// Package server exposes the ingestion and query pipelines over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glinthq/onboardrag/internal/answer"
	"github.com/glinthq/onboardrag/internal/ingest"
	"github.com/glinthq/onboardrag/internal/stats"
	"github.com/glinthq/onboardrag/internal/store"
)

// DefaultMaxUploadBytes caps PDF uploads at 50 MiB.
const DefaultMaxUploadBytes = 50 << 20

// Config configures the HTTP server.
type Config struct {
	Addr           string
	MaxUploadBytes int64
}

// Server wires the HTTP routes to the core services.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	ingestor *ingest.Ingestor
	answerer *answer.Answerer
	stats    *stats.Service
	store    store.Store

	httpServer *http.Server
}

// New creates a server. A nil logger falls back to slog.Default.
func New(cfg Config, ingestor *ingest.Ingestor, answerer *answer.Answerer, statsSvc *stats.Service, st store.Store, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		ingestor: ingestor,
		answerer: answerer,
		stats:    statsSvc,
		store:    st,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.handleUploadDocument)
			r.Get("/", s.handleListDocuments)
			r.Delete("/{documentID}", s.handleDeleteDocument)
			r.Post("/{documentID}/reprocess", s.handleReprocessDocument)
		})
		r.Post("/reprocess", s.handleReprocessAll)
		r.Post("/query", s.handleQuery)
		r.Get("/stats", s.handleStats)
		r.Route("/tags", func(r chi.Router) {
			r.Post("/", s.handleCreateTag)
			r.Get("/", s.handleListTags)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// requestLogger records one line per request with status and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(started)))
	})
}
