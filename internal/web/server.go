// Package web serves the health checks and the history browsing and restore
// endpoints as JSON and raw file content.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vault-backup/internal/vb"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 1000
	defaultRunLimit = 20
	listingCacheMax = 32
)

// HealthReporter produces the /health document.
type HealthReporter interface {
	Report(ctx context.Context) (*vb.HealthReport, error)
}

// RunLister reads recent backup runs.
type RunLister interface {
	RecentRuns(limit int) ([]*vb.RunRecord, error)
}

// Options holds the collaborators behind the HTTP surface.
// Runs may be nil, in which case /ui/runs returns an empty list.
type Options struct {
	Root       string
	Git        vb.GitHistory
	Snapshots  vb.SnapshotHistory
	Resolver   *vb.Resolver
	Restorer   *vb.Restorer
	Health     HealthReporter
	Runs       RunLister
	DefaultTag string
	Logger     vb.Logger
}

// Server implements the HTTP handlers.
type Server struct {
	opts     Options
	listings *listingCache
	logger   vb.Logger
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = vb.NewNopLogger()
	}
	return &Server{
		opts:     opts,
		listings: newListingCache(listingCacheMax),
		logger:   logger,
	}
}

// Handler returns the chi router for all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/ui", func(r chi.Router) {
		r.Get("/log", s.handleLog)
		r.Get("/commits/{ref}", s.handleCommit)
		r.Get("/commits/{ref}/files", s.handleCommitFiles)
		r.Get("/commits/{ref}/diff", s.handleCommitDiff)
		r.Get("/snapshots", s.handleSnapshots)
		r.Get("/files", s.handleFiles)
		r.Get("/preview", s.handlePreview)
		r.Get("/download", s.handleDownload)
		r.Post("/restore", s.handleRestore)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

// NewHTTPServer wraps handler with the timeouts used by serve.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
