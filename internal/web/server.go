// Package web serves the single-page chat UI over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"
)

// SessionCookie names the cookie carrying the browser's session id.
const SessionCookie = "mychat_session"

// PageTitle is shown in the browser tab and page header.
const PageTitle = "My ChatGPT"

// ModelResolver maps a UI tier and temperature to a provider model.
type ModelResolver interface {
	ModelFor(tier chattypes.Tier, temperature float64) (chattypes.ModelConfig, error)
	TierLabel(tier chattypes.Tier) string
}

// HTMLRenderer turns message markdown into safe HTML.
type HTMLRenderer interface {
	RenderHTML(markdown string) (template.HTML, error)
}

// TrafficRecorder exposes captured provider HTTP exchanges.
type TrafficRecorder interface {
	CapturedJSON() (string, error)
}

// Options configure a Server.
type Options struct {
	Addr      string
	Store     *Store
	Completer chattypes.Completer
	Models    ModelResolver
	Markdown  HTMLRenderer
	// Debug, when set, is served at GET /api/debug.
	Debug TrafficRecorder

	// Reported by /health.
	Version        string
	Development    bool
	CatalogVersion string
	// SweepInterval controls how often idle sessions are dropped. Zero uses one minute.
	SweepInterval time.Duration
}

// Server is the web UI shell.
type Server struct {
	opts Options
	page *template.Template
	log  *log.Logger
}

// NewServer validates opts and parses the page template.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Completer == nil || opts.Models == nil {
		return nil, errors.New("web server requires a store, a completer and a model resolver")
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	page, err := parsePageTemplate()
	if err != nil {
		return nil, err
	}
	return &Server{opts: opts, page: page, log: logger.NewStyledLogger("Web")}, nil
}

// Handler returns the routed, logged HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /api/session", s.handleSessionAPI)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.opts.Debug != nil {
		mux.HandleFunc("GET /api/debug", s.handleDebug)
	}
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.opts.Store.RunSweeper(sweepCtx, s.opts.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown failed: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
