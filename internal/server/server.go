// Package server exposes a small read-only status endpoint for a running
// job loop.
//
// Routes:
//
//	GET /healthz     liveness and build version
//	GET /stats       job counters since start
//	GET /categories  placement rules and base image availability
//	GET /categories/{category}
package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/mockup/pkg/buildinfo"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/observability"
	"github.com/matzehuels/mockup/pkg/placement"
)

const shutdownTimeout = 5 * time.Second

// Rules lists placement rules. *placement.Registry satisfies it.
type Rules interface {
	Categories() []string
	Lookup(category string) (placement.Rule, error)
}

// Bases reports base image availability. *catalog.Catalog satisfies it.
type Bases interface {
	Lookup(category string) (image.Image, error)
}

// Options configures a Server.
type Options struct {
	Addr     string
	Counters *observability.Counters
	Rules    Rules
	Bases    Bases

	// Dropped, if set, reports malformed payloads discarded by the source.
	Dropped func() int64

	Logger *log.Logger
}

// Server serves the status routes.
type Server struct {
	opts    Options
	started time.Time
}

// New creates a server. Counters and Rules are required.
func New(opts Options) (*Server, error) {
	if opts.Counters == nil || opts.Rules == nil {
		return nil, errs.New(errs.ErrCodeConfig, "status server requires counters and rules")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Server{opts: opts, started: time.Now()}, nil
}

// Handler returns the router with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/stats", s.stats)
	r.Get("/categories", s.categories)
	r.Get("/categories/{category}", s.category)
	return r
}

// Listen binds the configured address. A failure is a CONFIG error.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeConfig, err, "listen on %s", s.opts.Addr)
	}
	return ln, nil
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.opts.Logger.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: buildinfo.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

type statsResponse struct {
	observability.Snapshot
	Dropped int64 `json:"dropped"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Snapshot: s.opts.Counters.Snapshot()}
	if s.opts.Dropped != nil {
		resp.Dropped = s.opts.Dropped()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CategoryResponse describes one placement rule.
type CategoryResponse struct {
	Category string `json:"category"`
	Label    string `json:"label,omitempty"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	HasBase  bool   `json:"has_base"`
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	cats := s.opts.Rules.Categories()
	out := make([]CategoryResponse, 0, len(cats))
	for _, c := range cats {
		rule, err := s.opts.Rules.Lookup(c)
		if err != nil {
			continue
		}
		out = append(out, s.describe(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) category(w http.ResponseWriter, r *http.Request) {
	rule, err := s.opts.Rules.Lookup(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.describe(rule))
}

func (s *Server) describe(rule placement.Rule) CategoryResponse {
	resp := CategoryResponse{
		Category: rule.Category,
		Label:    rule.Label,
		Width:    rule.Width,
		Height:   rule.Height,
		X:        rule.X,
		Y:        rule.Y,
	}
	if s.opts.Bases != nil {
		_, err := s.opts.Bases.Lookup(rule.Category)
		resp.HasBase = err == nil
	}
	return resp
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("status request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error: errs.UserMessage(err),
		Code:  string(errs.GetCode(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
