package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/retryguard/internal/core/domain"
	"github.com/vietddude/retryguard/internal/failure"
	"github.com/vietddude/retryguard/internal/infra/storage/postgres"
	"github.com/vietddude/retryguard/internal/metrics"
	"github.com/vietddude/retryguard/internal/rules"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a health check function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// FailureLister lists reported failures.
type FailureLister interface {
	Recent(ctx context.Context, limit int) ([]*postgres.FailureRecord, error)
}

// RuleCache is the rule list as the API sees it.
type RuleCache interface {
	rules.Source
	Refresh(ctx context.Context) error
	Version() int64
}

// Deps are the components the API reads from. Failures and Guard may be nil.
type Deps struct {
	Store    failure.Store
	Health   map[string]Pinger
	Rules    RuleCache
	Failures FailureLister
	Guard    FailureHandler
	Logger   *slog.Logger
}

// Server serves the operations API.
type Server struct {
	deps   Deps
	server *http.Server
}

// New creates a server listening on port.
func New(deps Deps, port int) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.deps.Logger))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/failures", s.handleRecentFailures)
		r.Post("/failures", s.handleReportFailure)
		r.Get("/failures/{retryKey}", s.handleSnapshot)
		r.Post("/decisions", s.handleDecide)
		r.Get("/rules", s.handleRules)
		r.Post("/rules/refresh", s.handleRefresh)
	})
	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Health))
	for name, p := range s.deps.Health {
		if err := p.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "critical"
	}
	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	retryKey := chi.URLParam(r, "retryKey")
	snap, err := failure.LookupSnapshot(r.Context(), s.deps.Store, retryKey)
	if errors.Is(err, domain.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":     failure.FailureKey(retryKey),
		"failure": snap,
	})
}

func (s *Server) handleRecentFailures(w http.ResponseWriter, r *http.Request) {
	if s.deps.Failures == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no failure database configured"))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	records, err := s.deps.Failures.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": records})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Rules.Rules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.deps.Rules.Version(),
		"rules":   rules.Describe(list),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Rules.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	list, err := s.deps.Rules.Rules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	metrics.RulesLoaded.Set(float64(len(list)))
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.deps.Rules.Version(),
		"count":   len(list),
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
