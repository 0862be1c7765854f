// Package server exposes the pronunciation analyzer over HTTP.
//
// Routes:
//
//	POST /v1/analyze        analyse one utterance, optionally with coaching feedback
//	GET  /v1/history        most recent analyses, newest first (?limit=N)
//	GET  /v1/history/{id}   one stored analysis
//	GET  /healthz, /readyz  liveness and readiness
//	GET  <metrics path>     Prometheus metrics
//
// The analyzer, lexicon and coach can be swapped at runtime with the Set
// methods; in-flight requests keep the instances they started with.
package server

import (
	"net/http"
	"sync/atomic"

	"github.com/MrWong99/phonalign/internal/coach"
	"github.com/MrWong99/phonalign/internal/health"
	"github.com/MrWong99/phonalign/internal/history"
	"github.com/MrWong99/phonalign/internal/lexicon"
	"github.com/MrWong99/phonalign/internal/observe"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// DefaultMaxBodyBytes caps an analysis request body when no limit is set.
const DefaultMaxBodyBytes = 1 << 20

// lexiconRef wraps the provider so it fits in an [atomic.Pointer].
type lexiconRef struct{ lexicon.Provider }

// Option configures a [Server].
type Option func(*Server)

// WithLexicon sets the provider resolving plain-text requests.
func WithLexicon(p lexicon.Provider) Option {
	return func(s *Server) { s.SetLexicon(p) }
}

// WithCoach enables feedback generation.
func WithCoach(c *coach.Coach) Option {
	return func(s *Server) { s.SetCoach(c) }
}

// WithHistory sets the analysis log. Default: an in-memory store with
// [history.NewMemStore]'s default capacity.
func WithHistory(h history.Store) Option {
	return func(s *Server) { s.history = h }
}

// WithHealth mounts h on /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsPath serves Prometheus metrics on path. Empty disables the route.
func WithMetricsPath(path string) Option {
	return func(s *Server) { s.metricsPath = path }
}

// WithMaxBodyBytes caps request bodies. Values <= 0 select
// [DefaultMaxBodyBytes].
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// Server holds the HTTP handlers and their collaborators. It is safe for
// concurrent use.
type Server struct {
	analyzer atomic.Pointer[pronunciation.Analyzer]
	lexicon  atomic.Pointer[lexiconRef]
	coach    atomic.Pointer[coach.Coach]

	history     history.Store
	health      *health.Handler
	metrics     *observe.Metrics
	metricsPath string
	maxBody     int64
}

// New returns a [Server] analysing with a.
func New(a *pronunciation.Analyzer, opts ...Option) *Server {
	s := &Server{maxBody: DefaultMaxBodyBytes}
	s.analyzer.Store(a)
	for _, o := range opts {
		o(s)
	}
	if s.history == nil {
		s.history = history.NewMemStore(0)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetAnalyzer replaces the analyzer used by subsequent requests.
func (s *Server) SetAnalyzer(a *pronunciation.Analyzer) {
	s.analyzer.Store(a)
}

// SetLexicon replaces the lexicon. A nil provider disables plain-text
// requests.
func (s *Server) SetLexicon(p lexicon.Provider) {
	if p == nil {
		s.lexicon.Store(nil)
		return
	}
	s.lexicon.Store(&lexiconRef{p})
}

// SetCoach replaces the feedback coach. Nil disables feedback.
func (s *Server) SetCoach(c *coach.Coach) {
	s.coach.Store(c)
}

// Handler returns the routed handler wrapped in [observe.Middleware].
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/history/{id}", s.handleHistoryRecord)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, observe.MetricsHandler())
	}
	return observe.Middleware(s.metrics)(mux)
}

func (s *Server) currentLexicon() lexicon.Provider {
	if ref := s.lexicon.Load(); ref != nil {
		return ref.Provider
	}
	return nil
}
