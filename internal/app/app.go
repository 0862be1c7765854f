// Package app wires the phonalign subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the analyzer, lexicon,
// coach and history store from the config, Run serves HTTP until the context
// ends, ApplyConfig swaps hot-reloadable parts, and Shutdown tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithHistoryStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/phonalign/internal/coach"
	"github.com/MrWong99/phonalign/internal/config"
	"github.com/MrWong99/phonalign/internal/health"
	"github.com/MrWong99/phonalign/internal/history"
	"github.com/MrWong99/phonalign/internal/lexicon"
	"github.com/MrWong99/phonalign/internal/observe"
	"github.com/MrWong99/phonalign/internal/server"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	reg     *config.Registry
	metrics *observe.Metrics

	mu  sync.Mutex // guards cfg
	cfg *config.Config

	history history.Store
	health  *health.Handler
	server  *server.Server
	http    *http.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistoryStore injects a history store instead of creating one from config.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithMetrics injects the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// pinger is implemented by stores that can report their reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. reg resolves the coach provider and may be nil
// when cfg configures no coach.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, reg: reg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. History store ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 2. Analyzer ──────────────────────────────────────────────────────
	analyzer, err := a.buildAnalyzer(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("app: init analyzer: %w", err)
	}

	// ── 3. Lexicon ───────────────────────────────────────────────────────
	lex, err := a.buildLexicon(cfg.Lexicon)
	if err != nil {
		return nil, fmt.Errorf("app: init lexicon: %w", err)
	}

	// ── 4. Coach ─────────────────────────────────────────────────────────
	c, err := a.buildCoach(cfg.Coach)
	if err != nil {
		return nil, fmt.Errorf("app: init coach: %w", err)
	}

	// ── 5. Health ────────────────────────────────────────────────────────
	var checkers []health.Checker
	if p, ok := a.history.(pinger); ok {
		checkers = append(checkers, health.Checker{Name: "history", Check: p.Ping})
	}
	a.health = health.New(checkers...)

	// ── 6. HTTP ──────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithHistory(a.history),
		server.WithHealth(a.health),
		server.WithMetrics(a.metrics),
		server.WithMetricsPath(cfg.Telemetry.MetricsPath),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if lex != nil {
		srvOpts = append(srvOpts, server.WithLexicon(lex))
	}
	if c != nil {
		srvOpts = append(srvOpts, server.WithCoach(c))
	}
	a.server = server.New(analyzer, srvOpts...)
	a.http = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initHistory connects the PostgreSQL store or falls back to memory.
func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}
	dsn := a.cfg.History.PostgresDSN
	if dsn == "" {
		a.history = history.NewMemStore(a.cfg.History.MaxEntries)
		slog.Info("history kept in memory", "max_entries", a.cfg.History.MaxEntries)
		return nil
	}
	store, err := history.NewPostgresStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.history = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

func (a *App) buildAnalyzer(e config.EngineConfig) (*pronunciation.Analyzer, error) {
	opts, err := e.AnalyzerOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, pronunciation.WithObserver(a.metrics))
	return pronunciation.NewAnalyzer(opts...)
}

// buildLexicon loads the dictionaries behind a lookup cache. It returns nil
// when no dictionary is configured.
func (a *App) buildLexicon(l config.LexiconConfig) (lexicon.Provider, error) {
	if len(l.Dictionaries) == 0 {
		return nil, nil
	}
	paths := make(map[string]string, len(l.Dictionaries))
	for _, d := range l.Dictionaries {
		paths[d.Language] = d.Path
	}
	multi, err := lexicon.OpenDictionaries(l.DefaultLanguage, paths)
	if err != nil {
		return nil, err
	}
	slog.Info("lexicon loaded", "languages", multi.Languages(), "default", l.DefaultLanguage)
	return lexicon.NewCache(multi, lexicon.WithSize(l.CacheSize), lexicon.WithMetrics(a.metrics)), nil
}

// buildCoach creates the feedback coach. It returns nil when no provider is
// configured.
func (a *App) buildCoach(c config.CoachConfig) (*coach.Coach, error) {
	if c.Provider == "" {
		return nil, nil
	}
	if a.reg == nil {
		return nil, fmt.Errorf("%w: coach/%q", config.ErrProviderNotRegistered, c.Provider)
	}
	completer, err := a.reg.CreateCoach(c)
	if err != nil {
		return nil, err
	}
	slog.Info("coach enabled", "provider", c.Provider, "model", c.Model)
	return coach.New(completer,
		coach.WithProvider(c.Provider),
		coach.WithTimeout(c.Timeout),
		coach.WithMaxTokens(c.MaxTokens),
		coach.WithTemperature(c.Temperature),
		coach.WithMetrics(a.metrics),
	), nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Handler returns the HTTP handler. Useful for tests.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

// Run listens on the configured address and serves until ctx is cancelled.
// It returns ctx.Err() after a cancellation and the listener error otherwise.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.http.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.http.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled. It does not shut the
// server down; call [App.Shutdown] for that.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.mu.Lock()
	tls := a.cfg.Server.TLS
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls != nil {
			err = a.http.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.http.Serve(ln)
		}
		errCh <- err
	}()

	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", tls != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig swaps every hot-reloadable section in which next differs from
// the running config. Settings that need a restart are logged and left alone.
// A section that fails to rebuild keeps its previous value; the others are
// still applied.
func (a *App) ApplyConfig(next *config.Config) (config.ConfigDiff, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	d := config.Diff(a.cfg, next)
	applied := *a.cfg
	applied.Server.LogLevel = next.Server.LogLevel

	var errs []error
	if d.EngineChanged {
		if an, err := a.buildAnalyzer(next.Engine); err != nil {
			errs = append(errs, fmt.Errorf("engine: %w", err))
		} else {
			a.server.SetAnalyzer(an)
			applied.Engine = next.Engine
			slog.Info("engine reloaded")
		}
	}
	if d.LexiconChanged {
		if lex, err := a.buildLexicon(next.Lexicon); err != nil {
			errs = append(errs, fmt.Errorf("lexicon: %w", err))
		} else {
			a.server.SetLexicon(lex)
			applied.Lexicon = next.Lexicon
		}
	}
	if d.CoachChanged {
		if c, err := a.buildCoach(next.Coach); err != nil {
			errs = append(errs, fmt.Errorf("coach: %w", err))
		} else {
			a.server.SetCoach(c)
			applied.Coach = next.Coach
			if c == nil {
				slog.Info("coach disabled")
			}
		}
	}
	for _, key := range d.RestartRequired {
		slog.Warn("config change requires a restart to take effect", "setting", key)
	}

	a.cfg = &applied
	if len(errs) > 0 {
		return d, fmt.Errorf("app: apply config: %w", errors.Join(errs...))
	}
	return d, nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown marks the app as draining, stops accepting requests, waits for
// in-flight ones within ctx's deadline, then runs the closers. If ctx expires
// first, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.health.SetDraining(true)

		if err := a.http.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
