// Command phonalign serves the pronunciation analysis API, or analyses a
// single request from a file when run with -analyze.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/phonalign/internal/app"
	"github.com/MrWong99/phonalign/internal/coach"
	"github.com/MrWong99/phonalign/internal/config"
	"github.com/MrWong99/phonalign/internal/lexicon"
	"github.com/MrWong99/phonalign/internal/observe"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

const defaultConfigPath = "phonalign.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	analyzePath := flag.String("analyze", "", "analyse one JSON request from this file (- for stdin) and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && *analyzePath != "" && *configPath == defaultConfigPath:
		cfg = config.Default()
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(os.Stderr, "phonalign: config file %q not found\n", *configPath)
		return 1
	default:
		fmt.Fprintf(os.Stderr, "phonalign: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(level))

	if *analyzePath != "" {
		return analyzeOnce(cfg, *analyzePath)
	}
	return serve(cfg, *configPath, level)
}

// ── Serve mode ────────────────────────────────────────────────────────────────

func serve(cfg *config.Config, configPath string, level *slog.LevelVar) int {
	slog.Info("phonalign starting",
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: cfg.Telemetry.ServiceName})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerCoachProviders(reg)

	application, err := app.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(configPath, func(_, next *config.Config) {
		level.Set(slogLevel(next.Server.LogLevel))
		d, err := application.ApplyConfig(next)
		if err != nil {
			slog.Error("config reload partially failed", "err", err)
			return
		}
		slog.Info("config reloaded",
			"engine", d.EngineChanged,
			"lexicon", d.LexiconChanged,
			"coach", d.CoachChanged,
		)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := watcher.Reload(); err != nil {
					slog.Error("config reload failed", "err", err)
				}
			}
		}
	}()

	slog.Info("server ready, press Ctrl+C to shut down")

	exit := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exit = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	return exit
}

// registerCoachProviders registers every built-in coach backend.
func registerCoachProviders(reg *config.Registry) {
	for _, name := range coach.Providers {
		reg.RegisterCoach(name, func(c config.CoachConfig) (coach.Completer, error) {
			var opts []anyllmlib.Option
			if c.APIKey != "" && name != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(c.APIKey))
			}
			if c.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(c.BaseURL))
			}
			p, err := coach.NewAnyLLM(name, c.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}
	reg.RegisterCoach(coach.OpenAICompatible, func(c config.CoachConfig) (coach.Completer, error) {
		var opts []coach.OpenAIOption
		if c.APIKey != "" {
			opts = append(opts, coach.WithAPIKey(c.APIKey))
		}
		if c.Timeout > 0 {
			opts = append(opts, coach.WithHTTPTimeout(c.Timeout))
		}
		p, err := coach.NewOpenAI(c.BaseURL, c.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// ── Analyze mode ──────────────────────────────────────────────────────────────

// analyzeInput is the JSON accepted by -analyze. Text is resolved through the
// configured dictionaries when no lexicon is given.
type analyzeInput struct {
	pronunciation.Request
	Text     string `json:"text"`
	Language string `json:"language"`
}

func analyzeOnce(cfg *config.Config, path string) int {
	in, err := readInput(path)
	if err != nil {
		slog.Error("failed to read request", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(in.Lexicon) == 0 {
		if in.Text == "" {
			slog.Error("request needs a lexicon or text")
			return 1
		}
		paths := make(map[string]string, len(cfg.Lexicon.Dictionaries))
		for _, d := range cfg.Lexicon.Dictionaries {
			paths[d.Language] = d.Path
		}
		dicts, err := lexicon.OpenDictionaries(cfg.Lexicon.DefaultLanguage, paths)
		if err != nil {
			slog.Error("failed to load dictionaries", "err", err)
			return 1
		}
		in.Lexicon, err = dicts.Lookup(ctx, in.Text, in.Language)
		if err != nil {
			slog.Error("lexicon lookup failed", "err", err)
			return 1
		}
	}

	opts, err := cfg.Engine.AnalyzerOptions()
	if err != nil {
		slog.Error("invalid engine config", "err", err)
		return 1
	}
	analyzer, err := pronunciation.NewAnalyzer(opts...)
	if err != nil {
		slog.Error("failed to build analyzer", "err", err)
		return 1
	}

	analysis, err := analyzer.Analyze(ctx, in.Request)
	if err != nil {
		slog.Error("analysis failed", "err", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(analysis); err != nil {
		slog.Error("failed to write result", "err", err)
		return 1
	}
	return 0
}

func readInput(path string) (*analyzeInput, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var in analyzeInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &in, nil
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
