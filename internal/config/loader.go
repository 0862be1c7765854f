package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/phonalign/internal/coach"
)

// Defaults applied by [LoadFromReader] to fields left empty.
const (
	DefaultListenAddr      = ":8080"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = 10 * time.Second
	DefaultCacheSize       = 4096
	DefaultHistoryEntries  = 1000
	DefaultCoachTimeout    = 30 * time.Second
	DefaultMetricsPath     = "/metrics"
	DefaultServiceName     = "phonalign"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills empty fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Lexicon.CacheSize == 0 {
		cfg.Lexicon.CacheSize = DefaultCacheSize
	}
	if cfg.Lexicon.DefaultLanguage == "" && len(cfg.Lexicon.Dictionaries) > 0 {
		cfg.Lexicon.DefaultLanguage = cfg.Lexicon.Dictionaries[0].Language
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = DefaultHistoryEntries
	}
	if cfg.Coach.Timeout == 0 {
		cfg.Coach.Timeout = DefaultCoachTimeout
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = DefaultMetricsPath
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes %d must not be negative", cfg.Server.MaxBodyBytes))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateLexicon(&cfg.Lexicon)...)

	// Coach
	if cfg.Coach.Provider != "" {
		validateCoachProvider(cfg.Coach.Provider)
		if cfg.Coach.Model == "" {
			errs = append(errs, fmt.Errorf("coach.model is required when coach.provider is %q", cfg.Coach.Provider))
		}
		if cfg.Coach.Provider == coach.OpenAICompatible && cfg.Coach.BaseURL == "" {
			errs = append(errs, fmt.Errorf("coach.base_url is required when coach.provider is %q", coach.OpenAICompatible))
		}
	}
	if cfg.Coach.Timeout < 0 {
		errs = append(errs, fmt.Errorf("coach.timeout %s must not be negative", cfg.Coach.Timeout))
	}
	if cfg.Coach.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("coach.max_tokens %d must not be negative", cfg.Coach.MaxTokens))
	}
	if cfg.Coach.Temperature < 0 || cfg.Coach.Temperature > 2 {
		errs = append(errs, fmt.Errorf("coach.temperature %.2f is out of range [0, 2]", cfg.Coach.Temperature))
	}

	// History
	if cfg.History.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("history.max_entries %d must not be negative", cfg.History.MaxEntries))
	}

	// Telemetry
	if cfg.Telemetry.MetricsPath != "" && !strings.HasPrefix(cfg.Telemetry.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", cfg.Telemetry.MetricsPath))
	}

	return errors.Join(errs...)
}

func validateEngine(e *EngineConfig) []error {
	var errs []error
	if e.Scoring != nil {
		if err := e.Scoring.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("engine.scoring: %w", err))
		} else if e.Scoring.Gap*2 < e.Scoring.Match+2*e.Scoring.Substitution {
			slog.Warn("engine.scoring gap penalty is low; a word's error count may exceed the longer of its two sequences",
				"match", e.Scoring.Match,
				"substitution", e.Scoring.Substitution,
				"gap", e.Scoring.Gap,
			)
		}
	}
	if t := e.DrillThreshold; t != nil && (*t < 0 || *t > 100) {
		errs = append(errs, fmt.Errorf("engine.drill_threshold %.2f is out of range [0, 100]", *t))
	}
	if e.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers %d must not be negative", e.Workers))
	}
	if e.Exceptions != nil {
		if err := e.Exceptions.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("engine.exceptions: %w", err))
		}
	}
	if t := e.Heard.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("engine.heard.phonetic_threshold %.2f is out of range [0, 1]", t))
	}
	if t := e.Heard.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("engine.heard.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}
	if e.Strict {
		slog.Warn("engine.strict is enabled; invariant violations will crash the process")
	}
	return errs
}

func validateLexicon(l *LexiconConfig) []error {
	var errs []error
	seen := make(map[string]int, len(l.Dictionaries))
	for i, d := range l.Dictionaries {
		prefix := fmt.Sprintf("lexicon.dictionaries[%d]", i)
		if d.Language == "" {
			errs = append(errs, fmt.Errorf("%s.language is required", prefix))
		} else {
			key := strings.ToLower(d.Language)
			if prev, ok := seen[key]; ok {
				errs = append(errs, fmt.Errorf("%s.language %q is a duplicate of lexicon.dictionaries[%d]", prefix, d.Language, prev))
			}
			seen[key] = i
		}
		if d.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required", prefix))
		}
	}
	if l.DefaultLanguage != "" && len(l.Dictionaries) > 0 {
		if _, ok := seen[strings.ToLower(l.DefaultLanguage)]; !ok {
			errs = append(errs, fmt.Errorf("lexicon.default_language %q has no dictionary", l.DefaultLanguage))
		}
	}
	if len(l.Dictionaries) == 0 {
		slog.Warn("lexicon.dictionaries is empty; requests must carry their own lexicon")
	}
	if l.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("lexicon.cache_size %d must not be negative", l.CacheSize))
	}
	return errs
}

// validateCoachProvider logs a warning if name is not a built-in provider.
func validateCoachProvider(name string) {
	if name == coach.OpenAICompatible || slices.Contains(coach.Providers, name) {
		return
	}
	slog.Warn("unknown coach provider name; may be a typo or third-party provider",
		"name", name,
		"known", coach.Providers,
	)
}
