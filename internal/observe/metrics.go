// Package observe provides application-wide observability primitives for
// phonalign: OpenTelemetry metrics, distributed tracing, trace-aware logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is set up by [InitProvider] and served by [MetricsHandler].
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// meterName is the instrumentation scope name used for all phonalign metrics.
const meterName = "github.com/MrWong99/phonalign"

// Lexicon lookup outcomes for [Metrics.RecordLexiconLookup].
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupShared = "shared"
	LookupError  = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisDuration tracks the latency of one complete analysis.
	AnalysisDuration metric.Float64Histogram

	// CoachDuration tracks feedback generation latency. Use with attribute:
	//   attribute.String("provider", ...)
	CoachDuration metric.Float64Histogram

	// --- Counters ---

	// WordsAnalyzed counts reference words. Use with attribute:
	//   attribute.Bool("correct", ...)
	WordsAnalyzed metric.Int64Counter

	// DrillWords counts words suggested for drilling.
	DrillWords metric.Int64Counter

	// SyllableFallbacks counts words whose syllabification degraded to a
	// single syllable.
	SyllableFallbacks metric.Int64Counter

	// LexiconLookups counts lexicon cache lookups. Use with attribute:
	//   attribute.String("result", hit|miss|shared|error)
	LexiconLookups metric.Int64Counter

	// CoachRequests counts feedback requests. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	CoachRequests metric.Int64Counter

	// HistoryWrites counts attempts to persist an analysis. Use with attribute:
	//   attribute.String("status", ...)
	HistoryWrites metric.Int64Counter

	// --- Gauges ---

	// ActiveAnalyses tracks analyses currently in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Analyses
// are CPU-bound and fast; feedback calls are network-bound and slow.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("phonalign.analysis.duration",
		metric.WithDescription("Latency of a complete pronunciation analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CoachDuration, err = m.Float64Histogram("phonalign.coach.duration",
		metric.WithDescription("Latency of coaching feedback generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WordsAnalyzed, err = m.Int64Counter("phonalign.words.analyzed",
		metric.WithDescription("Total reference words analysed, by correctness."),
	); err != nil {
		return nil, err
	}
	if met.DrillWords, err = m.Int64Counter("phonalign.words.drill",
		metric.WithDescription("Total words suggested for drilling."),
	); err != nil {
		return nil, err
	}
	if met.SyllableFallbacks, err = m.Int64Counter("phonalign.syllable.fallbacks",
		metric.WithDescription("Total syllabifications that fell back to a single syllable."),
	); err != nil {
		return nil, err
	}
	if met.LexiconLookups, err = m.Int64Counter("phonalign.lexicon.lookups",
		metric.WithDescription("Total lexicon cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.CoachRequests, err = m.Int64Counter("phonalign.coach.requests",
		metric.WithDescription("Total coaching feedback requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.HistoryWrites, err = m.Int64Counter("phonalign.history.writes",
		metric.WithDescription("Total analysis history writes by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveAnalyses, err = m.Int64UpDownCounter("phonalign.active_analyses",
		metric.WithDescription("Number of analyses currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("phonalign.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// ObserveAnalysis records one completed analysis. It implements
// [pronunciation.Observer].
func (m *Metrics) ObserveAnalysis(ctx context.Context, s pronunciation.Stats) {
	m.AnalysisDuration.Record(ctx, s.Duration.Seconds())
	if s.CorrectWords > 0 {
		m.WordsAnalyzed.Add(ctx, int64(s.CorrectWords), metric.WithAttributes(attribute.Bool("correct", true)))
	}
	if wrong := s.Words - s.CorrectWords; wrong > 0 {
		m.WordsAnalyzed.Add(ctx, int64(wrong), metric.WithAttributes(attribute.Bool("correct", false)))
	}
	if s.DrillWords > 0 {
		m.DrillWords.Add(ctx, int64(s.DrillWords))
	}
	if s.SyllableFallbacks > 0 {
		m.SyllableFallbacks.Add(ctx, int64(s.SyllableFallbacks))
	}
}

// RecordLexiconLookup records one lexicon cache lookup.
func (m *Metrics) RecordLexiconLookup(ctx context.Context, result string) {
	m.LexiconLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordCoachRequest records one feedback request and its latency.
func (m *Metrics) RecordCoachRequest(ctx context.Context, provider, status string, d time.Duration) {
	m.CoachRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.CoachDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordHistoryWrite records one attempt to persist an analysis.
func (m *Metrics) RecordHistoryWrite(ctx context.Context, status string) {
	m.HistoryWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
