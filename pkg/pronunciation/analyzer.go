package pronunciation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/phonalign/pkg/align"
	"github.com/MrWong99/phonalign/pkg/phoneme"
	"github.com/MrWong99/phonalign/pkg/syllable"
)

const tracerName = "github.com/MrWong99/phonalign/pkg/pronunciation"

// Request is the input of one analysis.
type Request struct {
	// Lexicon lists the reference words in reading order.
	Lexicon []LexiconInput `json:"lexicon"`

	// Recognized is the recognised phoneme string.
	Recognized string `json:"recognizedPhonemes"`

	// Timings optionally holds one span per recognised token. A length that
	// does not match the tokenised Recognized string is ignored.
	Timings []syllable.Timing `json:"timings,omitempty"`

	// Transcript optionally holds the recogniser's word transcript, used to
	// fill WordComparison.HeardAs.
	Transcript string `json:"transcript,omitempty"`
}

// Stats summarises one completed analysis for an [Observer].
type Stats struct {
	Duration          time.Duration
	Words             int
	CorrectWords      int
	DrillWords        int
	SyllableFallbacks int
}

// Observer receives a summary of every completed analysis. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveAnalysis(ctx context.Context, s Stats)
}

// Option is a functional option for [NewAnalyzer].
type Option func(*Analyzer)

// WithScoring sets the alignment scoring. Default: [align.DefaultScoring].
func WithScoring(s align.Scoring) Option {
	return func(a *Analyzer) {
		a.scoring = s
	}
}

// WithDrillThreshold sets the phoneme accuracy below which matched words are
// still suggested for drilling. Default: [DefaultDrillThreshold].
func WithDrillThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		a.drillThreshold = threshold
	}
}

// WithWorkers bounds concurrent per-word alignments. Default: GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithSyllables toggles per-word syllabification. Default: enabled.
func WithSyllables(enabled bool) Option {
	return func(a *Analyzer) {
		a.syllables = enabled
	}
}

// WithStrict makes internal invariant violations panic. The default
// syllabifier is built in strict mode too.
func WithStrict(strict bool) Option {
	return func(a *Analyzer) {
		a.strict = strict
	}
}

// WithSyllabifier replaces the syllabifier, e.g. to add exceptions.
func WithSyllabifier(s *syllable.Syllabifier) Option {
	return func(a *Analyzer) {
		a.syllabifier = s
	}
}

// WithHeardMatcher replaces the transcript word matcher. nil disables
// HeardAs reporting.
func WithHeardMatcher(m *HeardMatcher) Option {
	return func(a *Analyzer) {
		a.heard = m
	}
}

// WithObserver registers an [Observer].
func WithObserver(o Observer) Option {
	return func(a *Analyzer) {
		a.observer = o
	}
}

// Analyzer runs complete pronunciation analyses. It is read-only after
// construction and safe for concurrent use.
type Analyzer struct {
	scoring        align.Scoring
	drillThreshold float64
	workers        int
	syllables      bool
	strict         bool
	syllabifier    *syllable.Syllabifier
	heard          *HeardMatcher
	observer       Observer
}

// NewAnalyzer returns an [Analyzer] configured by opts. It fails when the
// scoring or drill threshold is invalid.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		scoring:        align.DefaultScoring,
		drillThreshold: DefaultDrillThreshold,
		syllables:      true,
		heard:          NewHeardMatcher(),
	}
	for _, o := range opts {
		o(a)
	}
	if err := a.scoring.Validate(); err != nil {
		return nil, fmt.Errorf("pronunciation: %w", err)
	}
	if a.drillThreshold < 0 || a.drillThreshold > 100 {
		return nil, fmt.Errorf("pronunciation: drill threshold %v outside [0, 100]", a.drillThreshold)
	}
	if a.syllabifier == nil {
		a.syllabifier = syllable.New(syllable.WithStrict(a.strict))
	}
	return a, nil
}

// Analyze compares req.Recognized against req.Lexicon. It fails only on an
// invalid lexicon or a cancelled ctx.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pronunciation.analyze")
	defer span.End()

	lexicon, err := NewLexicon(req.Lexicon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	recognized := phoneme.Tokenize(req.Recognized)
	timings := recognizedTimings(req.Timings, len(recognized))

	results, err := alignWords(ctx, lexicon, recognized, AlignOptions{Scoring: a.scoring, Workers: a.workers})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(results) != len(lexicon) {
		a.invariant("comparison count differs from lexicon size", "comparisons", len(results), "lexicon", len(lexicon))
		return nil, fmt.Errorf("pronunciation: %d comparisons for %d words", len(results), len(lexicon))
	}

	comparisons := make([]WordComparison, len(results))
	for i, r := range results {
		comparisons[i] = r.comparison
	}
	if a.heard != nil && req.Transcript != "" {
		words := make([]string, len(lexicon))
		for i, e := range lexicon {
			words[i] = e.Word
		}
		for i, h := range a.heard.Match(words, req.Transcript) {
			comparisons[i].HeardAs = h
		}
	}

	analysis := &Analysis{
		Metrics:             CalculateMetrics(comparisons),
		Comparisons:         comparisons,
		SuggestedDrillWords: SelectDrillWords(comparisons, a.drillThreshold),
	}

	var fallbacks int
	if a.syllables {
		analysis.SyllablesByWord, fallbacks = a.syllabify(lexicon, results, timings)
	}

	span.SetAttributes(
		attribute.Int("words", analysis.Metrics.TotalWords),
		attribute.Int("correct_words", analysis.Metrics.CorrectWords),
		attribute.Int("drill_words", len(analysis.SuggestedDrillWords)),
	)
	if a.observer != nil {
		a.observer.ObserveAnalysis(ctx, Stats{
			Duration:          time.Since(start),
			Words:             analysis.Metrics.TotalWords,
			CorrectWords:      analysis.Metrics.CorrectWords,
			DrillWords:        len(analysis.SuggestedDrillWords),
			SyllableFallbacks: fallbacks,
		})
	}
	return analysis, nil
}

// syllabify splits each distinct word's reference, keyed by [WordKey]; a
// repeated word keeps its first occurrence. Reference tokens take the
// timing of the recognised token they aligned to.
func (a *Analyzer) syllabify(lexicon []LexiconEntry, results []wordAlignment, timings []*syllable.Timing) (map[string][]syllable.Syllable, int) {
	out := make(map[string][]syllable.Syllable, len(lexicon))
	fallbacks := 0
	for i, entry := range lexicon {
		key := WordKey(entry.Word)
		if _, ok := out[key]; ok {
			continue
		}
		var refTimings []*syllable.Timing
		if timings != nil {
			refTimings = make([]*syllable.Timing, len(entry.Reference))
			w := results[i].window
			for _, p := range results[i].pairs {
				if p.Ref != align.Gap && p.Rec != align.Gap {
					refTimings[p.Ref] = timings[w.lo+p.Rec]
				}
			}
		}
		res := a.syllabifier.Split(entry.Reference, refTimings, entry.Word)
		if res.Fallback {
			fallbacks++
		}
		out[key] = res.Syllables
	}
	return out, fallbacks
}

func (a *Analyzer) invariant(msg string, args ...any) {
	if a.strict {
		panic(fmt.Sprintf("pronunciation: %s %v", msg, args))
	}
	slog.Error("pronunciation: "+msg, args...)
}

// recognizedTimings converts per-token timings, or returns nil when there are
// none or their count does not match the tokens.
func recognizedTimings(in []syllable.Timing, tokens int) []*syllable.Timing {
	if len(in) == 0 {
		return nil
	}
	if len(in) != tokens {
		slog.Warn("ignoring timings that do not match the recognised tokens",
			"timings", len(in), "tokens", tokens)
		return nil
	}
	out := make([]*syllable.Timing, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}
