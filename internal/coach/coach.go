// Package coach turns a pronunciation analysis into short, learner-facing
// feedback written by an LLM.
//
// The engine never calls out to a model itself. [Coach] is a caller-side
// collaborator: it renders the analysis into a prompt, asks a [Completer]
// for a reply, and records latency and outcome metrics.
package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/phonalign/internal/observe"
	"github.com/MrWong99/phonalign/pkg/align"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// ErrEmptyFeedback is returned when the model answers with no text.
var ErrEmptyFeedback = errors.New("coach: empty feedback")

// Request is one completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer produces a single text completion. Implementations must be safe
// for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// systemPrompt frames the model as a pronunciation tutor.
const systemPrompt = `You are a friendly pronunciation tutor. You receive the result of an
automatic phoneme-level comparison between what a learner was asked to say and
what was recognised. Phonemes are IPA symbols. Give at most three short, concrete
tips, focusing on the words with the lowest accuracy. Do not repeat the numbers
back; explain how to produce the sounds.`

// Option is a functional option for [New].
type Option func(*Coach)

// WithProvider names the backing provider in metrics. Default: "unknown".
func WithProvider(name string) Option {
	return func(c *Coach) {
		if name != "" {
			c.provider = name
		}
	}
}

// WithTimeout bounds one feedback request. Zero means no extra bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Coach) {
		c.timeout = d
	}
}

// WithMaxTokens caps the feedback length.
func WithMaxTokens(n int) Option {
	return func(c *Coach) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Coach) {
		c.temperature = t
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coach) {
		c.metrics = m
	}
}

// Coach writes feedback for analyses. It is safe for concurrent use.
type Coach struct {
	completer   Completer
	provider    string
	timeout     time.Duration
	maxTokens   int
	temperature float64
	metrics     *observe.Metrics
}

// New returns a [Coach] backed by completer.
func New(completer Completer, opts ...Option) *Coach {
	c := &Coach{
		completer: completer,
		provider:  "unknown",
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Feedback asks the model for tips on analysis. An analysis without
// reference words yields no feedback and no model call.
func (c *Coach) Feedback(ctx context.Context, analysis *pronunciation.Analysis) (string, error) {
	if analysis == nil || len(analysis.Comparisons) == 0 {
		return "", nil
	}

	ctx, span := observe.StartSpan(ctx, "coach.feedback")
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.completer.Complete(ctx, Request{
		System:      systemPrompt,
		Prompt:      Prompt(analysis),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = ErrEmptyFeedback
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordCoachRequest(ctx, c.provider, status, time.Since(start))

	if err != nil {
		observe.RecordError(span, err)
		observe.Logger(ctx).Warn("coach: feedback failed", "provider", c.provider, "err", err)
		return "", fmt.Errorf("coach: feedback: %w", err)
	}
	return text, nil
}

// Prompt renders analysis as the user message sent to the model. Words are
// listed in reading order with their edits.
func Prompt(analysis *pronunciation.Analysis) string {
	var b strings.Builder
	m := analysis.Metrics
	fmt.Fprintf(&b, "Overall: %d of %d words correct, phoneme accuracy %.1f%%.\n",
		m.CorrectWords, m.TotalWords, m.PhonemeAccuracy)

	b.WriteString("Words:\n")
	for _, c := range analysis.Comparisons {
		fmt.Fprintf(&b, "- %s: expected /%s/, heard /%s/, accuracy %.0f%%",
			c.Word, c.ReferencePhonemeString, c.RecognizedPhonemeString, c.PhonemeAccuracy)
		if c.HeardAs != "" && !strings.EqualFold(c.HeardAs, c.Word) {
			fmt.Fprintf(&b, ", transcribed as %q", c.HeardAs)
		}
		b.WriteString("\n")
		for _, e := range c.Errors {
			b.WriteString("    ")
			b.WriteString(describeEdit(e))
			b.WriteString("\n")
		}
	}

	if len(analysis.SuggestedDrillWords) > 0 {
		fmt.Fprintf(&b, "Suggested drill words: %s\n", strings.Join(analysis.SuggestedDrillWords, ", "))
	}
	return b.String()
}

func describeEdit(e pronunciation.EditError) string {
	switch e.Op {
	case align.Substitution:
		return fmt.Sprintf("said %s instead of %s", e.Actual, e.Expected)
	case align.Deletion:
		return fmt.Sprintf("dropped %s", e.Expected)
	case align.Insertion:
		return fmt.Sprintf("added %s", e.Actual)
	}
	return e.Op.String()
}
