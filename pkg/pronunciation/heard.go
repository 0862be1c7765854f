package pronunciation

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/phonalign/pkg/align"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// HeardOption configures a [HeardMatcher].
type HeardOption func(*HeardMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for two words
// sharing a Double Metaphone code to count as the same word. Default: 0.70.
func WithPhoneticThreshold(threshold float64) HeardOption {
	return func(m *HeardMatcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for two words
// without a shared phonetic code. Default: 0.85.
func WithFuzzyThreshold(threshold float64) HeardOption {
	return func(m *HeardMatcher) {
		m.fuzzyThreshold = threshold
	}
}

// HeardMatcher aligns reference words to the words of a recogniser's
// transcript, treating spelling variants that sound alike as equal
// ("colour"/"color", "there"/"their"). It is read-only after construction and
// safe for concurrent use.
type HeardMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	scoring           align.Scoring
}

// NewHeardMatcher returns a [HeardMatcher] with default thresholds.
func NewHeardMatcher(opts ...HeardOption) *HeardMatcher {
	m := &HeardMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		scoring:           align.DefaultScoring,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns, for each reference word, the transcript word aligned to it:
// the same word, a similar-sounding one, or whatever was said in its place.
// A word the speaker skipped maps to "".
func (m *HeardMatcher) Match(words []string, transcript string) []string {
	heard := transcriptWords(transcript)
	out := make([]string, len(words))
	for _, p := range align.Align(words, heard, m.Similar, m.scoring) {
		if p.Ref != align.Gap && p.Rec != align.Gap {
			out[p.Ref] = heard[p.Rec]
		}
	}
	return out
}

// Similar reports whether a and b are the same word or sound alike.
func (m *HeardMatcher) Similar(a, b string) bool {
	a, b = normalizeHeard(a), normalizeHeard(b)
	if a == "" || b == "" {
		return a == b
	}
	if a == b {
		return true
	}
	jw := matchr.JaroWinkler(a, b, false)
	if codesOverlap(a, b) {
		return jw >= m.phoneticThreshold
	}
	return jw >= m.fuzzyThreshold
}

// codesOverlap reports whether a and b share a Double Metaphone code. Empty
// codes (words without consonants) never match.
func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

// transcriptWords splits a transcript into words, dropping punctuation-only
// fields.
func transcriptWords(transcript string) []string {
	var out []string
	for _, f := range strings.Fields(transcript) {
		if normalizeHeard(f) != "" {
			out = append(out, strings.TrimFunc(f, unicode.IsPunct))
		}
	}
	return out
}

func normalizeHeard(w string) string {
	return strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
}
