package syllable

import (
	"fmt"
	"log/slog"

	"github.com/MrWong99/phonalign/pkg/phoneme"
)

// Result is the detailed outcome of [Syllabifier.Split].
type Result struct {
	Syllables []Syllable

	// Fallback is true when splitting failed internally and Syllables holds
	// the single-syllable fallback.
	Fallback bool

	// Exception is true when the exception table supplied the split.
	Exception bool
}

// Option is a functional option for [New].
type Option func(*Syllabifier)

// WithExceptions replaces the exception table. Pass
// DefaultExceptions.Merge(extra) to extend rather than replace it.
func WithExceptions(e Exceptions) Option {
	return func(s *Syllabifier) {
		s.exceptions = compile(e)
	}
}

// WithStrict makes token-conservation violations panic instead of degrading
// to the fallback. Intended for tests and debug builds.
func WithStrict(strict bool) Option {
	return func(s *Syllabifier) {
		s.strict = strict
	}
}

// Syllabifier splits phoneme sequences into syllables. It is read-only after
// construction and safe for concurrent use.
type Syllabifier struct {
	exceptions compiled
	strict     bool

	// splitter is s.split outside of tests.
	splitter func(tokens []phoneme.Token, word string) ([]Syllable, bool)
}

// New returns a [Syllabifier] using [DefaultExceptions] unless overridden.
func New(opts ...Option) *Syllabifier {
	s := &Syllabifier{exceptions: compile(DefaultExceptions)}
	for _, o := range opts {
		o(s)
	}
	s.splitter = s.split
	return s
}

var defaultSyllabifier = New()

// Syllabify splits tokens with the default [Syllabifier]. timings and word are
// optional (nil and "").
func Syllabify(tokens []phoneme.Token, timings []*Timing, word string) []Syllable {
	return defaultSyllabifier.Split(tokens, timings, word).Syllables
}

// Syllabify splits tokens and returns only the syllables.
func (s *Syllabifier) Syllabify(tokens []phoneme.Token, timings []*Timing, word string) []Syllable {
	return s.Split(tokens, timings, word).Syllables
}

// Split runs the full pipeline over tokens. timings, when non-nil, must hold
// one entry per input token (nil entries allowed); any other length is
// ignored. word selects an exception-table entry when non-empty.
//
// Split never panics on malformed input: internal failures are logged and
// replaced by a single syllable holding every input token.
func (s *Syllabifier) Split(tokens []phoneme.Token, timings []*Timing, word string) (res Result) {
	if len(timings) != len(tokens) {
		timings = nil
	}

	normalized, normTimings := tokens, timings
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(InvariantError); ok && s.strict {
				panic(ie)
			}
			slog.Warn("syllabification failed, using single-syllable fallback",
				"word", word,
				"phonemes", phoneme.Join(tokens),
				"panic", fmt.Sprint(r),
			)
			res = Result{Syllables: fallback(normalized, normTimings), Fallback: true}
		}
	}()

	normalized, normTimings = Normalize(tokens, timings)

	syllables, fromException := s.splitter(normalized, word)
	if timings != nil {
		propagateTimings(syllables, normTimings)
	}

	if !phoneme.Equal(Flatten(syllables), normalized) {
		if s.strict {
			panicInvariant(word, normalized, syllables)
		}
		slog.Error("syllabification lost or duplicated tokens",
			"word", word,
			"phonemes", phoneme.Join(normalized),
			"syllables", Format(syllables),
		)
		return Result{Syllables: fallback(normalized, normTimings), Fallback: true}
	}
	return Result{Syllables: syllables, Exception: fromException}
}

// panicInvariant raises an InvariantError. Split's deferred handler lets it
// through in strict mode.
func panicInvariant(word string, normalized []phoneme.Token, syllables []Syllable) {
	panic(InvariantError{Word: word, Phonemes: phoneme.Join(normalized), Syllables: Format(syllables)})
}

// InvariantError is the panic value raised in strict mode when the syllables
// do not concatenate back to the normalised tokens.
type InvariantError struct {
	Word      string
	Phonemes  string
	Syllables string
}

func (e InvariantError) Error() string {
	return fmt.Sprintf("syllable: token conservation violated for %q: %s → %s", e.Word, e.Phonemes, e.Syllables)
}

// split groups normalised tokens into syllables. An exception entry for word
// takes precedence over the algorithmic split.
func (s *Syllabifier) split(tokens []phoneme.Token, word string) ([]Syllable, bool) {
	if word != "" {
		if syls, ok := s.exceptions.apply(word, tokens); ok {
			return syls, true
		}
	}

	if len(tokens) == 0 {
		return nil, false
	}
	nuclei := findNuclei(tokens)
	if len(nuclei) == 0 {
		return []Syllable{{Phonemes: tokens, NucleusIndex: -1}}, false
	}

	starts := initialStarts(nuclei)
	fixOnsets(tokens, nuclei, starts)
	resolveAmbisyllabic(tokens, nuclei, starts)

	out := make([]Syllable, len(nuclei))
	for k := range nuclei {
		end := len(tokens)
		if k+1 < len(nuclei) {
			end = starts[k+1]
		}
		out[k] = Syllable{
			Phonemes:     tokens[starts[k]:end],
			NucleusIndex: nuclei[k] - starts[k],
		}
	}
	return out, false
}

func findNuclei(tokens []phoneme.Token) []int {
	var idx []int
	for i, t := range tokens {
		if t.IsNucleus() {
			idx = append(idx, i)
		}
	}
	return idx
}

// initialStarts returns the start index of each syllable: the first syllable
// starts at 0 (taking every leading consonant as onset) and consonants
// between two nuclei are split evenly, the extra one going to the coda.
func initialStarts(nuclei []int) []int {
	starts := make([]int, len(nuclei))
	for k := 1; k < len(nuclei); k++ {
		lo, hi := nuclei[k-1]+1, nuclei[k]
		starts[k] = lo + (hi-lo+1)/2
	}
	return starts
}

// fixOnsets moves each syllable start leftward to the longest valid onset
// (Maximal Onset Principle). Consonants left over close the previous
// syllable. A syllabic-consonant nucleus takes no onset at all.
func fixOnsets(tokens []phoneme.Token, nuclei, starts []int) {
	for k := 1; k < len(nuclei); k++ {
		lo, nuc := nuclei[k-1]+1, nuclei[k]
		if tokens[nuc].Category == phoneme.SyllabicConsonant {
			starts[k] = nuc
			continue
		}
		b := nuc
		for b > lo && validOnset(tokens[b-1:nuc]) {
			b--
		}
		starts[k] = b
	}
}

// resolveAmbisyllabic assigns a lone t, d, s, z or n between two vowels to
// the following syllable ("water" → "wɔ.tɚ").
func resolveAmbisyllabic(tokens []phoneme.Token, nuclei, starts []int) {
	for k := 1; k < len(nuclei); k++ {
		prev, nuc := nuclei[k-1], nuclei[k]
		if nuc-prev != 2 {
			continue
		}
		c := tokens[prev+1]
		if ambisyllabic[c.Symbol] && tokens[prev].IsVowel() && tokens[nuc].IsVowel() {
			starts[k] = prev + 1
		}
	}
}

// propagateTimings sets each syllable's span from its tokens' timings.
// timings is indexed like the concatenated syllable tokens.
func propagateTimings(syllables []Syllable, timings []*Timing) {
	pos := 0
	for i := range syllables {
		var span *Timing
		for range syllables[i].Phonemes {
			if pos < len(timings) && timings[pos] != nil {
				t := timings[pos]
				if span == nil {
					span = &Timing{Start: t.Start, End: t.End}
				} else {
					span.Start = min(span.Start, t.Start)
					span.End = max(span.End, t.End)
				}
			}
			pos++
		}
		if span != nil {
			start, end := span.Start, span.End
			syllables[i].Start = &start
			syllables[i].End = &end
		}
	}
}

func fallback(tokens []phoneme.Token, timings []*Timing) []Syllable {
	syls := []Syllable{{Phonemes: tokens, NucleusIndex: firstNucleus(tokens)}}
	if len(timings) == len(tokens) {
		propagateTimings(syls, timings)
	}
	return syls
}
