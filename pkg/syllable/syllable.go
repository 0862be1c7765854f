// Package syllable splits phoneme sequences into syllables.
//
// Splitting runs a fixed pipeline over the tokens of one word:
//
//  1. [Normalize]: re-merge split diphthongs and affricates, collapse schwa
//     plus sonorant into a syllabic consonant.
//  2. Nucleus detection: vowels, diphthongs, rhotacized vowels and syllabic
//     consonants each carry one syllable.
//  3. Initial grouping: leading consonants open the first syllable, trailing
//     consonants close the last one, inter-nucleus clusters are split evenly.
//  4. Onset fixing by the Maximal Onset Principle, using a table of valid
//     English onsets and rising sonority (with an /s/ exemption).
//  5. Ambisyllabic resolution: a lone t, d, s, z or n between two vowels
//     opens the following syllable.
//  6. Exception override for irregular words.
//  7. Timing propagation from per-token timings, when supplied.
//
// The concatenation of the output syllables always equals the normalised
// input. Internal failures degrade to a single syllable instead of
// propagating.
package syllable

import (
	"encoding/json"
	"strings"

	"github.com/MrWong99/phonalign/pkg/phoneme"
)

// Timing is the time span of one token, in seconds from the start of the
// recording.
type Timing struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Syllable is an ordered run of phonemes built around one nucleus.
type Syllable struct {
	// Phonemes are the syllable's tokens in order.
	Phonemes []phoneme.Token

	// NucleusIndex is the position of the nucleus within Phonemes, or -1 for
	// a degenerate syllable without one.
	NucleusIndex int

	// Start and End are nil when no timing was available for any token.
	Start *float64
	End   *float64
}

// Text returns the syllable's symbols without separators (e.g. "bɑt").
func (s Syllable) Text() string {
	return phoneme.Concat(s.Phonemes)
}

// Nucleus returns the nucleus token. ok is false for degenerate syllables.
func (s Syllable) Nucleus() (phoneme.Token, bool) {
	if s.NucleusIndex < 0 || s.NucleusIndex >= len(s.Phonemes) {
		return phoneme.Token{}, false
	}
	return s.Phonemes[s.NucleusIndex], true
}

type syllableJSON struct {
	Text         string   `json:"text"`
	Phonemes     []string `json:"phonemes"`
	NucleusIndex int      `json:"nucleusIndex"`
	Start        *float64 `json:"start"`
	End          *float64 `json:"end"`
}

// MarshalJSON encodes the syllable with its phonemes as plain symbols.
func (s Syllable) MarshalJSON() ([]byte, error) {
	syms := make([]string, len(s.Phonemes))
	for i, p := range s.Phonemes {
		syms[i] = p.Symbol
	}
	return json.Marshal(syllableJSON{
		Text:         s.Text(),
		Phonemes:     syms,
		NucleusIndex: s.NucleusIndex,
		Start:        s.Start,
		End:          s.End,
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON, re-classifying each
// symbol.
func (s *Syllable) UnmarshalJSON(b []byte) error {
	var raw syllableJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.Phonemes = make([]phoneme.Token, len(raw.Phonemes))
	for i, sym := range raw.Phonemes {
		s.Phonemes[i] = phoneme.Classify(sym)
	}
	s.NucleusIndex = raw.NucleusIndex
	s.Start = raw.Start
	s.End = raw.End
	return nil
}

// Texts returns the text of every syllable, handy for display and tests.
func Texts(syllables []Syllable) []string {
	out := make([]string, len(syllables))
	for i, s := range syllables {
		out[i] = s.Text()
	}
	return out
}

// Flatten concatenates the phonemes of all syllables in order.
func Flatten(syllables []Syllable) []phoneme.Token {
	var out []phoneme.Token
	for _, s := range syllables {
		out = append(out, s.Phonemes...)
	}
	return out
}

// Format renders syllables dot-separated (e.g. "bɑt.l̩").
func Format(syllables []Syllable) string {
	return strings.Join(Texts(syllables), ".")
}
