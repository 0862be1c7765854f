// Package pronunciation compares an expected pronunciation against a
// recognised one and derives word-level results, aggregate accuracy metrics,
// drill suggestions and per-word syllabifications.
//
// The entry point is [Analyzer.Analyze]. The building blocks ([AlignWords],
// [CalculateMetrics], [SelectDrillWords]) are exported for callers that only
// need part of the pipeline. Everything here is a pure computation over its
// inputs: no I/O and no state shared between calls.
package pronunciation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/phonalign/pkg/align"
	"github.com/MrWong99/phonalign/pkg/phoneme"
	"github.com/MrWong99/phonalign/pkg/syllable"
)

// ErrEmptyWord is returned when a lexicon entry has no word text.
var ErrEmptyWord = errors.New("pronunciation: lexicon entry has an empty word")

// LexiconInput is one reference word as produced by a grapheme-to-phoneme
// collaborator.
type LexiconInput struct {
	Word     string `json:"word" yaml:"word"`
	Phonemes string `json:"phonemes" yaml:"phonemes"`
}

// LexiconEntry is a tokenised reference word.
type LexiconEntry struct {
	Word      string
	Reference []phoneme.Token
}

// NewLexicon tokenises inputs in order. Words are trimmed; an empty word is
// an error.
func NewLexicon(inputs []LexiconInput) ([]LexiconEntry, error) {
	out := make([]LexiconEntry, len(inputs))
	for i, in := range inputs {
		word := strings.TrimSpace(in.Word)
		if word == "" {
			return nil, fmt.Errorf("pronunciation: lexicon entry %d: %w", i, ErrEmptyWord)
		}
		out[i] = LexiconEntry{Word: word, Reference: phoneme.Tokenize(in.Phonemes)}
	}
	return out, nil
}

// EditError is one non-matching operation of a word's local alignment.
//
// Index is the reference position the edit applies to. For an insertion it is
// the number of reference tokens that precede the inserted token.
type EditError struct {
	Op       align.Op `json:"op"`
	Index    int      `json:"index"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
}

// WordComparison is the result of aligning one reference word.
type WordComparison struct {
	Word                    string      `json:"word"`
	ReferencePhonemeString  string      `json:"referencePhonemeString"`
	RecognizedPhonemeString string      `json:"recognizedPhonemeString"`
	Match                   bool        `json:"match"`
	PhonemeAccuracy         float64     `json:"phonemeAccuracy"`
	Errors                  []EditError `json:"errors"`

	// ReferenceLength is the number of reference tokens. It lets metrics be
	// recomputed from comparisons alone.
	ReferenceLength int `json:"referenceLength"`

	// HeardAs is the transcript word aligned to this word, when a transcript
	// was supplied.
	HeardAs string `json:"heardAs,omitempty"`
}

// counts sums the word's edits by kind.
func (c WordComparison) counts() (subs, ins, dels int) {
	for _, e := range c.Errors {
		switch e.Op {
		case align.Substitution:
			subs++
		case align.Insertion:
			ins++
		case align.Deletion:
			dels++
		}
	}
	return subs, ins, dels
}

// Metrics are aggregate accuracy figures over a set of comparisons.
type Metrics struct {
	WordAccuracy     float64 `json:"wordAccuracy"`
	PhonemeAccuracy  float64 `json:"phonemeAccuracy"`
	PhonemeErrorRate float64 `json:"phonemeErrorRate"`
	TotalWords       int     `json:"totalWords"`
	CorrectWords     int     `json:"correctWords"`
	Substitutions    int     `json:"substitutions"`
	Insertions       int     `json:"insertions"`
	Deletions        int     `json:"deletions"`
}

// Analysis is the complete result of one analysis request.
type Analysis struct {
	Metrics     Metrics          `json:"metrics"`
	Comparisons []WordComparison `json:"comparisons"`

	// SyllablesByWord holds the reference syllabification of each distinct
	// word, keyed by [WordKey]. Nil when syllabification is disabled.
	SyllablesByWord map[string][]syllable.Syllable `json:"syllablesByWord,omitempty"`

	SuggestedDrillWords []string `json:"suggestedDrillWords"`
}
