// Package lexicon resolves plain text into reference pronunciations.
//
// It is the grapheme-to-phoneme boundary of phonalign: the engine only ever
// sees [pronunciation.LexiconInput] values, and this package produces them
// from YAML pronunciation dictionaries. [Cache] keeps at most one lookup per
// (text, language) in flight and memoises the results.
package lexicon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// ErrUnknownWord is matched by errors that report words missing from a
// dictionary.
var ErrUnknownWord = errors.New("lexicon: unknown word")

// ErrUnsupportedLanguage is returned for a language with no dictionary.
var ErrUnsupportedLanguage = errors.New("lexicon: unsupported language")

// ErrEmptyText is returned when text contains no words.
var ErrEmptyText = errors.New("lexicon: text has no words")

// UnknownWordsError lists every word of a lookup that could not be resolved.
// It matches [ErrUnknownWord] with errors.Is.
type UnknownWordsError struct {
	Language string
	Words    []string
}

func (e *UnknownWordsError) Error() string {
	return fmt.Sprintf("lexicon: %d unknown word(s) for %s: %s", len(e.Words), e.Language, strings.Join(e.Words, ", "))
}

// Unwrap returns [ErrUnknownWord].
func (e *UnknownWordsError) Unwrap() error { return ErrUnknownWord }

// Provider turns text into reference words in reading order.
// Implementations must be safe for concurrent use.
type Provider interface {
	Lookup(ctx context.Context, text, language string) ([]pronunciation.LexiconInput, error)
}

// Words splits text into words. Letters, digits, apostrophes and inner
// hyphens belong to a word; everything else separates words.
func Words(text string) []string {
	fields := strings.FieldsFunc(norm.NFC.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r) && r != '\'' && r != '’' && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'’-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// key is the dictionary lookup form of a word. A Caser is stateful, so each
// call gets its own.
func key(word string) string {
	return cases.Fold().String(norm.NFC.String(strings.ReplaceAll(word, "’", "'")))
}
