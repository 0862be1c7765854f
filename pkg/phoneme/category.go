// Package phoneme parses IPA phoneme strings into typed tokens.
//
// A [Token] couples a canonical IPA symbol with its [Category] and
// [Sonority]. The symbol table behind [Tokenize] and [Lookup] is built once at
// package initialisation and validated; unknown symbols take a single
// well-defined fallback path (a generic obstruent [Consonant]) so that
// tokenisation never fails.
//
// All functions in this package are pure and safe for concurrent use.
package phoneme

import "fmt"

// Category is the closed set of phoneme classes recognised by the engine.
type Category int

const (
	// Consonant is a plain consonant. It is also the fallback category for
	// unknown symbols, which is why it is the zero value.
	Consonant Category = iota

	// Vowel is a monophthong, optionally long (e.g. "iː").
	Vowel

	// Diphthong is a vowel glide written as two vowel symbols (e.g. "aɪ").
	Diphthong

	// Affricate is a stop released into a fricative (e.g. "t͡ʃ").
	Affricate

	// SyllabicConsonant is a sonorant that forms a syllable nucleus on its
	// own (e.g. "l̩" in "bottle").
	SyllabicConsonant

	// RhotacizedVowel is an r-coloured vowel (e.g. "ɚ", "ɝ").
	RhotacizedVowel
)

var categoryNames = [...]string{
	Consonant:         "consonant",
	Vowel:             "vowel",
	Diphthong:         "diphthong",
	Affricate:         "affricate",
	SyllabicConsonant: "syllabic_consonant",
	RhotacizedVowel:   "rhotacized_vowel",
}

// String returns the snake_case name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalText implements [encoding.TextMarshaler].
func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("phoneme: invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (c *Category) UnmarshalText(b []byte) error {
	for i, name := range categoryNames {
		if name == string(b) {
			*c = Category(i)
			return nil
		}
	}
	return fmt.Errorf("phoneme: unknown category %q", b)
}

// Sonority ranks consonant classes by acoustic openness on a 1..4 scale.
type Sonority int

const (
	// Obstruent covers stops and affricates. Unknown symbols also land here.
	Obstruent Sonority = 1

	// Fricative covers fricatives such as "s", "ʃ", "θ".
	Fricative Sonority = 2

	// Nasal covers "m", "n", "ŋ".
	Nasal Sonority = 3

	// Approximant covers liquids and glides. Vowel-like tokens also carry
	// this level, the top of the scale.
	Approximant Sonority = 4
)

// Valid reports whether s lies on the 1..4 scale.
func (s Sonority) Valid() bool {
	return s >= Obstruent && s <= Approximant
}
