package syllable

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/phonalign/pkg/phoneme"
)

// Exceptions maps a lower-case word to its accepted syllabifications. Each
// variant is written with dots between syllables, e.g. "bɑ.tl̩". A variant
// only applies when its symbols equal the normalised input, so an exception
// can never add, drop or reorder tokens.
type Exceptions map[string][]string

// DefaultExceptions covers irregular words whose conventional split differs
// from the algorithmic one, mostly flapped or glottalised stops before a
// syllabic consonant or rhotacized vowel.
var DefaultExceptions = Exceptions{
	"little": {"lɪ.tl̩", "lɪ.ɾl̩"},
	"bottle": {"bɑ.tl̩", "bɒ.tl̩", "bɑ.ɾl̩"},
	"button": {"bʌ.tn̩", "bʌ.ʔn̩"},
	"cotton": {"kɑ.tn̩", "kɒ.tn̩", "kɑ.ʔn̩"},
	"hidden": {"hɪ.dn̩"},
	"garden": {"ɡɑr.dn̩", "ɡɑː.dn̩"},
	"better": {"bɛ.tɚ", "bɛ.ɾɚ", "bɛ.tə"},
	"water":  {"wɔ.tɚ", "wɑ.tɚ", "wɔ.ɾɚ", "wɑ.ɾɚ", "wɔː.tə"},
	"letter": {"lɛ.tɚ", "lɛ.ɾɚ", "lɛ.tə"},
}

// LoadExceptions decodes a YAML mapping of word to variant list.
func LoadExceptions(r io.Reader) (Exceptions, error) {
	var ex Exceptions
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ex); err != nil {
		if err == io.EOF {
			return Exceptions{}, nil
		}
		return nil, fmt.Errorf("syllable: decode exceptions: %w", err)
	}
	if err := ex.Validate(); err != nil {
		return nil, err
	}
	return ex, nil
}

// Validate checks that every variant parses into at least one non-empty
// syllable.
func (e Exceptions) Validate() error {
	for word, variants := range e {
		if strings.TrimSpace(word) == "" {
			return fmt.Errorf("syllable: exception with empty word")
		}
		for _, v := range variants {
			for _, part := range parseVariant(v) {
				if len(part) == 0 {
					return fmt.Errorf("syllable: exception %q variant %q has an empty syllable", word, v)
				}
			}
		}
	}
	return nil
}

// Merge returns a new table holding e overlaid with other; words present in
// both take other's variants.
func (e Exceptions) Merge(other Exceptions) Exceptions {
	out := make(Exceptions, len(e)+len(other))
	for w, v := range e {
		out[normalizeWord(w)] = v
	}
	for w, v := range other {
		out[normalizeWord(w)] = v
	}
	return out
}

// compiled is the tokenised form of an exception table.
type compiled map[string][][][]phoneme.Token

func compile(e Exceptions) compiled {
	c := make(compiled, len(e))
	for word, variants := range e {
		key := normalizeWord(word)
		for _, v := range variants {
			c[key] = append(c[key], parseVariant(v))
		}
	}
	return c
}

// parseVariant splits a dotted variant into tokenised syllables.
func parseVariant(v string) [][]phoneme.Token {
	parts := strings.Split(v, ".")
	out := make([][]phoneme.Token, len(parts))
	for i, p := range parts {
		out[i] = phoneme.Tokenize(p)
	}
	return out
}

// apply returns the exception syllabification of word whose symbols equal
// tokens. ok is false when the word is unknown or no variant fits.
func (c compiled) apply(word string, tokens []phoneme.Token) ([]Syllable, bool) {
	for _, variant := range c[normalizeWord(word)] {
		if !variantFits(variant, tokens) {
			continue
		}
		out := make([]Syllable, 0, len(variant))
		pos := 0
		for _, part := range variant {
			phons := tokens[pos : pos+len(part)]
			out = append(out, Syllable{Phonemes: phons, NucleusIndex: firstNucleus(phons)})
			pos += len(part)
		}
		return out, true
	}
	return nil, false
}

func variantFits(variant [][]phoneme.Token, tokens []phoneme.Token) bool {
	pos := 0
	for _, part := range variant {
		if pos+len(part) > len(tokens) || !phoneme.Equal(part, tokens[pos:pos+len(part)]) {
			return false
		}
		pos += len(part)
	}
	return pos == len(tokens)
}

func firstNucleus(tokens []phoneme.Token) int {
	for i, t := range tokens {
		if t.IsNucleus() {
			return i
		}
	}
	return -1
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
