package phoneme

import (
	"fmt"
	"unicode/utf8"
)

// Token is a single typed phoneme. It is an immutable value.
type Token struct {
	Symbol   string   `json:"symbol"`
	Category Category `json:"category"`
	Sonority Sonority `json:"sonority"`
}

// IsNucleus reports whether t can carry a syllable nucleus.
func (t Token) IsNucleus() bool {
	switch t.Category {
	case Vowel, Diphthong, RhotacizedVowel, SyllabicConsonant:
		return true
	}
	return false
}

// IsVowel reports whether t is vowel-like: a nucleus that is not a syllabic
// consonant.
func (t Token) IsVowel() bool {
	return t.IsNucleus() && t.Category != SyllabicConsonant
}

// IsConsonant reports whether t is a non-nucleus segment.
func (t Token) IsConsonant() bool {
	return !t.IsNucleus()
}

// String returns the token's symbol.
func (t Token) String() string { return t.Symbol }

// syllabicMark is U+0329 COMBINING VERTICAL LINE BELOW.
const syllabicMark = "̩"

// Syllabic returns the syllabic-consonant form of the sonorant t (e.g. "l" →
// "l̩"). ok is false when t has no syllabic counterpart in the table.
func Syllabic(t Token) (Token, bool) {
	s, ok := Lookup(t.Symbol + syllabicMark)
	if !ok || s.Category != SyllabicConsonant {
		return Token{}, false
	}
	return s, true
}

// symbolClass groups table symbols that share category and sonority.
type symbolClass struct {
	category Category
	sonority Sonority
	symbols  []string
}

// classes is the authoritative inventory. Vowel-like entries sit at the top
// of the sonority scale.
var classes = []symbolClass{
	{Vowel, Approximant, []string{
		"i", "iː", "ɪ", "e", "eː", "ɛ", "ɛː", "æ", "a", "aː", "ɑ", "ɑː", "ɒ",
		"ɔ", "ɔː", "o", "oː", "ʊ", "u", "uː", "ʌ", "ə", "ɐ", "ɜ", "ɜː", "ɨ",
		"ʉ", "y", "ø", "œ", "ɘ", "ɵ", "ɤ", "ɯ",
	}},
	{Diphthong, Approximant, []string{
		"aɪ", "aʊ", "eɪ", "oʊ", "ɔɪ", "əʊ", "ɪə", "eə", "ɛə", "ʊə",
	}},
	{RhotacizedVowel, Approximant, []string{"ɚ", "ɝ"}},
	{Affricate, Obstruent, []string{"t͡ʃ", "d͡ʒ", "t͡s", "d͡z"}},
	{Consonant, Obstruent, []string{"p", "b", "t", "d", "k", "ɡ", "ʔ", "ɾ", "c", "q"}},
	{Consonant, Fricative, []string{"f", "v", "θ", "ð", "s", "z", "ʃ", "ʒ", "h", "x", "ç", "ɣ", "ʍ"}},
	{Consonant, Nasal, []string{"m", "n", "ŋ", "ɱ", "ɲ"}},
	{Consonant, Approximant, []string{"l", "r", "ɫ", "ɻ", "j", "w"}},
	{SyllabicConsonant, Approximant, []string{"l̩", "r̩"}},
	{SyllabicConsonant, Nasal, []string{"m̩", "n̩", "ŋ̍"}},
}

// aliases maps alternative spellings onto canonical table symbols.
var aliases = map[string]string{
	"tʃ":  "t͡ʃ",
	"dʒ":  "d͡ʒ",
	"ʧ":   "t͡ʃ",
	"ʤ":   "d͡ʒ",
	"g":   "ɡ",
	"ɹ":   "r",
	"ɹ̩":  "r̩",
	"ɜr":  "ɝ",
	"ɜɹ":  "ɝ",
	"ɜ˞":  "ɝ",
	"ə˞":  "ɚ",
	"əɹ":  "ɚ",
	"ɚː":  "ɚ",
	"ɝː":  "ɝ",
	"ɑɪ":  "aɪ",
	"ɑʊ":  "aʊ",
	"ɔi":  "ɔɪ",
	"ɛɪ":  "eɪ",
	"l̍":  "l̩",
	"n̍":  "n̩",
	"m̍":  "m̩",
	"ŋ̩":  "ŋ̍",
}

// table maps every canonical symbol to its token. maxSymbolRunes bounds the
// longest-match scan.
var (
	table          map[string]Token
	maxSymbolRunes int
)

func init() {
	t, maxRunes, err := buildTable(classes, aliases)
	if err != nil {
		panic("phoneme: " + err.Error())
	}
	table = t
	maxSymbolRunes = maxRunes
}

// buildTable validates the inventory and returns the symbol index together
// with the longest symbol length in runes (aliases included).
func buildTable(cs []symbolClass, as map[string]string) (map[string]Token, int, error) {
	t := make(map[string]Token, 128)
	maxRunes := 1
	for _, c := range cs {
		if !c.sonority.Valid() {
			return nil, 0, fmt.Errorf("class %s has invalid sonority %d", c.category, c.sonority)
		}
		for _, sym := range c.symbols {
			if sym == "" {
				return nil, 0, fmt.Errorf("class %s contains an empty symbol", c.category)
			}
			if prev, dup := t[sym]; dup {
				return nil, 0, fmt.Errorf("symbol %q listed as both %s and %s", sym, prev.Category, c.category)
			}
			t[sym] = Token{Symbol: sym, Category: c.category, Sonority: c.sonority}
			maxRunes = max(maxRunes, utf8.RuneCountInString(sym))
		}
	}
	for alias, target := range as {
		if _, ok := t[alias]; ok {
			return nil, 0, fmt.Errorf("alias %q shadows a canonical symbol", alias)
		}
		if _, ok := t[target]; !ok {
			return nil, 0, fmt.Errorf("alias %q targets unknown symbol %q", alias, target)
		}
		maxRunes = max(maxRunes, utf8.RuneCountInString(alias))
	}
	return t, maxRunes, nil
}

// Lookup returns the token for symbol, resolving aliases. ok is false for
// symbols outside the table.
func Lookup(symbol string) (Token, bool) {
	if canon, ok := aliases[symbol]; ok {
		symbol = canon
	}
	t, ok := table[symbol]
	return t, ok
}

// Classify returns the token for symbol, falling back to an obstruent
// [Consonant] carrying the symbol verbatim when it is unknown.
func Classify(symbol string) Token {
	if t, ok := Lookup(symbol); ok {
		return t
	}
	return Token{Symbol: symbol, Category: Consonant, Sonority: Obstruent}
}
