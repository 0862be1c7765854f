package phoneme

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// lengthMark is the IPA triangular colon. It binds to the preceding symbol.
const lengthMark = 'ː'

// ignored lists prosodic marks and transcription delimiters that carry no
// segment of their own.
var ignored = map[rune]bool{
	'ˈ': true,
	'ˌ': true,
	'.': true,
	'/': true,
	'[': true,
	']': true,
	'‿': true,
}

// Tokenize parses a phoneme string into canonical tokens. It never fails:
// unknown symbols are classified with [Classify]'s fallback.
//
// Whitespace-delimited input is split into fields; a field that is itself a
// known symbol becomes a single token, any other field is scanned. Scanning
// uses longest match against the symbol table (including aliases such as
// "tʃ" for "t͡ʃ") before falling back to one rune plus any combining marks.
// Input is NFC-normalised first, so precomposed and decomposed spellings of
// the same symbol yield the same token.
func Tokenize(s string) []Token {
	s = norm.NFC.String(s)
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return scan(s, nil)
	}
	var out []Token
	for _, field := range strings.Fields(s) {
		clean := stripIgnored(field)
		if clean == "" {
			continue
		}
		if t, ok := Lookup(clean); ok {
			out = append(out, t)
			continue
		}
		out = scan(clean, out)
	}
	return out
}

// scan appends the tokens of an undelimited phoneme run to out.
func scan(s string, out []Token) []Token {
	runes := []rune(stripIgnored(s))
	for i := 0; i < len(runes); {
		n, t := longestMatch(runes[i:])
		if n == 0 {
			n = clusterLen(runes[i:])
			t = Classify(string(runes[i : i+n]))
		}
		out = append(out, t)
		i += n
	}
	return out
}

// longestMatch returns the rune length and token of the longest known symbol
// prefixing rs. A match is rejected when it would split a combining mark or
// length mark away from its base.
func longestMatch(rs []rune) (int, Token) {
	for n := min(maxSymbolRunes, len(rs)); n > 0; n-- {
		if n < len(rs) && binds(rs[n]) {
			continue
		}
		if t, ok := Lookup(string(rs[:n])); ok {
			return n, t
		}
	}
	return 0, Token{}
}

// clusterLen returns the length of the grapheme cluster starting rs: one base
// rune followed by any binding marks.
func clusterLen(rs []rune) int {
	n := 1
	for n < len(rs) && binds(rs[n]) {
		n++
	}
	return n
}

// binds reports whether r attaches to the previous rune rather than starting
// a new segment. The tie bar is a nonspacing mark too, so a stray one stays
// with its base.
func binds(r rune) bool {
	return r == lengthMark || unicode.Is(unicode.Mn, r)
}

func stripIgnored(s string) string {
	return strings.Map(func(r rune) rune {
		if ignored[r] {
			return -1
		}
		return r
	}, s)
}

// Join renders tokens as a space-separated symbol string.
func Join(tokens []Token) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Symbol)
	}
	return b.String()
}

// Concat renders tokens without separators (e.g. "bɑt").
func Concat(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Symbol)
	}
	return b.String()
}

// Equal reports whether a and b carry the same symbol sequence.
func Equal(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Symbol != b[i].Symbol {
			return false
		}
	}
	return true
}
