package syllable

import "github.com/MrWong99/phonalign/pkg/phoneme"

// Normalize prepares tokens for syllabification and returns the normalised
// tokens with their timings carried along (merged spans cover both inputs).
//
// Adjacent tokens whose concatenation is a known diphthong or affricate are
// merged. A schwa followed by l, r, m or n collapses into the syllabic form
// of the sonorant when a consonant precedes the schwa and no vowel follows
// the sonorant: "b ɑ t ə l" becomes "b ɑ t l̩".
//
// timings may be nil; otherwise it must have one entry per token, and nil
// entries mark tokens without timing. Normalize never modifies its inputs.
func Normalize(tokens []phoneme.Token, timings []*Timing) ([]phoneme.Token, []*Timing) {
	if len(timings) != len(tokens) {
		timings = nil
	}
	merged, mergedTimings := mergePairs(tokens, timings)
	return collapseSchwa(merged, mergedTimings)
}

func mergePairs(tokens []phoneme.Token, timings []*Timing) ([]phoneme.Token, []*Timing) {
	out := make([]phoneme.Token, 0, len(tokens))
	var outTimings []*Timing
	if timings != nil {
		outTimings = make([]*Timing, 0, len(tokens))
	}
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) {
			if t, ok := phoneme.Lookup(tokens[i].Symbol + tokens[i+1].Symbol); ok &&
				(t.Category == phoneme.Diphthong || t.Category == phoneme.Affricate) {
				out = append(out, t)
				if timings != nil {
					outTimings = append(outTimings, span(timings[i], timings[i+1]))
				}
				i++
				continue
			}
		}
		out = append(out, tokens[i])
		if timings != nil {
			outTimings = append(outTimings, timings[i])
		}
	}
	return out, outTimings
}

func collapseSchwa(tokens []phoneme.Token, timings []*Timing) ([]phoneme.Token, []*Timing) {
	out := make([]phoneme.Token, 0, len(tokens))
	var outTimings []*Timing
	if timings != nil {
		outTimings = make([]*Timing, 0, len(tokens))
	}
	for i := 0; i < len(tokens); i++ {
		if syl, ok := schwaSonorant(out, tokens, i); ok {
			out = append(out, syl)
			if timings != nil {
				outTimings = append(outTimings, span(timings[i], timings[i+1]))
			}
			i++
			continue
		}
		out = append(out, tokens[i])
		if timings != nil {
			outTimings = append(outTimings, timings[i])
		}
	}
	return out, outTimings
}

// schwaSonorant reports whether tokens[i:i+2] is a collapsible schwa plus
// sonorant and returns the syllabic consonant replacing them. done holds the
// tokens already emitted, so a sonorant consumed by an earlier collapse does
// not count as the preceding consonant.
func schwaSonorant(done, tokens []phoneme.Token, i int) (phoneme.Token, bool) {
	if len(done) == 0 || i+1 >= len(tokens) || tokens[i].Symbol != "ə" {
		return phoneme.Token{}, false
	}
	switch tokens[i+1].Symbol {
	case "l", "r", "m", "n":
	default:
		return phoneme.Token{}, false
	}
	if !done[len(done)-1].IsConsonant() {
		return phoneme.Token{}, false
	}
	if i+2 < len(tokens) && tokens[i+2].IsNucleus() {
		return phoneme.Token{}, false
	}
	return phoneme.Syllabic(tokens[i+1])
}

// span merges two optional timings into one covering both.
func span(a, b *Timing) *Timing {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return &Timing{Start: min(a.Start, b.Start), End: max(a.End, b.End)}
}
