package pronunciation

import "strings"

// DefaultDrillThreshold is the phoneme accuracy below which a word is
// suggested for drilling even when it matched.
const DefaultDrillThreshold = 80.0

// CalculateMetrics aggregates comparisons. Ratios are 0 when their
// denominator is 0.
func CalculateMetrics(comparisons []WordComparison) Metrics {
	var m Metrics
	var refTotal, matched int
	for _, c := range comparisons {
		m.TotalWords++
		if c.Match {
			m.CorrectWords++
		}
		subs, ins, dels := c.counts()
		m.Substitutions += subs
		m.Insertions += ins
		m.Deletions += dels
		refTotal += c.ReferenceLength
		matched += c.ReferenceLength - subs - dels
	}
	if m.TotalWords > 0 {
		m.WordAccuracy = 100 * float64(m.CorrectWords) / float64(m.TotalWords)
	}
	if refTotal > 0 {
		m.PhonemeAccuracy = 100 * float64(matched) / float64(refTotal)
		m.PhonemeErrorRate = float64(m.Substitutions+m.Insertions+m.Deletions) / float64(refTotal)
	}
	return m
}

// SelectDrillWords returns the words that did not match or scored below
// threshold, in order of first appearance. Words repeated in the lexicon are
// listed once, under the spelling first seen; repeats share a [WordKey].
func SelectDrillWords(comparisons []WordComparison, threshold float64) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, c := range comparisons {
		if c.Match && c.PhonemeAccuracy >= threshold {
			continue
		}
		key := WordKey(c.Word)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c.Word)
	}
	return out
}

// WordKey folds a reference word to the key used to merge repeats in
// [Analysis.SyllablesByWord] and [SelectDrillWords].
func WordKey(word string) string {
	return strings.ToLower(word)
}
