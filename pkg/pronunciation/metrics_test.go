package pronunciation_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/MrWong99/phonalign/pkg/align"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

func TestCalculateMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		comparisons []pronunciation.WordComparison
		want        pronunciation.Metrics
	}{
		{
			name: "no words",
			want: pronunciation.Metrics{},
		},
		{
			name: "one substitution",
			comparisons: []pronunciation.WordComparison{
				{Word: "hello", ReferenceLength: 4, Errors: []pronunciation.EditError{{Op: align.Substitution, Index: 1}}},
				{Word: "world", ReferenceLength: 4, Match: true},
			},
			want: pronunciation.Metrics{
				WordAccuracy:     50,
				PhonemeAccuracy:  87.5,
				PhonemeErrorRate: 0.125,
				TotalWords:       2,
				CorrectWords:     1,
				Substitutions:    1,
			},
		},
		{
			name: "mixed edits",
			comparisons: []pronunciation.WordComparison{
				{Word: "cat", ReferenceLength: 3, Errors: []pronunciation.EditError{
					{Op: align.Deletion, Index: 0},
					{Op: align.Deletion, Index: 1},
					{Op: align.Deletion, Index: 2},
				}},
				{Word: "dog", ReferenceLength: 3, Errors: []pronunciation.EditError{
					{Op: align.Insertion, Index: 3},
				}},
				{Word: "a", ReferenceLength: 2, Match: true},
				{Word: "bee", ReferenceLength: 2, Match: true},
			},
			want: pronunciation.Metrics{
				WordAccuracy:     50,
				PhonemeAccuracy:  70,
				PhonemeErrorRate: 0.4,
				TotalWords:       4,
				CorrectWords:     2,
				Insertions:       1,
				Deletions:        3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := pronunciation.CalculateMetrics(tt.comparisons); got != tt.want {
				t.Errorf("CalculateMetrics = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSelectDrillWords(t *testing.T) {
	t.Parallel()

	comparisons := []pronunciation.WordComparison{
		{Word: "the", Match: true, PhonemeAccuracy: 100},
		{Word: "world", Match: false, PhonemeAccuracy: 75},
		{Word: "hello", Match: true, PhonemeAccuracy: 79.9},
		{Word: "World", Match: false, PhonemeAccuracy: 50},
		{Word: "edge", Match: true, PhonemeAccuracy: 80},
		{Word: "odd", Match: false, PhonemeAccuracy: 100},
	}

	got := pronunciation.SelectDrillWords(comparisons, pronunciation.DefaultDrillThreshold)
	want := []string{"world", "hello", "odd"}
	if !slices.Equal(got, want) {
		t.Errorf("SelectDrillWords = %q, want %q", got, want)
	}

	if got := pronunciation.SelectDrillWords(nil, 80); got == nil || len(got) != 0 {
		t.Errorf("SelectDrillWords(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestSelectDrillWords_Monotonic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	words := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	for range 500 {
		comparisons := make([]pronunciation.WordComparison, 1+rng.IntN(8))
		for i := range comparisons {
			comparisons[i] = pronunciation.WordComparison{
				Word:            words[rng.IntN(len(words))],
				Match:           rng.IntN(2) == 0,
				PhonemeAccuracy: float64(rng.IntN(101)),
			}
		}
		drill := pronunciation.SelectDrillWords(comparisons, 80)

		flagged := make(map[string]bool)
		for _, c := range comparisons {
			if !c.Match || c.PhonemeAccuracy < 80 {
				flagged[c.Word] = true
			}
		}
		for _, c := range comparisons {
			in := slices.Contains(drill, c.Word)
			if !c.Match && !in {
				t.Fatalf("unmatched %q missing from %q", c.Word, drill)
			}
			if !flagged[c.Word] && in {
				t.Fatalf("clean %q selected in %q", c.Word, drill)
			}
		}
		seen := make(map[string]bool)
		for _, w := range drill {
			if seen[w] {
				t.Fatalf("duplicate %q in %q", w, drill)
			}
			seen[w] = true
		}
	}
}
