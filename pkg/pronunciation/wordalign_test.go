package pronunciation_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/phonalign/pkg/align"
	"github.com/MrWong99/phonalign/pkg/phoneme"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

func lexicon(t *testing.T, pairs ...string) []pronunciation.LexiconEntry {
	t.Helper()
	var in []pronunciation.LexiconInput
	for i := 0; i+1 < len(pairs); i += 2 {
		in = append(in, pronunciation.LexiconInput{Word: pairs[i], Phonemes: pairs[i+1]})
	}
	lex, err := pronunciation.NewLexicon(in)
	if err != nil {
		t.Fatalf("NewLexicon: %v", err)
	}
	return lex
}

func ops(errs []pronunciation.EditError) []align.Op {
	out := make([]align.Op, len(errs))
	for i, e := range errs {
		out[i] = e.Op
	}
	return out
}

func TestAlignWords(t *testing.T) {
	t.Parallel()

	hello := []string{"hello", "h ɛ l oʊ", "world", "w ɜr l d"}

	tests := []struct {
		name       string
		lexicon    []string
		recognized string
		wantRec    []string
		wantMatch  []bool
		wantAcc    []float64
		wantErrors [][]pronunciation.EditError
	}{
		{
			name:       "identical",
			lexicon:    hello,
			recognized: "h ɛ l oʊ w ɜr l d",
			wantRec:    []string{"h ɛ l oʊ", "w ɝ l d"},
			wantMatch:  []bool{true, true},
			wantAcc:    []float64{100, 100},
			wantErrors: [][]pronunciation.EditError{{}, {}},
		},
		{
			name:       "substitution in first word",
			lexicon:    hello,
			recognized: "h a l oʊ w ɜr l d",
			wantRec:    []string{"h a l oʊ", "w ɝ l d"},
			wantMatch:  []bool{false, true},
			wantAcc:    []float64{75, 100},
			wantErrors: [][]pronunciation.EditError{
				{{Op: align.Substitution, Index: 1, Expected: "ɛ", Actual: "a"}},
				{},
			},
		},
		{
			name:       "skipped word",
			lexicon:    hello,
			recognized: "w ɜr l d",
			wantRec:    []string{"", "w ɝ l d"},
			wantMatch:  []bool{false, true},
			wantAcc:    []float64{0, 100},
			wantErrors: [][]pronunciation.EditError{
				{
					{Op: align.Deletion, Index: 0, Expected: "h"},
					{Op: align.Deletion, Index: 1, Expected: "ɛ"},
					{Op: align.Deletion, Index: 2, Expected: "l"},
					{Op: align.Deletion, Index: 3, Expected: "oʊ"},
				},
				{},
			},
		},
		{
			name:       "insertion between words belongs to the preceding word",
			lexicon:    hello,
			recognized: "h ɛ l oʊ ə w ɜr l d",
			wantRec:    []string{"h ɛ l oʊ ə", "w ɝ l d"},
			wantMatch:  []bool{false, true},
			wantAcc:    []float64{100, 100},
			wantErrors: [][]pronunciation.EditError{
				{{Op: align.Insertion, Index: 4, Actual: "ə"}},
				{},
			},
		},
		{
			name:       "no recognised tokens",
			lexicon:    []string{"cat", "k æ t"},
			recognized: "",
			wantRec:    []string{""},
			wantMatch:  []bool{false},
			wantAcc:    []float64{0},
			wantErrors: [][]pronunciation.EditError{{
				{Op: align.Deletion, Index: 0, Expected: "k"},
				{Op: align.Deletion, Index: 1, Expected: "æ"},
				{Op: align.Deletion, Index: 2, Expected: "t"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := pronunciation.AlignWords(context.Background(), lexicon(t, tt.lexicon...),
				phoneme.Tokenize(tt.recognized), pronunciation.AlignOptions{})
			if err != nil {
				t.Fatalf("AlignWords: %v", err)
			}
			if len(got) != len(tt.wantRec) {
				t.Fatalf("got %d comparisons, want %d", len(got), len(tt.wantRec))
			}
			for i, c := range got {
				if c.RecognizedPhonemeString != tt.wantRec[i] {
					t.Errorf("word %d recognized = %q, want %q", i, c.RecognizedPhonemeString, tt.wantRec[i])
				}
				if c.Match != tt.wantMatch[i] {
					t.Errorf("word %d match = %v, want %v", i, c.Match, tt.wantMatch[i])
				}
				if c.PhonemeAccuracy != tt.wantAcc[i] {
					t.Errorf("word %d accuracy = %v, want %v", i, c.PhonemeAccuracy, tt.wantAcc[i])
				}
				if !slices.Equal(c.Errors, tt.wantErrors[i]) {
					t.Errorf("word %d errors = %+v, want %+v", i, c.Errors, tt.wantErrors[i])
				}
			}
		})
	}
}

func TestAlignWords_EmptyReferenceFallsBack(t *testing.T) {
	t.Parallel()

	lex := lexicon(t, "uh", "", "um", "")
	got, err := pronunciation.AlignWords(context.Background(), lex, phoneme.Tokenize("k æ t"), pronunciation.AlignOptions{})
	if err != nil {
		t.Fatalf("AlignWords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d comparisons, want 2", len(got))
	}
	if got[0].RecognizedPhonemeString != "" {
		t.Errorf("first word recognized = %q, want empty", got[0].RecognizedPhonemeString)
	}
	want := []align.Op{align.Insertion, align.Insertion, align.Insertion}
	if !slices.Equal(ops(got[1].Errors), want) {
		t.Errorf("last word ops = %v, want %v", ops(got[1].Errors), want)
	}
	if got[1].PhonemeAccuracy != 0 {
		t.Errorf("accuracy = %v, want 0 for an empty reference", got[1].PhonemeAccuracy)
	}
}

func TestAlignWords_PreservesOrder(t *testing.T) {
	t.Parallel()

	syms := strings.Fields("p t k b d ɡ s z m n l r ɑ æ ɪ ɛ ʊ ə")
	rng := rand.New(rand.NewPCG(3, 5))

	var pairs []string
	var recognized []string
	for i := range 64 {
		var word []string
		for range 1 + rng.IntN(5) {
			word = append(word, syms[rng.IntN(len(syms))])
		}
		pairs = append(pairs, fmt.Sprintf("w%02d", i), strings.Join(word, " "))
		recognized = append(recognized, word...)
	}
	lex := lexicon(t, pairs...)

	for _, workers := range []int{1, 4, 32} {
		got, err := pronunciation.AlignWords(context.Background(), lex,
			phoneme.Tokenize(strings.Join(recognized, " ")), pronunciation.AlignOptions{Workers: workers})
		if err != nil {
			t.Fatalf("workers=%d: AlignWords: %v", workers, err)
		}
		for i, c := range got {
			if c.Word != lex[i].Word {
				t.Fatalf("workers=%d: comparison %d is %q, want %q", workers, i, c.Word, lex[i].Word)
			}
			if !c.Match {
				t.Errorf("workers=%d: %q did not match identical input: %+v", workers, c.Word, c.Errors)
			}
		}
	}
}

func TestAlignWords_EditBoundUnderEditDistanceScoring(t *testing.T) {
	t.Parallel()

	syms := strings.Fields("p t k s m l ɑ ɪ ə")
	rng := rand.New(rand.NewPCG(17, 19))
	opts := pronunciation.AlignOptions{Scoring: align.Scoring{Match: 2, Substitution: 1, Gap: 2}}

	randomWord := func(n int) string {
		out := make([]string, n)
		for i := range out {
			out[i] = syms[rng.IntN(len(syms))]
		}
		return strings.Join(out, " ")
	}

	for range 300 {
		ref := randomWord(1 + rng.IntN(6))
		rec := randomWord(rng.IntN(8))
		got, err := pronunciation.AlignWords(context.Background(), lexicon(t, "w", ref), phoneme.Tokenize(rec), opts)
		if err != nil {
			t.Fatalf("AlignWords: %v", err)
		}
		c := got[0]
		bound := max(len(strings.Fields(ref)), len(strings.Fields(rec)))
		if len(c.Errors) > bound {
			t.Errorf("%q vs %q: %d edits exceed %d", ref, rec, len(c.Errors), bound)
		}
	}
}

func TestAlignWords_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pronunciation.AlignWords(ctx, lexicon(t, "cat", "k æ t"), phoneme.Tokenize("k æ t"), pronunciation.AlignOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewLexicon_EmptyWord(t *testing.T) {
	t.Parallel()

	_, err := pronunciation.NewLexicon([]pronunciation.LexiconInput{{Word: "ok", Phonemes: "oʊ k eɪ"}, {Word: "  ", Phonemes: "ə"}})
	if !errors.Is(err, pronunciation.ErrEmptyWord) {
		t.Errorf("err = %v, want ErrEmptyWord", err)
	}
}
