package align_test

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/phonalign/pkg/align"
)

func split(s string) []string { return strings.Fields(s) }

func TestAlign(t *testing.T) {
	t.Parallel()

	const gap = align.Gap
	tests := []struct {
		name     string
		ref, rec string
		want     []align.Pair
	}{
		{
			name: "both empty",
			want: []align.Pair{},
		},
		{
			name: "empty reference",
			rec:  "k æ",
			want: []align.Pair{
				{Ref: gap, Rec: 0, Op: align.Insertion},
				{Ref: gap, Rec: 1, Op: align.Insertion},
			},
		},
		{
			name: "empty recognised",
			ref:  "k æ t",
			want: []align.Pair{
				{Ref: 0, Rec: gap, Op: align.Deletion},
				{Ref: 1, Rec: gap, Op: align.Deletion},
				{Ref: 2, Rec: gap, Op: align.Deletion},
			},
		},
		{
			name: "substitution",
			ref:  "h ɛ l oʊ",
			rec:  "h a l oʊ",
			want: []align.Pair{
				{Ref: 0, Rec: 0, Op: align.Match},
				{Ref: 1, Rec: 1, Op: align.Substitution},
				{Ref: 2, Rec: 2, Op: align.Match},
				{Ref: 3, Rec: 3, Op: align.Match},
			},
		},
		{
			name: "insertion",
			ref:  "k æ t",
			rec:  "k æ t s",
			want: []align.Pair{
				{Ref: 0, Rec: 0, Op: align.Match},
				{Ref: 1, Rec: 1, Op: align.Match},
				{Ref: 2, Rec: 2, Op: align.Match},
				{Ref: gap, Rec: 3, Op: align.Insertion},
			},
		},
		{
			name: "deletion",
			ref:  "s t ɑ p",
			rec:  "s ɑ p",
			want: []align.Pair{
				{Ref: 0, Rec: 0, Op: align.Match},
				{Ref: 1, Rec: gap, Op: align.Deletion},
				{Ref: 2, Rec: 1, Op: align.Match},
				{Ref: 3, Rec: 2, Op: align.Match},
			},
		},
		{
			// Shifting to gain a match beats two substitutions; at the final
			// cell deletion wins its tie against insertion.
			name: "transposition",
			ref:  "a b",
			rec:  "b a",
			want: []align.Pair{
				{Ref: gap, Rec: 0, Op: align.Insertion},
				{Ref: 0, Rec: 1, Op: align.Match},
				{Ref: 1, Rec: gap, Op: align.Deletion},
			},
		},
		{
			// At (2,1) the diagonal ties the vertical edge; the diagonal wins
			// so the deletion lands on the first reference token.
			name: "diagonal preferred on tie",
			ref:  "a b",
			rec:  "c",
			want: []align.Pair{
				{Ref: 0, Rec: gap, Op: align.Deletion},
				{Ref: 1, Rec: 0, Op: align.Substitution},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := align.AlignComparable(split(tt.ref), split(tt.rec), align.DefaultScoring)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Align(%q, %q) =\n  %v\nwant\n  %v", tt.ref, tt.rec, got, tt.want)
			}
		})
	}
}

func TestAlign_CustomEquality(t *testing.T) {
	t.Parallel()

	eq := func(a, b string) bool { return strings.EqualFold(a, b) }
	got := align.Align([]string{"Hello", "World"}, []string{"hello", "world"}, eq, align.DefaultScoring)
	if c := align.Count(got); c.Matches != 2 || c.Edits() != 0 {
		t.Errorf("Count = %+v, want 2 matches and no edits", c)
	}
}

// randomSeq draws n symbols from a small alphabet so that collisions and
// repeated symbols are common.
func randomSeq(r *rand.Rand, n int) []string {
	alphabet := []string{"p", "t", "k", "a", "i", "s", "l"}
	out := make([]string, n)
	for i := range out {
		out[i] = alphabet[r.IntN(len(alphabet))]
	}
	return out
}

func TestAlign_IdentityYieldsOnlyMatches(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		x := randomSeq(r, r.IntN(12))
		pairs := align.AlignComparable(x, x, align.DefaultScoring)
		if len(pairs) != len(x) {
			t.Fatalf("Align(%q, self): %d pairs, want %d", x, len(pairs), len(x))
		}
		for _, p := range pairs {
			if p.Op != align.Match {
				t.Fatalf("Align(%q, self) contains %s at %+v", x, p.Op, p)
			}
		}
	}
}

func TestAlign_PathCoversBothSequences(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(3, 4))
	for range 300 {
		ref := randomSeq(r, r.IntN(10))
		rec := randomSeq(r, r.IntN(10))
		pairs := align.AlignComparable(ref, rec, align.DefaultScoring)

		if len(pairs) < max(len(ref), len(rec)) {
			t.Fatalf("Align(%q, %q): path length %d shorter than inputs", ref, rec, len(pairs))
		}
		nextRef, nextRec := 0, 0
		for _, p := range pairs {
			if p.Ref != align.Gap {
				if p.Ref != nextRef {
					t.Fatalf("Align(%q, %q): ref index %d out of order, want %d", ref, rec, p.Ref, nextRef)
				}
				nextRef++
			}
			if p.Rec != align.Gap {
				if p.Rec != nextRec {
					t.Fatalf("Align(%q, %q): rec index %d out of order, want %d", ref, rec, p.Rec, nextRec)
				}
				nextRec++
			}
			if p.Op == align.Match && ref[p.Ref] != rec[p.Rec] {
				t.Fatalf("Align(%q, %q): match between %q and %q", ref, rec, ref[p.Ref], rec[p.Rec])
			}
			if p.Op == align.Substitution && ref[p.Ref] == rec[p.Rec] {
				t.Fatalf("Align(%q, %q): substitution between equal tokens %q", ref, rec, ref[p.Ref])
			}
		}
		if nextRef != len(ref) || nextRec != len(rec) {
			t.Fatalf("Align(%q, %q): consumed (%d, %d), want (%d, %d)", ref, rec, nextRef, nextRec, len(ref), len(rec))
		}
	}
}

func TestAlign_EditBoundUnderEditDistanceScoring(t *testing.T) {
	t.Parallel()

	// With gap >= match/2 + substitution the objective is a pure edit count,
	// so no alignment needs more edits than the longer sequence.
	s := align.Scoring{Match: 2, Substitution: 1, Gap: 2}
	r := rand.New(rand.NewPCG(5, 6))
	for range 300 {
		ref := randomSeq(r, r.IntN(10))
		rec := randomSeq(r, r.IntN(10))
		c := align.Count(align.AlignComparable(ref, rec, s))
		if c.Edits() > max(len(ref), len(rec)) {
			t.Fatalf("Align(%q, %q): %d edits exceed max length %d", ref, rec, c.Edits(), max(len(ref), len(rec)))
		}
	}
}

func TestAlign_DefaultScoringMayExceedEditBound(t *testing.T) {
	t.Parallel()

	// Under +2/-1/-1 a single match is worth two gaps, so the best path
	// spends four edits on two three-token sequences.
	ref, rec := split("a b c"), split("c d e")
	got := align.AlignComparable(ref, rec, align.DefaultScoring)
	want := []align.Pair{
		{Ref: 0, Rec: align.Gap, Op: align.Deletion},
		{Ref: 1, Rec: align.Gap, Op: align.Deletion},
		{Ref: 2, Rec: 0, Op: align.Match},
		{Ref: align.Gap, Rec: 1, Op: align.Insertion},
		{Ref: align.Gap, Rec: 2, Op: align.Insertion},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("AlignComparable = %v, want %v", got, want)
	}
	c := align.Count(got)
	if c.Edits() != 4 || c.Matches != 1 {
		t.Errorf("Count = %+v, want 1 match and 4 edits", c)
	}

	// Edit-distance scoring keeps the three substitutions.
	c = align.Count(align.AlignComparable(ref, rec, align.Scoring{Match: 2, Substitution: 1, Gap: 2}))
	if c.Substitutions != 3 || c.Edits() != 3 {
		t.Errorf("edit-distance Count = %+v, want 3 substitutions", c)
	}
}

func TestAlign_Deterministic(t *testing.T) {
	t.Parallel()

	ref, rec := split("s t r iː t"), split("s t iː t s")
	first := align.AlignComparable(ref, rec, align.DefaultScoring)
	for range 20 {
		if got := align.AlignComparable(ref, rec, align.DefaultScoring); !slices.Equal(got, first) {
			t.Fatalf("alignment changed between runs: %v vs %v", got, first)
		}
	}
}

func TestScoring_Validate(t *testing.T) {
	t.Parallel()

	if err := align.DefaultScoring.Validate(); err != nil {
		t.Errorf("DefaultScoring.Validate() = %v", err)
	}
	bad := align.Scoring{Match: 0, Substitution: -1, Gap: -1}
	if err := bad.Validate(); err == nil {
		t.Error("Validate(bad) = nil, want error")
	}
}

func TestOp_Text(t *testing.T) {
	t.Parallel()

	for op := align.Match; op <= align.Deletion; op++ {
		b, err := op.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", op, err)
		}
		var back align.Op
		if err := back.UnmarshalText(b); err != nil || back != op {
			t.Errorf("round trip %s → %s (err %v)", op, back, err)
		}
	}
	if align.Match.IsEdit() || !align.Deletion.IsEdit() {
		t.Error("IsEdit misclassifies match or deletion")
	}
}
