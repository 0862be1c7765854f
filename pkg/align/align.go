// Package align implements global sequence alignment (Needleman-Wunsch) over
// arbitrary token sequences.
//
// The aligner fills an (m+1)×(n+1) score table where cell (i, j) holds the
// best score for aligning the first i reference tokens with the first j
// recognised tokens, then backtraces from (m, n) to (0, 0). Ties between
// incoming edges are broken deterministically:
//
//  1. diagonal (match or substitution),
//  2. vertical (deletion),
//  3. horizontal (insertion).
//
// The same inputs therefore always produce the same edit path.
package align

import (
	"errors"
	"fmt"
)

// Op classifies one step of an alignment.
type Op int

const (
	// Match aligns two equal tokens.
	Match Op = iota

	// Substitution aligns two different tokens.
	Substitution

	// Insertion is a recognised token with no reference counterpart.
	Insertion

	// Deletion is a reference token with no recognised counterpart.
	Deletion
)

var opNames = [...]string{
	Match:        "match",
	Substitution: "substitution",
	Insertion:    "insertion",
	Deletion:     "deletion",
}

// String returns the lower-case name of the operation.
func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opNames[o]
}

// IsEdit reports whether o is anything other than [Match].
func (o Op) IsEdit() bool { return o != Match }

// MarshalText implements [encoding.TextMarshaler].
func (o Op) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= len(opNames) {
		return nil, fmt.Errorf("align: invalid op %d", int(o))
	}
	return []byte(opNames[o]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (o *Op) UnmarshalText(b []byte) error {
	for i, name := range opNames {
		if name == string(b) {
			*o = Op(i)
			return nil
		}
	}
	return fmt.Errorf("align: unknown op %q", b)
}

// Scoring holds the alignment weights. Penalties are positive numbers that
// are subtracted from the score.
type Scoring struct {
	Match        int `yaml:"match" json:"match"`
	Substitution int `yaml:"substitution" json:"substitution"`
	Gap          int `yaml:"gap" json:"gap"`
}

// DefaultScoring is +2 per match, -1 per substitution, -1 per gap.
var DefaultScoring = Scoring{Match: 2, Substitution: 1, Gap: 1}

// Validate reports whether s can drive an alignment.
func (s Scoring) Validate() error {
	var errs []error
	if s.Match <= 0 {
		errs = append(errs, fmt.Errorf("match score %d must be positive", s.Match))
	}
	if s.Substitution < 0 {
		errs = append(errs, fmt.Errorf("substitution penalty %d must not be negative", s.Substitution))
	}
	if s.Gap < 0 {
		errs = append(errs, fmt.Errorf("gap penalty %d must not be negative", s.Gap))
	}
	return errors.Join(errs...)
}

// Gap marks the missing side of an insertion or deletion in a [Pair].
const Gap = -1

// Pair is one step of an alignment. Ref and Rec index into the reference and
// recognised sequences; one of them is [Gap] for insertions and deletions.
type Pair struct {
	Ref int `json:"ref"`
	Rec int `json:"rec"`
	Op  Op  `json:"op"`
}

// Align globally aligns ref against rec using eq to compare tokens. The
// result length equals the edit-path length, at least max(len(ref),
// len(rec)). Empty inputs are valid: an empty ref yields only insertions, an
// empty rec only deletions, and two empty inputs an empty result.
func Align[T any](ref, rec []T, eq func(a, b T) bool, s Scoring) []Pair {
	m, n := len(ref), len(rec)
	if m == 0 && n == 0 {
		return []Pair{}
	}

	// ops[i][j] records the winning incoming edge of cell (i, j); the score
	// table only needs the previous row.
	ops := make([][]Op, m+1)
	for i := range ops {
		ops[i] = make([]Op, n+1)
	}
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for j := 1; j <= n; j++ {
		prev[j] = -j * s.Gap
		ops[0][j] = Insertion
	}

	for i := 1; i <= m; i++ {
		cur[0] = -i * s.Gap
		ops[i][0] = Deletion
		for j := 1; j <= n; j++ {
			diagOp := Substitution
			diag := prev[j-1] - s.Substitution
			if eq(ref[i-1], rec[j-1]) {
				diagOp = Match
				diag = prev[j-1] + s.Match
			}
			up := prev[j] - s.Gap
			left := cur[j-1] - s.Gap

			switch {
			case diag >= up && diag >= left:
				cur[j], ops[i][j] = diag, diagOp
			case up >= left:
				cur[j], ops[i][j] = up, Deletion
			default:
				cur[j], ops[i][j] = left, Insertion
			}
		}
		prev, cur = cur, prev
	}

	return backtrace(ops, m, n)
}

// AlignComparable is [Align] with == as the token comparison.
func AlignComparable[T comparable](ref, rec []T, s Scoring) []Pair {
	return Align(ref, rec, func(a, b T) bool { return a == b }, s)
}

// backtrace walks the recorded edges from (m, n) back to the origin.
func backtrace(ops [][]Op, m, n int) []Pair {
	path := make([]Pair, 0, max(m, n))
	i, j := m, n
	for i > 0 || j > 0 {
		switch op := ops[i][j]; op {
		case Match, Substitution:
			i--
			j--
			path = append(path, Pair{Ref: i, Rec: j, Op: op})
		case Deletion:
			i--
			path = append(path, Pair{Ref: i, Rec: Gap, Op: Deletion})
		default:
			j--
			path = append(path, Pair{Ref: Gap, Rec: j, Op: Insertion})
		}
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// Counts tallies the operations of an alignment.
type Counts struct {
	Matches       int
	Substitutions int
	Insertions    int
	Deletions     int
}

// Edits returns the number of non-match operations.
func (c Counts) Edits() int {
	return c.Substitutions + c.Insertions + c.Deletions
}

// Count tallies the operations in pairs.
func Count(pairs []Pair) Counts {
	var c Counts
	for _, p := range pairs {
		switch p.Op {
		case Match:
			c.Matches++
		case Substitution:
			c.Substitutions++
		case Insertion:
			c.Insertions++
		case Deletion:
			c.Deletions++
		}
	}
	return c
}
