package pronunciation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/phonalign/pkg/align"
	"github.com/MrWong99/phonalign/pkg/phoneme"
)

// AlignOptions tunes [AlignWords]. The zero value uses [align.DefaultScoring]
// and GOMAXPROCS workers.
type AlignOptions struct {
	Scoring align.Scoring

	// Workers bounds concurrent per-word alignments. Zero or negative means
	// runtime.GOMAXPROCS(0).
	Workers int
}

func (o AlignOptions) scoring() align.Scoring {
	if o.Scoring == (align.Scoring{}) {
		return align.DefaultScoring
	}
	return o.Scoring
}

func (o AlignOptions) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

// window is the half-open range of recognised tokens assigned to one word.
type window struct{ lo, hi int }

// wordAlignment is a comparison together with the local alignment it was
// derived from. Pair.Rec indices are relative to the window.
type wordAlignment struct {
	comparison WordComparison
	pairs      []align.Pair
	window     window
}

// AlignWords compares every lexicon entry against its share of recognized.
//
// A coarse alignment of the concatenated reference against the whole
// recognised stream assigns each recognised token to a word: a token aligned
// to a reference token belongs to that token's word, an inserted token to the
// word of the preceding reference token (leading insertions go to the first
// word). Each word is then re-aligned locally against its window, fanned out
// over at most opts.Workers goroutines. Results keep lexicon order.
//
// The only error is ctx's, when it is cancelled before all words finish.
func AlignWords(ctx context.Context, lexicon []LexiconEntry, recognized []phoneme.Token, opts AlignOptions) ([]WordComparison, error) {
	results, err := alignWords(ctx, lexicon, recognized, opts)
	if err != nil {
		return nil, err
	}
	out := make([]WordComparison, len(results))
	for i, r := range results {
		out[i] = r.comparison
	}
	return out, nil
}

func alignWords(ctx context.Context, lexicon []LexiconEntry, recognized []phoneme.Token, opts AlignOptions) ([]wordAlignment, error) {
	if len(lexicon) == 0 {
		return []wordAlignment{}, nil
	}
	s := opts.scoring()

	windows, err := coarseWindows(lexicon, recognized, s)
	if err != nil {
		slog.Warn("coarse alignment failed, aligning words sequentially", "err", err, "words", len(lexicon))
		return sequentialAlign(ctx, lexicon, recognized, s)
	}

	results := make([]wordAlignment, len(lexicon))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.workers())
	for i, entry := range lexicon {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = alignLocal(entry, recognized, windows[i], s)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("pronunciation: align words: %w", err)
	}
	return results, nil
}

// coarseWindows runs the coarse pass and segments recognized into one window
// per lexicon entry. Windows are contiguous, ordered and cover recognized.
func coarseWindows(lexicon []LexiconEntry, recognized []phoneme.Token, s align.Scoring) (windows []window, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coarse alignment panicked: %v", r)
		}
	}()

	var ref []phoneme.Token
	var wordOf []int
	for i, e := range lexicon {
		ref = append(ref, e.Reference...)
		for range e.Reference {
			wordOf = append(wordOf, i)
		}
	}
	if len(ref) == 0 {
		return nil, fmt.Errorf("empty reference")
	}

	windows = make([]window, len(lexicon))
	for i := range windows {
		windows[i] = window{lo: -1, hi: -1}
	}

	pairs := align.Align(ref, recognized, tokenEqual, s)
	cur := wordOf[0]
	for _, p := range pairs {
		if p.Ref != align.Gap {
			cur = wordOf[p.Ref]
		}
		if p.Rec == align.Gap {
			continue
		}
		w := &windows[cur]
		if w.lo < 0 {
			w.lo = p.Rec
		}
		w.hi = p.Rec + 1
	}

	// Empty windows sit where the previous one ended.
	pos := 0
	for i := range windows {
		if windows[i].lo < 0 {
			windows[i] = window{lo: pos, hi: pos}
		}
		if windows[i].lo != pos {
			return nil, fmt.Errorf("inconsistent segmentation at word %d: window starts at %d, want %d", i, windows[i].lo, pos)
		}
		pos = windows[i].hi
	}
	if pos != len(recognized) {
		return nil, fmt.Errorf("inconsistent segmentation: %d of %d tokens assigned", pos, len(recognized))
	}
	return windows, nil
}

// sequentialAlign aligns each word directly against the remaining recognised
// stream. A word consumes the stream up to its last aligned token; trailing
// insertions are left for the following words, and the last word takes
// everything that remains.
func sequentialAlign(ctx context.Context, lexicon []LexiconEntry, recognized []phoneme.Token, s align.Scoring) ([]wordAlignment, error) {
	results := make([]wordAlignment, len(lexicon))
	pos := 0
	for i, entry := range lexicon {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pronunciation: align words: %w", err)
		}
		hi := len(recognized)
		if i < len(lexicon)-1 {
			hi = pos
			for _, p := range align.Align(entry.Reference, recognized[pos:], tokenEqual, s) {
				if p.Rec != align.Gap && p.Ref != align.Gap {
					hi = pos + p.Rec + 1
				}
			}
		}
		results[i] = alignLocal(entry, recognized, window{lo: pos, hi: hi}, s)
		pos = hi
	}
	return results, nil
}

// alignLocal aligns one word against its window and classifies the edits.
func alignLocal(entry LexiconEntry, recognized []phoneme.Token, w window, s align.Scoring) wordAlignment {
	rec := recognized[w.lo:w.hi]
	pairs := align.Align(entry.Reference, rec, tokenEqual, s)

	errs := []EditError{}
	matches, refPos := 0, 0
	for _, p := range pairs {
		switch p.Op {
		case align.Match:
			matches++
		case align.Substitution:
			errs = append(errs, EditError{
				Op:       p.Op,
				Index:    p.Ref,
				Expected: entry.Reference[p.Ref].Symbol,
				Actual:   rec[p.Rec].Symbol,
			})
		case align.Deletion:
			errs = append(errs, EditError{Op: p.Op, Index: p.Ref, Expected: entry.Reference[p.Ref].Symbol})
		case align.Insertion:
			errs = append(errs, EditError{Op: p.Op, Index: refPos, Actual: rec[p.Rec].Symbol})
		}
		if p.Ref != align.Gap {
			refPos = p.Ref + 1
		}
	}

	var acc float64
	if n := len(entry.Reference); n > 0 {
		acc = 100 * float64(matches) / float64(n)
	}
	return wordAlignment{
		comparison: WordComparison{
			Word:                    entry.Word,
			ReferencePhonemeString:  phoneme.Join(entry.Reference),
			RecognizedPhonemeString: phoneme.Join(rec),
			Match:                   len(errs) == 0,
			PhonemeAccuracy:         acc,
			Errors:                  errs,
			ReferenceLength:         len(entry.Reference),
		},
		pairs:  pairs,
		window: w,
	}
}

func tokenEqual(a, b phoneme.Token) bool { return a.Symbol == b.Symbol }
