package pronunciation_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/phonalign/pkg/align"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
	"github.com/MrWong99/phonalign/pkg/syllable"
)

var helloWorld = []pronunciation.LexiconInput{
	{Word: "hello", Phonemes: "h ɛ l oʊ"},
	{Word: "world", Phonemes: "w ɜr l d"},
}

func newAnalyzer(t *testing.T, opts ...pronunciation.Option) *pronunciation.Analyzer {
	t.Helper()
	a, err := pronunciation.NewAnalyzer(append([]pronunciation.Option{pronunciation.WithStrict(true)}, opts...)...)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestAnalyze_Identical(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon:    helloWorld,
		Recognized: "h ɛ l oʊ w ɜr l d",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Metrics.WordAccuracy != 100 {
		t.Errorf("WordAccuracy = %v, want 100", got.Metrics.WordAccuracy)
	}
	if len(got.SuggestedDrillWords) != 0 {
		t.Errorf("SuggestedDrillWords = %q, want none", got.SuggestedDrillWords)
	}
	if texts := syllable.Texts(got.SyllablesByWord["hello"]); !slices.Equal(texts, []string{"hɛ", "loʊ"}) {
		t.Errorf("hello syllables = %q, want [hɛ loʊ]", texts)
	}
	if texts := syllable.Texts(got.SyllablesByWord["world"]); !slices.Equal(texts, []string{"wɝld"}) {
		t.Errorf("world syllables = %q, want [wɝld]", texts)
	}
}

func TestAnalyze_Substitution(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon:    helloWorld,
		Recognized: "h a l oʊ w ɜr l d",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Metrics.WordAccuracy != 50 {
		t.Errorf("WordAccuracy = %v, want 50", got.Metrics.WordAccuracy)
	}
	if got.Comparisons[0].Match {
		t.Error("comparisons[0].Match = true, want false")
	}
	if !slices.Equal(got.SuggestedDrillWords, []string{"hello"}) {
		t.Errorf("SuggestedDrillWords = %q, want [hello]", got.SuggestedDrillWords)
	}
}

func TestAnalyze_MissingWord(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon: []pronunciation.LexiconInput{{Word: "cat", Phonemes: "k æ t"}},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	c := got.Comparisons[0]
	want := []align.Op{align.Deletion, align.Deletion, align.Deletion}
	if c.Match || c.PhonemeAccuracy != 0 || !slices.Equal(ops(c.Errors), want) {
		t.Errorf("comparison = %+v, want no match, accuracy 0, three deletions", c)
	}
}

func TestAnalyze_Timings(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon:    []pronunciation.LexiconInput{{Word: "water", Phonemes: "w ɔ t ɚ"}},
		Recognized: "w ɑ t ɚ",
		Timings: []syllable.Timing{
			{Start: 1.0, End: 1.1},
			{Start: 1.1, End: 1.3},
			{Start: 1.3, End: 1.4},
			{Start: 1.4, End: 1.7},
		},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	syls := got.SyllablesByWord["water"]
	if len(syls) != 2 {
		t.Fatalf("got %d syllables, want 2", len(syls))
	}
	want := [][2]float64{{1.0, 1.3}, {1.3, 1.7}}
	for i, w := range want {
		if syls[i].Start == nil || *syls[i].Start != w[0] || *syls[i].End != w[1] {
			t.Errorf("syllable %d timing = %v-%v, want %v", i, syls[i].Start, syls[i].End, w)
		}
	}
}

func TestAnalyze_TimingsMismatchIgnored(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon:    []pronunciation.LexiconInput{{Word: "cat", Phonemes: "k æ t"}},
		Recognized: "k æ t",
		Timings:    []syllable.Timing{{Start: 0, End: 1}},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if s := got.SyllablesByWord["cat"][0]; s.Start != nil {
		t.Errorf("Start = %v, want nil", *s.Start)
	}
}

func TestAnalyze_HeardAs(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon:    helloWorld,
		Recognized: "h ɛ l oʊ w ɜr d",
		Transcript: "Hello, word!",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Comparisons[0].HeardAs != "Hello" || got.Comparisons[1].HeardAs != "word" {
		t.Errorf("HeardAs = %q, %q; want Hello, word", got.Comparisons[0].HeardAs, got.Comparisons[1].HeardAs)
	}

	plain := newAnalyzer(t, pronunciation.WithHeardMatcher(nil))
	got, err = plain.Analyze(context.Background(), pronunciation.Request{
		Lexicon:    helloWorld,
		Recognized: "h ɛ l oʊ w ɜr d",
		Transcript: "hello word",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Comparisons[0].HeardAs != "" {
		t.Errorf("HeardAs = %q with matcher disabled", got.Comparisons[0].HeardAs)
	}
}

func TestAnalyze_SyllablesDisabled(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t, pronunciation.WithSyllables(false)).Analyze(context.Background(), pronunciation.Request{
		Lexicon:    helloWorld,
		Recognized: "h ɛ l oʊ w ɜr l d",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.SyllablesByWord != nil {
		t.Errorf("SyllablesByWord = %v, want nil", got.SyllablesByWord)
	}
}

func TestAnalyze_InvalidLexicon(t *testing.T) {
	t.Parallel()

	_, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon: []pronunciation.LexiconInput{{Word: "", Phonemes: "ə"}},
	})
	if !errors.Is(err, pronunciation.ErrEmptyWord) {
		t.Errorf("err = %v, want ErrEmptyWord", err)
	}
}

func TestNewAnalyzer_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  pronunciation.Option
	}{
		{"zero match score", pronunciation.WithScoring(align.Scoring{Match: 0, Substitution: 1, Gap: 1})},
		{"negative gap", pronunciation.WithScoring(align.Scoring{Match: 2, Substitution: 1, Gap: -1})},
		{"threshold above 100", pronunciation.WithDrillThreshold(120)},
		{"negative threshold", pronunciation.WithDrillThreshold(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := pronunciation.NewAnalyzer(tt.opt); err == nil {
				t.Error("NewAnalyzer: want error")
			}
		})
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	stats []pronunciation.Stats
}

func (r *recordingObserver) ObserveAnalysis(_ context.Context, s pronunciation.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, s)
}

func TestAnalyze_Observer(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	a := newAnalyzer(t, pronunciation.WithObserver(obs))
	if _, err := a.Analyze(context.Background(), pronunciation.Request{
		Lexicon:    helloWorld,
		Recognized: "h a l oʊ w ɜr l d",
	}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.stats) != 1 {
		t.Fatalf("observed %d analyses, want 1", len(obs.stats))
	}
	s := obs.stats[0]
	if s.Words != 2 || s.CorrectWords != 1 || s.DrillWords != 1 || s.SyllableFallbacks != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAnalysis_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	in, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon:    append(slices.Clone(helloWorld), pronunciation.LexiconInput{Word: "cat", Phonemes: "k æ t"}),
		Recognized: "h a l oʊ ə w ɜr l d k",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"wordAccuracy"`, `"phonemeErrorRate"`, `"referencePhonemeString"`, `"suggestedDrillWords"`, `"op":"substitution"`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("JSON lacks %s: %s", key, b)
		}
	}

	var out pronunciation.Analysis
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Metrics != in.Metrics {
		t.Errorf("metrics = %+v, want %+v", out.Metrics, in.Metrics)
	}
	if !reflect.DeepEqual(out.Comparisons, in.Comparisons) {
		t.Errorf("comparisons = %+v, want %+v", out.Comparisons, in.Comparisons)
	}
	if !slices.Equal(out.SuggestedDrillWords, in.SuggestedDrillWords) {
		t.Errorf("drill words = %q, want %q", out.SuggestedDrillWords, in.SuggestedDrillWords)
	}
	for word, syls := range in.SyllablesByWord {
		if got := syllable.Format(out.SyllablesByWord[word]); got != syllable.Format(syls) {
			t.Errorf("syllables of %q = %q, want %q", word, got, syllable.Format(syls))
		}
	}
}

func TestAnalyze_Concurrent(t *testing.T) {
	t.Parallel()

	a := newAnalyzer(t)
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := a.Analyze(context.Background(), pronunciation.Request{
				Lexicon:    helloWorld,
				Recognized: "h a l oʊ w ɜr l d",
			})
			if err != nil {
				t.Errorf("Analyze: %v", err)
				return
			}
			if got.Metrics.WordAccuracy != 50 {
				t.Errorf("WordAccuracy = %v, want 50", got.Metrics.WordAccuracy)
			}
		})
	}
	wg.Wait()
}

func TestAnalyze_RepeatedWordsShareKey(t *testing.T) {
	t.Parallel()

	got, err := newAnalyzer(t).Analyze(context.Background(), pronunciation.Request{
		Lexicon: []pronunciation.LexiconInput{
			{Word: "The", Phonemes: "ð ə"},
			{Word: "cat", Phonemes: "k æ t"},
			{Word: "the", Phonemes: "ð ə"},
		},
		Recognized: "d ə k æ t d ə",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.SyllablesByWord) != 2 {
		t.Errorf("SyllablesByWord keys = %d, want 2: %v", len(got.SyllablesByWord), got.SyllablesByWord)
	}
	if texts := syllable.Texts(got.SyllablesByWord["the"]); !slices.Equal(texts, []string{"ðə"}) {
		t.Errorf("the syllables = %q, want [ðə]", texts)
	}
	if _, ok := got.SyllablesByWord["The"]; ok {
		t.Error("SyllablesByWord has an entry for the unfolded spelling")
	}
	if !slices.Equal(got.SuggestedDrillWords, []string{"The"}) {
		t.Errorf("SuggestedDrillWords = %q, want [The]", got.SuggestedDrillWords)
	}
}
