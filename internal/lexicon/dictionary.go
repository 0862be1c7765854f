package lexicon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// Dictionary is an in-memory pronunciation dictionary for one language.
// It is read-only after construction and safe for concurrent use.
type Dictionary struct {
	language string
	words    map[string]string
}

var _ Provider = (*Dictionary)(nil)

// NewDictionary builds a dictionary from a word to phoneme-string mapping.
// Words are matched case-insensitively.
func NewDictionary(language string, words map[string]string) (*Dictionary, error) {
	d := &Dictionary{language: language, words: make(map[string]string, len(words))}
	for w, p := range words {
		k := key(strings.TrimSpace(w))
		if k == "" {
			return nil, fmt.Errorf("lexicon: %s dictionary has an empty word", language)
		}
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("lexicon: %s dictionary word %q has no phonemes", language, w)
		}
		if prev, ok := d.words[k]; ok && prev != p {
			return nil, fmt.Errorf("lexicon: %s dictionary word %q is listed twice with different phonemes", language, w)
		}
		d.words[k] = p
	}
	return d, nil
}

// LoadDictionary decodes a YAML mapping of word to phoneme string, e.g.
//
//	hello: h ə l oʊ
//	world: w ɝ l d
func LoadDictionary(r io.Reader, language string) (*Dictionary, error) {
	var words map[string]string
	if err := yaml.NewDecoder(r).Decode(&words); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("lexicon: decode %s dictionary: %w", language, err)
	}
	return NewDictionary(language, words)
}

// OpenDictionary loads the YAML dictionary file at path.
func OpenDictionary(path, language string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadDictionary(f, language)
}

// Language returns the dictionary's language tag.
func (d *Dictionary) Language() string { return d.language }

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.words) }

// Lookup implements [Provider]. An empty language means the dictionary's own.
// Every unresolved word is reported in one [UnknownWordsError].
func (d *Dictionary) Lookup(ctx context.Context, text, language string) ([]pronunciation.LexiconInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if language != "" && !strings.EqualFold(language, d.language) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	words := Words(text)
	if len(words) == 0 {
		return nil, ErrEmptyText
	}

	out := make([]pronunciation.LexiconInput, 0, len(words))
	var unknown []string
	for _, w := range words {
		p, ok := d.words[key(w)]
		if !ok {
			unknown = append(unknown, w)
			continue
		}
		out = append(out, pronunciation.LexiconInput{Word: w, Phonemes: p})
	}
	if len(unknown) > 0 {
		return nil, &UnknownWordsError{Language: d.language, Words: unknown}
	}
	return out, nil
}
