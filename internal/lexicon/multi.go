package lexicon

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/phonalign/pkg/pronunciation"
)

// Multi routes lookups to one provider per language.
type Multi struct {
	defaultLanguage string
	byLanguage      map[string]Provider
}

var _ Provider = (*Multi)(nil)

// NewMulti returns a router over providers keyed by language tag. Tags are
// matched case-insensitively. defaultLanguage serves requests naming no
// language and must be one of the keys.
func NewMulti(defaultLanguage string, providers map[string]Provider) (*Multi, error) {
	m := &Multi{
		defaultLanguage: strings.ToLower(defaultLanguage),
		byLanguage:      make(map[string]Provider, len(providers)),
	}
	for lang, p := range providers {
		m.byLanguage[strings.ToLower(lang)] = p
	}
	if _, ok := m.byLanguage[m.defaultLanguage]; !ok && len(providers) > 0 {
		return nil, fmt.Errorf("%w: default %q", ErrUnsupportedLanguage, defaultLanguage)
	}
	return m, nil
}

// OpenDictionaries loads one YAML dictionary per language from paths.
func OpenDictionaries(defaultLanguage string, paths map[string]string) (*Multi, error) {
	providers := make(map[string]Provider, len(paths))
	for lang, path := range paths {
		d, err := OpenDictionary(path, lang)
		if err != nil {
			return nil, err
		}
		providers[lang] = d
	}
	return NewMulti(defaultLanguage, providers)
}

// Languages returns the supported language tags, lower-cased and sorted.
func (m *Multi) Languages() []string {
	langs := make([]string, 0, len(m.byLanguage))
	for l := range m.byLanguage {
		langs = append(langs, l)
	}
	slices.Sort(langs)
	return langs
}

// Lookup implements [Provider].
func (m *Multi) Lookup(ctx context.Context, text, language string) ([]pronunciation.LexiconInput, error) {
	lang := strings.ToLower(language)
	if lang == "" {
		lang = m.defaultLanguage
	}
	p, ok := m.byLanguage[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return p.Lookup(ctx, text, "")
}
