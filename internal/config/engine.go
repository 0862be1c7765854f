package config

import (
	"fmt"
	"os"

	"github.com/MrWong99/phonalign/pkg/pronunciation"
	"github.com/MrWong99/phonalign/pkg/syllable"
)

// AnalyzerOptions translates the engine section into analyzer options. The
// exception file, when set, is read here so a reload picks up its changes.
func (e EngineConfig) AnalyzerOptions() ([]pronunciation.Option, error) {
	var opts []pronunciation.Option
	if e.Scoring != nil {
		opts = append(opts, pronunciation.WithScoring(*e.Scoring))
	}
	if e.DrillThreshold != nil {
		opts = append(opts, pronunciation.WithDrillThreshold(*e.DrillThreshold))
	}
	if e.Workers > 0 {
		opts = append(opts, pronunciation.WithWorkers(e.Workers))
	}
	if e.Syllables != nil {
		opts = append(opts, pronunciation.WithSyllables(*e.Syllables))
	}
	opts = append(opts, pronunciation.WithStrict(e.Strict))

	exceptions, err := e.exceptions()
	if err != nil {
		return nil, err
	}
	if exceptions != nil {
		opts = append(opts, pronunciation.WithSyllabifier(syllable.New(
			syllable.WithExceptions(exceptions),
			syllable.WithStrict(e.Strict),
		)))
	}

	if e.Heard.Enabled != nil && !*e.Heard.Enabled {
		opts = append(opts, pronunciation.WithHeardMatcher(nil))
	} else {
		var heard []pronunciation.HeardOption
		if e.Heard.PhoneticThreshold > 0 {
			heard = append(heard, pronunciation.WithPhoneticThreshold(e.Heard.PhoneticThreshold))
		}
		if e.Heard.FuzzyThreshold > 0 {
			heard = append(heard, pronunciation.WithFuzzyThreshold(e.Heard.FuzzyThreshold))
		}
		opts = append(opts, pronunciation.WithHeardMatcher(pronunciation.NewHeardMatcher(heard...)))
	}
	return opts, nil
}

// exceptions returns the built-in table overlaid with the exception file and
// the inline entries, or nil when neither is configured.
func (e EngineConfig) exceptions() (syllable.Exceptions, error) {
	if e.ExceptionsFile == "" && len(e.Exceptions) == 0 {
		return nil, nil
	}
	table := syllable.DefaultExceptions
	if e.ExceptionsFile != "" {
		f, err := os.Open(e.ExceptionsFile)
		if err != nil {
			return nil, fmt.Errorf("config: open exceptions %q: %w", e.ExceptionsFile, err)
		}
		defer f.Close()
		fromFile, err := syllable.LoadExceptions(f)
		if err != nil {
			return nil, fmt.Errorf("config: load exceptions %q: %w", e.ExceptionsFile, err)
		}
		table = table.Merge(fromFile)
	}
	return table.Merge(e.Exceptions), nil
}
