// Package vocabulary bundles the locale tables the import pipeline is configured with
// and loads overrides from YAML.
package vocabulary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/classifier"
	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-import/internal/domain/import/sniffer"
)

// Vocabulary is every table the pipeline reads. Sections missing from a YAML file keep
// their defaults.
type Vocabulary struct {
	Headers         sniffer.Vocabulary        `yaml:"headers"`
	Months          []normalizer.Month        `yaml:"months"`
	CurrencySymbols []string                  `yaml:"currency_symbols"`
	Keywords        classifier.Keywords       `yaml:"keywords"`
	Dictionary      categorization.Dictionary `yaml:"dictionary"`
}

// Default returns the built-in tables.
func Default() Vocabulary {
	return Vocabulary{
		Headers:         sniffer.DefaultVocabulary(),
		Months:          normalizer.DefaultMonths(),
		CurrencySymbols: normalizer.DefaultCurrencySymbols(),
		Keywords:        classifier.DefaultKeywords(),
		Dictionary:      categorization.DefaultDictionary(),
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("could not read vocabulary file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (Vocabulary, error) {
	v := Default()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("could not parse vocabulary file: %w", err)
	}
	return v, nil
}

// DateParser builds a parser over the default grammars and these months.
func (v Vocabulary) DateParser() *normalizer.DateParser {
	return normalizer.NewDateParser(normalizer.DefaultDateGrammars(), v.Months)
}

// AmountParser builds a parser over these currency symbols.
func (v Vocabulary) AmountParser() *normalizer.AmountParser {
	return normalizer.NewAmountParser(v.CurrencySymbols, normalizer.DefaultSeparatorConventions())
}

// Detector builds the default format detector.
func (v Vocabulary) Detector() *sniffer.Detector {
	return sniffer.NewDefaultDetector(v.Headers, v.DateParser(), v.AmountParser())
}

// Classifier builds the sign classifier.
func (v Vocabulary) Classifier() *classifier.Classifier {
	return classifier.New(v.Keywords)
}

// Matcher builds the category matcher.
func (v Vocabulary) Matcher() *categorization.Matcher {
	return categorization.NewMatcher(v.Dictionary)
}
