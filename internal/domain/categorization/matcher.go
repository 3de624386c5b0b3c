package categorization

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

const (
	// SpecificKeywordLength is the keyword length from which a dictionary hit is
	// trusted with high confidence.
	SpecificKeywordLength = 6

	// prefixTokens and minPrefixLength define the shared-prefix history rule.
	prefixTokens    = 3
	minPrefixLength = 5
)

// Matcher suggests categories. It holds only immutable configuration and is safe for
// concurrent use.
type Matcher struct {
	engine *Engine
}

// NewMatcher compiles dict into the keyword engine.
func NewMatcher(dict Dictionary) *Matcher {
	return &Matcher{engine: NewEngine(dict)}
}

// Match runs the suggestion steps in order and returns the first that applies:
//  1. the normalized description is a history key (high)
//  2. a history key contains it, is contained in it, or shares its first three
//     tokens (high)
//  3. a dictionary keyword names a category, longest keyword first (high when the
//     keyword is specific, medium otherwise)
//
// Otherwise there is no suggestion and confidence is low. History entries whose
// category is not in categories are ignored.
func (m *Matcher) Match(description string, categories []Category, index *HistoryIndex) Match {
	text := normalizer.NormalizeText(description)
	if text == "" {
		return noMatch()
	}

	if id, ok := index.Lookup(text); ok && findCategory(categories, id) {
		return historyMatch(id, SourceHistoryExact)
	}

	if id, ok := similarHistory(text, categories, index); ok {
		return historyMatch(id, SourceHistorySimilar)
	}

	for _, hit := range m.engine.Ranked(text) {
		id, ok := resolveLabel(hit.Label, categories)
		if !ok {
			continue
		}
		conf := ConfidenceMedium
		if hit.Length() >= SpecificKeywordLength {
			conf = ConfidenceHigh
		}
		return Match{CategoryID: &id, Confidence: conf, Source: SourceDictionary, Keyword: hit.Keyword}
	}

	return noMatch()
}

func historyMatch(id uuid.UUID, source MatchSource) Match {
	return Match{CategoryID: &id, Confidence: ConfidenceHigh, Source: source}
}

// similarHistory scans history keys in insertion order.
func similarHistory(text string, categories []Category, index *HistoryIndex) (uuid.UUID, bool) {
	if utf8.RuneCountInString(text) < MinKeyLength {
		return uuid.Nil, false
	}
	prefix := tokenPrefix(text)

	var (
		found uuid.UUID
		ok    bool
	)
	index.Each(func(key string, id uuid.UUID) bool {
		if !findCategory(categories, id) {
			return true
		}
		similar := strings.Contains(key, text) || strings.Contains(text, key)
		if !similar && prefix != "" {
			similar = tokenPrefix(key) == prefix
		}
		if similar {
			found, ok = id, true
			return false
		}
		return true
	})
	return found, ok
}

// tokenPrefix returns the first three tokens of s, or "" when s has fewer tokens or
// the tokens hold fewer than minPrefixLength characters between them.
func tokenPrefix(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < prefixTokens {
		return ""
	}
	tokens = tokens[:prefixTokens]
	n := 0
	for _, t := range tokens {
		n += utf8.RuneCountInString(t)
	}
	if n < minPrefixLength {
		return ""
	}
	return strings.Join(tokens, " ")
}

// resolveLabel maps a dictionary label to the first category whose sub-label, then
// whose top-level name, contains or is contained in the label.
func resolveLabel(label string, categories []Category) (uuid.UUID, bool) {
	l := normalizer.NormalizeText(label)
	if l == "" {
		return uuid.Nil, false
	}

	related := func(name string) bool {
		n := normalizer.NormalizeText(name)
		return n != "" && (strings.Contains(n, l) || strings.Contains(l, n))
	}

	for _, c := range categories {
		if related(c.SubLabel) {
			return c.ID, true
		}
	}
	for _, c := range categories {
		if related(c.TopLevel) {
			return c.ID, true
		}
	}
	return uuid.Nil, false
}
