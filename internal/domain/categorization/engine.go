package categorization

import (
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

// MinKeywordLength is the shortest normalized keyword the engine accepts.
const MinKeywordLength = 3

// KeywordHit is a dictionary keyword found in a description.
type KeywordHit struct {
	Keyword string
	Label   string
	// Order is the keyword's position in the compiled dictionary.
	Order int
}

// Length is the keyword length in runes.
func (h KeywordHit) Length() int {
	return utf8.RuneCountInString(h.Keyword)
}

// Engine finds every dictionary keyword in a description in a single pass using the
// Aho-Corasick algorithm, so cost does not grow with the number of keywords.
type Engine struct {
	matcher *ahocorasick.Matcher
	hits    []KeywordHit // indexed like the matcher's patterns
	// ahocorasick.Matcher is not safe for concurrent Match calls
	mu sync.Mutex
}

// NewEngine compiles dict. Keywords are normalized; those shorter than
// MinKeywordLength are skipped, and a keyword listed twice keeps its first label.
func NewEngine(dict Dictionary) *Engine {
	e := &Engine{}

	seen := make(map[string]struct{})
	var patterns [][]byte
	for _, entry := range dict {
		for _, kw := range entry.Keywords {
			n := normalizer.NormalizeText(kw)
			if utf8.RuneCountInString(n) < MinKeywordLength {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			e.hits = append(e.hits, KeywordHit{Keyword: n, Label: entry.Label, Order: len(e.hits)})
			patterns = append(patterns, []byte(n))
		}
	}

	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewMatcher(patterns)
	}
	return e
}

// MatchAll returns every keyword contained in the normalized text, in dictionary order.
// Short keywords count only at the start of a token.
func (e *Engine) MatchAll(text string) []KeywordHit {
	if e.matcher == nil || text == "" {
		return nil
	}

	e.mu.Lock()
	indices := e.matcher.Match([]byte(text))
	e.mu.Unlock()

	out := make([]KeywordHit, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(e.hits) && normalizer.ContainsKeyword(text, e.hits[i].Keyword) {
			out = append(out, e.hits[i])
		}
	}
	// back to dictionary order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Order < out[j-1].Order; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Ranked returns the keywords in the normalized text, longest first. Ties keep
// dictionary order.
func (e *Engine) Ranked(text string) []KeywordHit {
	hits := e.MatchAll(text)
	slices.SortStableFunc(hits, func(a, b KeywordHit) int {
		return b.Length() - a.Length()
	})
	return hits
}

// KeywordCount is the number of compiled keywords.
func (e *Engine) KeywordCount() int {
	return len(e.hits)
}
