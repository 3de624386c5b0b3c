package classifier

import (
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

// keywordSet answers "does the text contain any keyword" in one pass. Short keywords
// count only at the start of a token.
type keywordSet struct {
	// ahocorasick.Matcher keeps per-call state, so Match must be serialized
	mu       sync.Mutex
	matcher  *ahocorasick.Matcher
	keywords []string // indexed like the matcher's patterns
}

func newKeywordSet(keywords []string) *keywordSet {
	patterns := make([][]byte, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		n := normalizer.NormalizeText(k)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		patterns = append(patterns, []byte(n))
	}

	ks := &keywordSet{}
	for _, p := range patterns {
		ks.keywords = append(ks.keywords, string(p))
	}
	if len(patterns) > 0 {
		ks.matcher = ahocorasick.NewMatcher(patterns)
	}
	return ks
}

// hits expects already-normalized text.
func (k *keywordSet) hits(text string) bool {
	if k.matcher == nil {
		return false
	}
	k.mu.Lock()
	indices := k.matcher.Match([]byte(text))
	k.mu.Unlock()

	for _, i := range indices {
		if i >= 0 && i < len(k.keywords) && normalizer.ContainsKeyword(text, k.keywords[i]) {
			return true
		}
	}
	return false
}
