package categorization

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

// DefaultAlternativeScore is the similarity a history entry needs to be offered as an
// alternative category.
const DefaultAlternativeScore = 50

// FuzzyMatchResult is a history entry ranked against a description.
type FuzzyMatchResult struct {
	Description string
	CategoryID  uuid.UUID
	Score       int // 0-100, higher is closer
	Distance    int // Levenshtein distance
}

// FuzzyMatcher ranks history entries by similarity. It catches variations such as
// "STARBUCKS 001" vs "STARBUCKS 002" that the exact history rules miss.
type FuzzyMatcher struct {
	entries []fuzzyEntry
}

type fuzzyEntry struct {
	key        string
	categoryID uuid.UUID
}

// NewFuzzyMatcher snapshots the keys of index.
func NewFuzzyMatcher(index *HistoryIndex) *FuzzyMatcher {
	fm := &FuzzyMatcher{entries: make([]fuzzyEntry, 0, index.Len())}
	index.Each(func(key string, id uuid.UUID) bool {
		fm.entries = append(fm.entries, fuzzyEntry{key: key, categoryID: id})
		return true
	})
	return fm
}

// RankMatches returns history entries ordered by score, best first. Equal scores keep
// history order. limit <= 0 returns every entry.
func (fm *FuzzyMatcher) RankMatches(description string, limit int) []FuzzyMatchResult {
	text := normalizer.NormalizeText(description)
	if text == "" || len(fm.entries) == 0 {
		return nil
	}

	results := make([]FuzzyMatchResult, 0, len(fm.entries))
	for _, e := range fm.entries {
		results = append(results, FuzzyMatchResult{
			Description: e.key,
			CategoryID:  e.categoryID,
			Score:       fuzzyScore(text, e.key),
			Distance:    levenshtein.ComputeDistance(text, e.key),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}

// Alternatives returns distinct categories of entries scoring at least minScore, best
// first, at most limit of them.
func (fm *FuzzyMatcher) Alternatives(description string, minScore, limit int) []uuid.UUID {
	var out []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, r := range fm.RankMatches(description, 0) {
		if r.Score < minScore {
			break
		}
		if _, dup := seen[r.CategoryID]; dup {
			continue
		}
		seen[r.CategoryID] = struct{}{}
		out = append(out, r.CategoryID)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len is the number of entries.
func (fm *FuzzyMatcher) Len() int {
	return len(fm.entries)
}

// fuzzyScore combines containment, edit distance and in-order character matching into
// a 0-100 similarity.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	len1, len2 := utf8.RuneCountInString(s1), utf8.RuneCountInString(s2)
	if len1 == 0 || len2 == 0 {
		return 0
	}

	if strings.Contains(s1, s2) {
		return 75 + 25*len2/len1
	}
	if strings.Contains(s2, s1) {
		return 75 + 25*len1/len2
	}

	maxLen := max(len1, len2)
	distance := levenshtein.ComputeDistance(s1, s2)
	score := 100 * (maxLen - distance) / maxLen

	// shorter string's characters appear in order inside the longer one
	short, long, longLen := s2, s1, len1
	if len1 < len2 {
		short, long, longLen = s1, s2, len2
	}
	if rank := fuzzy.RankMatch(short, long); rank >= 0 {
		score = max(score, 60-rank*40/longLen)
	}
	return score
}
