package categorization

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

// MinKeyLength is the shortest normalized description kept in a HistoryIndex.
const MinKeyLength = 3

// HistoryIndex maps normalized descriptions to the category the user last gave them.
// Keys keep the order in which they were first seen. It is read-only once built.
type HistoryIndex struct {
	keys  []string
	byKey map[string]uuid.UUID
}

// BuildHistoryIndex indexes history in order. When a description repeats, the later
// category wins but the key keeps its first position.
func BuildHistoryIndex(history []HistoricalTransaction) *HistoryIndex {
	idx := &HistoryIndex{byKey: make(map[string]uuid.UUID, len(history))}
	for _, h := range history {
		if h.CategoryID == uuid.Nil {
			continue
		}
		key := normalizer.NormalizeText(h.Description)
		if utf8.RuneCountInString(key) < MinKeyLength {
			continue
		}
		if _, seen := idx.byKey[key]; !seen {
			idx.keys = append(idx.keys, key)
		}
		idx.byKey[key] = h.CategoryID
	}
	return idx
}

// Lookup returns the category for an already-normalized key.
func (h *HistoryIndex) Lookup(key string) (uuid.UUID, bool) {
	if h == nil {
		return uuid.Nil, false
	}
	id, ok := h.byKey[key]
	return id, ok
}

// Len is the number of distinct keys.
func (h *HistoryIndex) Len() int {
	if h == nil {
		return 0
	}
	return len(h.keys)
}

// Each visits keys in insertion order until fn returns false.
func (h *HistoryIndex) Each(fn func(key string, categoryID uuid.UUID) bool) {
	if h == nil {
		return
	}
	for _, k := range h.keys {
		if !fn(k, h.byKey[k]) {
			return
		}
	}
}
