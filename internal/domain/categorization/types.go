// Package categorization suggests a category for a statement description, first from
// the user's own history and then from a keyword dictionary.
package categorization

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrUnknownCategoryKind = errors.New("unknown category kind")

// CategoryKind is the accounting role of a category.
type CategoryKind int

const (
	KindIncome CategoryKind = iota + 1
	KindExpense
	KindContribution
	KindWithdrawal
	KindReimbursement
)

var kindNames = map[CategoryKind]string{
	KindIncome:        "income",
	KindExpense:       "expense",
	KindContribution:  "contribution",
	KindWithdrawal:    "withdrawal",
	KindReimbursement: "reimbursement",
}

func (k CategoryKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CategoryKind(%d)", int(k))
}

// ParseCategoryKind is the inverse of String.
func ParseCategoryKind(s string) (CategoryKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategoryKind, s)
}

// Category is a user category. SubLabel is empty for top-level categories.
type Category struct {
	ID       uuid.UUID
	TopLevel string
	SubLabel string
	Kind     CategoryKind
}

// Name is the display name, "TopLevel / SubLabel" for sub-categories.
func (c Category) Name() string {
	if c.SubLabel == "" {
		return c.TopLevel
	}
	return c.TopLevel + " / " + c.SubLabel
}

// HistoricalTransaction is a previously categorized description.
type HistoricalTransaction struct {
	Description string
	CategoryID  uuid.UUID
}

// Confidence grades a suggestion.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// MatchSource says which step produced a suggestion.
type MatchSource string

const (
	SourceHistoryExact   MatchSource = "history_exact"
	SourceHistorySimilar MatchSource = "history_similar"
	SourceDictionary     MatchSource = "dictionary"
	SourceNone           MatchSource = "none"
)

// Match is a category suggestion. CategoryID is nil when nothing matched.
type Match struct {
	CategoryID *uuid.UUID
	Confidence Confidence
	Source     MatchSource
	// Keyword is the dictionary keyword that fired, if any.
	Keyword string
}

func noMatch() Match {
	return Match{Confidence: ConfidenceLow, Source: SourceNone}
}

func findCategory(categories []Category, id uuid.UUID) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}
