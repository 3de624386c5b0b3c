package categorization

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	groceries  Category
	delivery   Category
	transport  Category
	salary     Category
	categories []Category
}

func newFixture() fixture {
	f := fixture{
		groceries: Category{ID: uuid.New(), TopLevel: "Groceries", Kind: KindExpense},
		delivery:  Category{ID: uuid.New(), TopLevel: "Food & Drink", SubLabel: "Delivery", Kind: KindExpense},
		transport: Category{ID: uuid.New(), TopLevel: "Transport", Kind: KindExpense},
		salary:    Category{ID: uuid.New(), TopLevel: "Income", SubLabel: "Salary", Kind: KindIncome},
	}
	f.categories = []Category{f.groceries, f.delivery, f.transport, f.salary}
	return f
}

// =============================================================================
// History index
// =============================================================================

func TestBuildHistoryIndex(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	idx := BuildHistoryIndex([]HistoricalTransaction{
		{Description: "LIDL LISBOA", CategoryID: a},
		{Description: "ab", CategoryID: a},
		{Description: "Netflix.com", CategoryID: b},
		{Description: "lidl   lisboa", CategoryID: b},
		{Description: "ignored", CategoryID: uuid.Nil},
	})

	assert.Equal(t, 2, idx.Len())

	id, ok := idx.Lookup("lidl lisboa")
	require.True(t, ok)
	assert.Equal(t, b, id, "later assignment wins")

	_, ok = idx.Lookup("ab")
	assert.False(t, ok, "keys shorter than three runes are dropped")

	var keys []string
	idx.Each(func(key string, _ uuid.UUID) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []string{"lidl lisboa", "netflixcom"}, keys, "first-seen order is kept")
}

func TestHistoryIndex_Nil(t *testing.T) {
	var idx *HistoryIndex
	assert.Equal(t, 0, idx.Len())
	_, ok := idx.Lookup("anything")
	assert.False(t, ok)
	idx.Each(func(string, uuid.UUID) bool {
		t.Fatal("nil index must not iterate")
		return false
	})
}

// =============================================================================
// Matcher
// =============================================================================

func TestMatcher_Match(t *testing.T) {
	f := newFixture()
	m := NewMatcher(DefaultDictionary())

	idx := BuildHistoryIndex([]HistoricalTransaction{
		{Description: "MERCADONA VALENCIA", CategoryID: f.transport.ID},
		{Description: "COMPRA TIENDA CENTRO SUR", CategoryID: f.groceries.ID},
		{Description: "PAGO NOMINA ACME SA", CategoryID: f.salary.ID},
	})

	tests := []struct {
		name        string
		description string
		wantID      *uuid.UUID
		wantConf    Confidence
		wantSource  MatchSource
	}{
		{
			name:        "exact history beats dictionary",
			description: "Mercadona  Valencia",
			wantID:      &f.transport.ID,
			wantConf:    ConfidenceHigh,
			wantSource:  SourceHistoryExact,
		},
		{
			name:        "history key contained in description",
			description: "MERCADONA VALENCIA 0042",
			wantID:      &f.transport.ID,
			wantConf:    ConfidenceHigh,
			wantSource:  SourceHistorySimilar,
		},
		{
			name:        "description contained in history key",
			description: "NOMINA ACME",
			wantID:      &f.salary.ID,
			wantConf:    ConfidenceHigh,
			wantSource:  SourceHistorySimilar,
		},
		{
			name:        "shared three token prefix",
			description: "COMPRA TIENDA CENTRO NORTE",
			wantID:      &f.groceries.ID,
			wantConf:    ConfidenceHigh,
			wantSource:  SourceHistorySimilar,
		},
		{
			name:        "specific dictionary keyword maps through sub-label",
			description: "UBER EATS LISBOA",
			wantID:      &f.delivery.ID,
			wantConf:    ConfidenceHigh,
			wantSource:  SourceDictionary,
		},
		{
			name:        "short dictionary keyword is medium",
			description: "UBER TRIP 12/01",
			wantID:      &f.transport.ID,
			wantConf:    ConfidenceMedium,
			wantSource:  SourceDictionary,
		},
		{
			name:        "top-level pass",
			description: "LIDL ALVALADE",
			wantID:      &f.groceries.ID,
			wantConf:    ConfidenceMedium,
			wantSource:  SourceDictionary,
		},
		{
			name:        "label without category",
			description: "NETFLIX.COM",
			wantConf:    ConfidenceLow,
			wantSource:  SourceNone,
		},
		{
			name:        "nothing",
			description: "ZZZ UNKNOWN 123",
			wantConf:    ConfidenceLow,
			wantSource:  SourceNone,
		},
		{
			name:        "empty",
			description: "  ",
			wantConf:    ConfidenceLow,
			wantSource:  SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.description, f.categories, idx)
			assert.Equal(t, tt.wantConf, got.Confidence)
			assert.Equal(t, tt.wantSource, got.Source)
			if tt.wantID == nil {
				assert.Nil(t, got.CategoryID)
				return
			}
			require.NotNil(t, got.CategoryID)
			assert.Equal(t, *tt.wantID, *got.CategoryID)
		})
	}
}

func TestMatcher_ShortPrefixIgnored(t *testing.T) {
	f := newFixture()
	m := NewMatcher(nil)
	idx := BuildHistoryIndex([]HistoricalTransaction{
		{Description: "a b c lisboa", CategoryID: f.groceries.ID},
	})

	got := m.Match("a b c porto", f.categories, idx)
	assert.Nil(t, got.CategoryID, "prefix 'a b c' is shorter than five characters")
}

func TestMatcher_UnknownHistoryCategorySkipped(t *testing.T) {
	f := newFixture()
	m := NewMatcher(nil)
	idx := BuildHistoryIndex([]HistoricalTransaction{
		{Description: "CORNER SHOP", CategoryID: uuid.New()},
		{Description: "CORNER SHOP PORTO", CategoryID: f.groceries.ID},
	})

	got := m.Match("corner shop", f.categories, idx)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, f.groceries.ID, *got.CategoryID)
	assert.Equal(t, SourceHistorySimilar, got.Source)
}

func TestMatcher_UnresolvedLabelFallsBackToShorterKeyword(t *testing.T) {
	transport := Category{ID: uuid.New(), TopLevel: "Transport", Kind: KindExpense}
	m := NewMatcher(DefaultDictionary())

	got := m.Match("UBER EATS", []Category{transport}, nil)
	require.NotNil(t, got.CategoryID, "no Delivery category, so uber maps to Transport")
	assert.Equal(t, transport.ID, *got.CategoryID)
	assert.Equal(t, "uber", got.Keyword)
	assert.Equal(t, ConfidenceMedium, got.Confidence)
	assert.Equal(t, SourceDictionary, got.Source)
}

func TestMatcher_LongestKeywordWins(t *testing.T) {
	a := Category{ID: uuid.New(), TopLevel: "Alpha"}
	b := Category{ID: uuid.New(), TopLevel: "Beta"}
	m := NewMatcher(Dictionary{
		{Label: "Alpha", Keywords: []string{"shop"}},
		{Label: "Beta", Keywords: []string{"shop express"}},
	})

	got := m.Match("SHOP EXPRESS 24H", []Category{a, b}, nil)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, b.ID, *got.CategoryID)
	assert.Equal(t, "shop express", got.Keyword)
}

func TestMatcher_Deterministic(t *testing.T) {
	f := newFixture()
	m := NewMatcher(DefaultDictionary())
	faker := gofakeit.New(7)

	history := make([]HistoricalTransaction, 0, 50)
	for i := 0; i < 50; i++ {
		history = append(history, HistoricalTransaction{
			Description: faker.Company(),
			CategoryID:  f.categories[i%len(f.categories)].ID,
		})
	}
	idx := BuildHistoryIndex(history)

	for i := 0; i < 100; i++ {
		desc := faker.Company() + " " + faker.City()
		first := m.Match(desc, f.categories, idx)
		second := m.Match(desc, f.categories, idx)
		assert.Equal(t, first, second, desc)
	}
}

func TestCategory_Name(t *testing.T) {
	assert.Equal(t, "Groceries", Category{TopLevel: "Groceries"}.Name())
	assert.Equal(t, "Food & Drink / Delivery", Category{TopLevel: "Food & Drink", SubLabel: "Delivery"}.Name())
}

func TestParseCategoryKind(t *testing.T) {
	k, err := ParseCategoryKind("Reimbursement")
	require.NoError(t, err)
	assert.Equal(t, KindReimbursement, k)
	assert.Equal(t, "reimbursement", k.String())

	_, err = ParseCategoryKind("transfer")
	assert.ErrorIs(t, err, ErrUnknownCategoryKind)
}
