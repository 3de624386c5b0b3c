package parser

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
)

const categoriesCSV = `id,top_level,sub_label,kind
8a1f0c56-63b0-4c59-8d4e-2f0a4b1e0001,Food,Groceries,expense
8a1f0c56-63b0-4c59-8d4e-2f0a4b1e0002,Food,Coffee,expense
8a1f0c56-63b0-4c59-8d4e-2f0a4b1e0003,Income,,income
not-a-uuid,Broken,,expense
8a1f0c56-63b0-4c59-8d4e-2f0a4b1e0005,,Orphan,expense
8a1f0c56-63b0-4c59-8d4e-2f0a4b1e0006,Savings,,piggybank
`

func TestParser_ParseCategories(t *testing.T) {
	p := NewParser(DefaultConfig())

	categories, errs, err := p.ParseCategories(strings.NewReader(categoriesCSV))
	require.NoError(t, err)
	require.Len(t, categories, 3)
	assert.Equal(t, "Food / Groceries", categories[0].Name())
	assert.Equal(t, categorization.KindIncome, categories[2].Kind)
	assert.Equal(t, "", categories[2].SubLabel)

	require.Len(t, errs, 3)
	assert.Equal(t, 5, errs[0].Row)
	assert.Equal(t, "id", errs[0].Column)
	assert.Equal(t, "top_level", errs[1].Column)
	assert.Equal(t, "kind", errs[2].Column)
	assert.Contains(t, errs[2].Error(), "row 7, column kind")
}

func TestParser_ParseHistory(t *testing.T) {
	p := NewParser(Config{Delimiter: ';'})
	categories, _, err := NewParser(DefaultConfig()).ParseCategories(strings.NewReader(categoriesCSV))
	require.NoError(t, err)

	historyCSV := "description;category\n" +
		"STARBUCKS LISBOA;8a1f0c56-63b0-4c59-8d4e-2f0a4b1e0002\n" +
		"PINGO DOCE;food / groceries\n" +
		";Food / Coffee\n" +
		"NETFLIX;Entertainment\n" +
		"LIDL;" + uuid.NewString() + "\n"

	history, errs, err := p.ParseHistory(strings.NewReader(historyCSV), categories)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, categories[1].ID, history[0].CategoryID)
	assert.Equal(t, categories[0].ID, history[1].CategoryID, "names match case-insensitively")

	require.Len(t, errs, 3)
	assert.Equal(t, "description", errs[0].Column)
	assert.Equal(t, "unknown category", errs[1].Message)
	assert.Equal(t, "unknown category id", errs[2].Message)
}

func TestParser_EmptyInput(t *testing.T) {
	p := NewParser(Config{})

	categories, errs, err := p.ParseCategories(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, categories)
	assert.Empty(t, errs)
}
