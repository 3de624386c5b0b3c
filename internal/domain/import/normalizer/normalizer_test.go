package normalizer

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Dates
// =============================================================================

func TestDateParser_Parse(t *testing.T) {
	p := NewDefaultDateParser()

	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"day first slash", "31/12/2024", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"day first dash", "15-01-2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"single digit parts", "1/2/2025", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), true},
		{"english month name", "06 Jan 2026", time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), true},
		{"spanish month name", "3 Ene 2025", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), true},
		{"spanish august", "14 ago 2024", time.Date(2024, 8, 14, 0, 0, 0, 0, time.UTC), true},
		{"dashed month name", "14-Dic-2024", time.Date(2024, 12, 14, 0, 0, 0, 0, time.UTC), true},
		{"iso", "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), true},
		{"iso slash", "2024/3/5", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"trailing time", "15/01/2025 10:32", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"iso with seconds", "2025-01-15T10:32:05", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"quoted", `"31/12/2024"`, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"month 13", "13/13/2024", time.Time{}, false},
		{"no leap day in 2023", "2023-02-29", time.Time{}, false},
		{"31 april", "31/04/2024", time.Time{}, false},
		{"day zero", "00/01/2024", time.Time{}, false},
		{"unknown month", "06 Foo 2026", time.Time{}, false},
		{"two digit year", "15/01/25", time.Time{}, false},
		{"text", "UBER EATS", time.Time{}, false},
		{"amount", "-350.50", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestDateParser_CustomTables(t *testing.T) {
	p := NewDateParser(
		[]DateGrammar{{
			Name:    "D.M.YYYY",
			Pattern: regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`),
			Order:   DayMonthYear,
		}},
		DefaultMonths(),
	)

	got, ok := p.Parse("24.12.2024")
	require.True(t, ok)
	assert.Equal(t, time.December, got.Month())

	_, ok = p.Parse("24/12/2024")
	assert.False(t, ok, "grammars not in the table must not match")
}

// =============================================================================
// Amounts
// =============================================================================

func TestAmountParser_Parse(t *testing.T) {
	p := NewDefaultAmountParser()

	tests := []struct {
		name     string
		input    string
		want     string
		negative bool
		ok       bool
	}{
		{"continental", "1.234,56", "1234.56", false, true},
		{"anglo", "1,234.56", "1234.56", false, true},
		{"parentheses", "(150.00)", "150", true, true},
		{"leading minus", "-350.50", "350.5", true, true},
		{"trailing minus", "350.50-", "350.5", true, true},
		{"unicode minus", "− 12,00", "12", true, true},
		{"plus sign", "+42.10", "42.1", false, true},
		{"euro suffix", "12,50 €", "12.5", false, true},
		{"euro prefix negative", "-€12.50", "12.5", true, true},
		{"symbol before sign", "€-12.50", "12.5", true, true},
		{"real prefix", "R$ 1.500,00", "1500", false, true},
		{"currency code", "EUR 99.99", "99.99", false, true},
		{"nbsp grouping", "1 234,56", "1234.56", false, true},
		{"integer", "42", "42", false, true},
		{"single decimal digit continental", "350,5", "350.5", false, true},
		{"repeated dot is grouping", "1.234.567", "1234567", false, true},
		{"anglo grouping only", "1,234", "1234", false, true},
		{"quoted", `"-1.234,56"`, "1234.56", true, true},
		{"zero", "0,00", "0", false, true},
		{"negative zero", "-0.00", "0", false, true},
		{"empty", "", "", false, false},
		{"text", "abc", "", false, false},
		{"date", "15/01/2025", "", false, false},
		{"just sign", "-", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Magnitude), "magnitude %s", got.Magnitude)
			assert.Equal(t, tt.negative, got.Negative)
		})
	}
}

func TestAmountParser_SignInvariant(t *testing.T) {
	p := NewDefaultAmountParser()

	for _, cell := range []string{"350.50", "1.234,56", "1,234.56", "0,99", "7"} {
		t.Run(cell, func(t *testing.T) {
			pos, ok := p.Parse(cell)
			require.True(t, ok)
			neg, ok := p.Parse("-" + cell)
			require.True(t, ok)
			paren, ok := p.Parse("(" + cell + ")")
			require.True(t, ok)

			assert.True(t, pos.Magnitude.IsPositive())
			assert.False(t, pos.Negative)
			assert.True(t, neg.Negative)
			assert.True(t, paren.Negative)
			assert.True(t, pos.Magnitude.Equal(neg.Magnitude))
			assert.True(t, pos.Magnitude.Equal(paren.Magnitude))
		})
	}
}

// =============================================================================
// Text
// =============================================================================

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"UBER EATS", "uber eats"},
		{"Devolución  AMAZON.es", "devolucion amazones"},
		{"  Pagamento   MB WAY *123 ", "pagamento mb way 123"},
		{"Café São João", "cafe sao joao"},
		{"H&M", "hm"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.input))
		})
	}
}

func TestNormalizeText_Idempotent(t *testing.T) {
	for _, s := range []string{"Devolución AMAZON", "Bonificación 2x1", "ÑANDÚ"} {
		once := NormalizeText(s)
		assert.Equal(t, once, NormalizeText(once))
	}
}

func TestContainsKeyword(t *testing.T) {
	tests := []struct {
		text    string
		keyword string
		want    bool
	}{
		{"pago tarjeta", "pago", true},
		{"transf pagos varios", "pago", true},
		{"compra apagon", "pago", false},
		{"apagon pago", "pago", true},
		{"romeo bar", "meo", false},
		{"meo fibra", "meo", true},
		{"supermercadona", "mercadona", true},
		{"uber eats", "uber eats", true},
		{"anything", "", false},
		{"", "pago", false},
	}

	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsKeyword(tt.text, tt.keyword))
		})
	}
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "UBER EATS Lisboa", CleanDescription(`  "UBER   EATS  Lisboa" `))
	assert.Equal(t, "", CleanDescription("   "))
}
