package normalizer

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a parsed money cell: an unsigned magnitude plus the sign the cell carried.
type Amount struct {
	Magnitude decimal.Decimal
	Negative  bool
}

// IsZero reports whether the magnitude is zero.
func (a Amount) IsZero() bool {
	return a.Magnitude.IsZero()
}

// SeparatorConvention describes one way of writing decimals. A convention applies when
// Suffix is nil or matches the cleaned cell.
type SeparatorConvention struct {
	Name     string
	Suffix   *regexp.Regexp
	Decimal  rune
	Grouping []rune
}

// DefaultSeparatorConventions returns the continental convention (1.234,56) followed by the
// Anglo fallback (1,234.56).
func DefaultSeparatorConventions() []SeparatorConvention {
	return []SeparatorConvention{
		{
			Name:     "continental",
			Suffix:   regexp.MustCompile(`,\d{1,2}$`),
			Decimal:  ',',
			Grouping: []rune{'.', ' ', '\''},
		},
		{
			Name:     "anglo",
			Decimal:  '.',
			Grouping: []rune{',', ' ', '\''},
		},
	}
}

// DefaultCurrencySymbols lists the symbols and codes stripped from amount cells. Longer
// entries come first so "R$" is removed before "$".
func DefaultCurrencySymbols() []string {
	return []string{
		"US$", "R$", "AU$", "CA$",
		"EUR", "USD", "GBP", "BRL", "MXN", "ARS", "CLP", "COP", "PEN", "CHF", "JPY",
		"€", "$", "£", "¥", "₹",
	}
}

// AmountParser parses amount cells written under any of its separator conventions.
type AmountParser struct {
	symbols     []string
	conventions []SeparatorConvention
}

// NewAmountParser builds a parser from the given tables. The tables are copied.
func NewAmountParser(symbols []string, conventions []SeparatorConvention) *AmountParser {
	return &AmountParser{
		symbols:     append([]string(nil), symbols...),
		conventions: append([]SeparatorConvention(nil), conventions...),
	}
}

// NewDefaultAmountParser returns a parser over the default symbol and convention tables.
func NewDefaultAmountParser() *AmountParser {
	return NewAmountParser(DefaultCurrencySymbols(), DefaultSeparatorConventions())
}

var amountBody = regexp.MustCompile(`^[0-9][0-9., ']*$|^[.,][0-9]+$`)

// Parse returns the magnitude and sign of cell. ok is false when the cell holds no number.
// A zero amount parses successfully; callers decide whether zero rows are meaningful.
func (p *AmountParser) Parse(cell string) (amount Amount, ok bool) {
	s := cleanAmountCell(cell)
	if s == "" {
		return Amount{}, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = p.stripSymbols(s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = strings.TrimSpace(s[1:])
	case strings.HasSuffix(s, "-"):
		negative = true
		s = strings.TrimSpace(s[:len(s)-1])
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(s[1:])
	}

	// symbols may sit on either side of the sign: "-€12" and "€-12"
	s = p.stripSymbols(s)

	if s == "" || !amountBody.MatchString(s) {
		return Amount{}, false
	}

	conv, found := p.convention(s)
	if !found {
		return Amount{}, false
	}

	normalized := applyConvention(s, conv)
	if normalized == "" || normalized == "." {
		return Amount{}, false
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Amount{}, false
	}
	if d.IsZero() {
		negative = false
	}

	return Amount{Magnitude: d.Abs(), Negative: negative}, true
}

func (p *AmountParser) convention(s string) (SeparatorConvention, bool) {
	for _, c := range p.conventions {
		if c.Suffix == nil || c.Suffix.MatchString(s) {
			return c, true
		}
	}
	return SeparatorConvention{}, false
}

func (p *AmountParser) stripSymbols(s string) string {
	for _, sym := range p.symbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(s[len(sym):])
		}
		if strings.HasSuffix(s, sym) {
			s = strings.TrimSpace(s[:len(s)-len(sym)])
		}
	}
	return s
}

// applyConvention removes grouping separators and rewrites the decimal separator as '.'.
// A decimal separator that occurs more than once is treated as grouping.
func applyConvention(s string, c SeparatorConvention) string {
	decimalSep := c.Decimal
	if strings.Count(s, string(decimalSep)) > 1 {
		decimalSep = 0
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case decimalSep != 0 && r == decimalSep:
			b.WriteByte('.')
		case containsRune(c.Grouping, r), r == c.Decimal:
			// grouping
		default:
			return ""
		}
	}
	return b.String()
}

func containsRune(set []rune, r rune) bool {
	for _, x := range set {
		if x == r {
			return true
		}
	}
	return false
}

// cleanAmountCell trims quotes and every kind of whitespace bank exports put around numbers.
func cleanAmountCell(cell string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u2007', '\u202f':
			return ' '
		case '\u2212':
			return '-'
		}
		return r
	}, cell)
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
