package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FieldOrder tells a DateGrammar how to read its three capture groups.
type FieldOrder int

const (
	// DayMonthYear captures (day, month, year) with a numeric month.
	DayMonthYear FieldOrder = iota
	// DayMonthNameYear captures (day, month abbreviation, year).
	DayMonthNameYear
	// YearMonthDay captures (year, month, day) with a numeric month.
	YearMonthDay
)

// DateGrammar is one accepted date layout. Pattern must have exactly three capture groups
// laid out according to Order.
type DateGrammar struct {
	Name    string
	Pattern *regexp.Regexp
	Order   FieldOrder
}

// Month lists the abbreviations accepted for one calendar month, lowercase.
type Month struct {
	Number        time.Month `yaml:"number"`
	Abbreviations []string   `yaml:"abbreviations"`
}

// optional time-of-day suffix that exports often append to the date cell
const timeSuffix = `(?:[ T]\d{1,2}:\d{2}(?::\d{2})?)?`

// DefaultDateGrammars returns the grammar table in match order. First match wins.
func DefaultDateGrammars() []DateGrammar {
	return []DateGrammar{
		{
			Name:    "D/M/YYYY",
			Pattern: regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})` + timeSuffix + `$`),
			Order:   DayMonthYear,
		},
		{
			Name:    "D Mon YYYY",
			Pattern: regexp.MustCompile(`^(\d{1,2})[ -]([A-Za-z]{3})\.?[ -](\d{4})` + timeSuffix + `$`),
			Order:   DayMonthNameYear,
		},
		{
			Name:    "YYYY/M/D",
			Pattern: regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})` + timeSuffix + `$`),
			Order:   YearMonthDay,
		},
	}
}

// DefaultMonths is the 12-entry month table with English and Spanish abbreviations.
func DefaultMonths() []Month {
	return []Month{
		{time.January, []string{"jan", "ene"}},
		{time.February, []string{"feb"}},
		{time.March, []string{"mar"}},
		{time.April, []string{"apr", "abr"}},
		{time.May, []string{"may"}},
		{time.June, []string{"jun"}},
		{time.July, []string{"jul"}},
		{time.August, []string{"aug", "ago"}},
		{time.September, []string{"sep", "set"}},
		{time.October, []string{"oct", "out"}},
		{time.November, []string{"nov"}},
		{time.December, []string{"dec", "dic", "dez"}},
	}
}

// DateParser parses date cells against an ordered grammar table.
type DateParser struct {
	grammars []DateGrammar
	months   map[string]time.Month
}

// NewDateParser builds a parser from the given tables. The tables are copied.
func NewDateParser(grammars []DateGrammar, months []Month) *DateParser {
	p := &DateParser{
		grammars: append([]DateGrammar(nil), grammars...),
		months:   make(map[string]time.Month, len(months)*2),
	}
	for _, m := range months {
		for _, abbr := range m.Abbreviations {
			p.months[strings.ToLower(abbr)] = m.Number
		}
	}
	return p
}

// NewDefaultDateParser returns a parser over DefaultDateGrammars and DefaultMonths.
func NewDefaultDateParser() *DateParser {
	return NewDateParser(DefaultDateGrammars(), DefaultMonths())
}

// Parse returns the calendar date in cell, in UTC at midnight. ok is false when no grammar
// matches or the matched fields are not a real calendar date.
func (p *DateParser) Parse(cell string) (date time.Time, ok bool) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(cell), `"'`))
	if s == "" {
		return time.Time{}, false
	}

	for _, g := range p.grammars {
		m := g.Pattern.FindStringSubmatch(s)
		if len(m) != 4 {
			continue
		}
		if d, ok := p.build(g.Order, m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

func (p *DateParser) build(order FieldOrder, a, b, c string) (time.Time, bool) {
	var dayStr, yearStr string
	var month time.Month

	switch order {
	case DayMonthYear:
		dayStr, yearStr = a, c
		n, err := strconv.Atoi(b)
		if err != nil {
			return time.Time{}, false
		}
		month = time.Month(n)
	case DayMonthNameYear:
		dayStr, yearStr = a, c
		m, ok := p.months[strings.ToLower(b)]
		if !ok {
			return time.Time{}, false
		}
		month = m
	case YearMonthDay:
		dayStr, yearStr = c, a
		n, err := strconv.Atoi(b)
		if err != nil {
			return time.Time{}, false
		}
		month = time.Month(n)
	default:
		return time.Time{}, false
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31 Apr -> 1 May); reject those.
	if t.Day() != day || t.Month() != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}
