package sniffer

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/FACorreiaa/statement-import/internal/domain/import/decoder"
	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

const (
	StrategyHeaderSplit = "header/split"
	StrategyHeaderName  = "header/name"
	StrategyContent     = "content"
)

// heuristics holds the configuration shared by the default strategies.
type heuristics struct {
	vocab   Vocabulary
	dates   *normalizer.DateParser
	amounts *normalizer.AmountParser
}

func newHeuristics(vocab Vocabulary, dates *normalizer.DateParser, amounts *normalizer.AmountParser) *heuristics {
	return &heuristics{vocab: vocab.normalized(), dates: dates, amounts: amounts}
}

// headerSplit recognises files with separate income and expense columns.
func (h *heuristics) headerSplit(rows []decoder.Row) (DetectedFormat, bool) {
	if len(rows) < 2 || !h.isHeader(rows[0]) {
		return DetectedFormat{}, false
	}
	header := normalizeRow(rows[0])
	data := sample(rows, 1)

	income := findColumn(header, h.vocab.Income)
	expense := findColumn(header, h.vocab.Expense, income)
	if income < 0 || expense < 0 || !h.holdsAmounts(data, income, expense) {
		return DetectedFormat{}, false
	}

	date := findColumn(header, h.vocab.Date, income, expense)
	if date < 0 {
		date = h.dateColumn(data, income, expense)
	}
	if date < 0 {
		return DetectedFormat{}, false
	}

	desc := findColumn(header, h.vocab.Description, date, income, expense)
	if desc < 0 {
		desc = longestColumn(data, date, income, expense)
	}

	return DetectedFormat{
		DateColumn:        date,
		DescriptionColumn: desc,
		AmountColumn:      -1,
		IncomeColumn:      income,
		ExpenseColumn:     expense,
		HasHeaderRow:      true,
		Strategy:          StrategyHeaderSplit,
	}, true
}

// headerName maps columns by header names alone.
func (h *heuristics) headerName(rows []decoder.Row) (DetectedFormat, bool) {
	if len(rows) == 0 || !h.isHeader(rows[0]) {
		return DetectedFormat{}, false
	}
	header := normalizeRow(rows[0])
	data := sample(rows, 1)

	date := findColumn(header, h.vocab.Date)
	if date < 0 {
		date = h.dateColumn(data)
	}
	if date < 0 {
		return DetectedFormat{}, false
	}

	amount := findColumn(header, h.vocab.Amount, date)
	if amount < 0 {
		return DetectedFormat{}, false
	}

	desc := findColumn(header, h.vocab.Description, date, amount)
	if desc < 0 {
		desc = longestColumn(data, date, amount)
	}

	return DetectedFormat{
		DateColumn:        date,
		DescriptionColumn: desc,
		AmountColumn:      amount,
		IncomeColumn:      -1,
		ExpenseColumn:     -1,
		HasHeaderRow:      true,
		Strategy:          StrategyHeaderName,
	}, true
}

// content infers the layout from cell values. Row 0 is treated as a header when it uses
// header vocabulary or holds no parseable date.
func (h *heuristics) content(rows []decoder.Row) (DetectedFormat, bool) {
	if len(rows) == 0 {
		return DetectedFormat{}, false
	}

	hasHeader := h.isHeader(rows[0]) || !h.rowHasDate(rows[0])
	start := 0
	if hasHeader {
		start = 1
	}
	data := sample(rows, start)
	if len(data) == 0 {
		return DetectedFormat{}, false
	}

	date := h.dateColumn(data)
	if date < 0 {
		return DetectedFormat{}, false
	}
	amount := h.amountColumn(data, date)
	if amount < 0 {
		return DetectedFormat{}, false
	}

	return DetectedFormat{
		DateColumn:        date,
		DescriptionColumn: longestColumn(data, date, amount),
		AmountColumn:      amount,
		IncomeColumn:      -1,
		ExpenseColumn:     -1,
		HasHeaderRow:      hasHeader,
		Strategy:          StrategyContent,
	}, true
}

func (h *heuristics) isHeader(row decoder.Row) bool {
	for _, cell := range row {
		n := normalizer.NormalizeText(cell)
		if n == "" {
			continue
		}
		for _, tokens := range h.vocab.all() {
			if slices.Contains(tokens, n) {
				return true
			}
		}
	}
	return false
}

func (h *heuristics) rowHasDate(row decoder.Row) bool {
	for _, cell := range row {
		if _, ok := h.dates.Parse(cell); ok {
			return true
		}
	}
	return false
}

// holdsAmounts reports whether every non-empty sampled cell of the columns parses as an
// amount and at least one such cell exists.
func (h *heuristics) holdsAmounts(data []decoder.Row, cols ...int) bool {
	seen := 0
	for _, row := range data {
		for _, c := range cols {
			cell := strings.TrimSpace(row.Cell(c))
			if cell == "" {
				continue
			}
			if _, ok := h.amounts.Parse(cell); !ok {
				return false
			}
			seen++
		}
	}
	return seen > 0
}

// dateColumn returns the first column where most sampled cells parse as dates.
func (h *heuristics) dateColumn(data []decoder.Row, exclude ...int) int {
	for c := 0; c < widthOf(data); c++ {
		if slices.Contains(exclude, c) {
			continue
		}
		parsed := 0
		for _, row := range data {
			if _, ok := h.dates.Parse(row.Cell(c)); ok {
				parsed++
			}
		}
		if parsed > 0 && parsed*2 > len(data) {
			return c
		}
	}
	return -1
}

type amountCandidate struct {
	column     int
	hasDecimal bool
	nonZero    int
}

func (a amountCandidate) beats(b amountCandidate) bool {
	if a.hasDecimal != b.hasDecimal {
		return a.hasDecimal
	}
	return a.nonZero > b.nonZero
}

// amountColumn ranks columns by (has a decimal separator, non-zero amounts, lowest index).
func (h *heuristics) amountColumn(data []decoder.Row, date int) int {
	best := amountCandidate{column: -1}
	for c := 0; c < widthOf(data); c++ {
		if c == date {
			continue
		}
		cand := amountCandidate{column: c}
		valid, nonEmpty := 0, 0
		for _, row := range data {
			cell := strings.TrimSpace(row.Cell(c))
			if cell == "" {
				continue
			}
			nonEmpty++
			amount, ok := h.amounts.Parse(cell)
			if !ok {
				continue
			}
			valid++
			if !amount.IsZero() {
				cand.nonZero++
			}
			if strings.ContainsAny(cell, ".,") {
				cand.hasDecimal = true
			}
		}
		if valid == 0 || valid*2 < nonEmpty {
			continue
		}
		if best.column < 0 || cand.beats(best) {
			best = cand
		}
	}
	return best.column
}

// longestColumn picks the unassigned column with the longest cell in the first data row.
func longestColumn(data []decoder.Row, exclude ...int) int {
	if len(data) == 0 {
		return -1
	}
	best, bestLen := -1, -1
	for c := 0; c < widthOf(data); c++ {
		if slices.Contains(exclude, c) {
			continue
		}
		if n := utf8.RuneCountInString(strings.TrimSpace(data[0].Cell(c))); n > bestLen {
			best, bestLen = c, n
		}
	}
	return best
}

func findColumn(header []string, tokens []string, exclude ...int) int {
	for _, tok := range tokens {
		for i, cell := range header {
			if cell == tok && !slices.Contains(exclude, i) {
				return i
			}
		}
	}
	return -1
}

func normalizeRow(row decoder.Row) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = normalizer.NormalizeText(cell)
	}
	return out
}

func sample(rows []decoder.Row, start int) []decoder.Row {
	if start >= len(rows) {
		return nil
	}
	end := min(start+sampleSize, len(rows))
	return rows[start:end]
}

func widthOf(rows []decoder.Row) int {
	w := 0
	for _, r := range rows {
		w = max(w, len(r))
	}
	return w
}
