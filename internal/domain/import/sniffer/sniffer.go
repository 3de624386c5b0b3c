// Package sniffer detects which columns of a decoded statement hold the date, the
// description and the amount (or the income/expense pair). It also fingerprints header
// rows so hosts can recognise a bank's layout on later uploads.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/FACorreiaa/statement-import/internal/domain/import/decoder"
	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

var ErrFormatNotDetected = errors.New("could not detect statement format")

// data rows sampled by the content heuristics
const sampleSize = 10

// DetectedFormat is the column layout of a statement. Either AmountColumn is set (one
// signed column) or both IncomeColumn and ExpenseColumn are. Unset columns are -1.
type DetectedFormat struct {
	DateColumn        int
	DescriptionColumn int
	AmountColumn      int
	IncomeColumn      int
	ExpenseColumn     int
	HasHeaderRow      bool
	Strategy          string
	Fingerprint       string
}

// IsSplit reports whether amounts come from separate income and expense columns.
func (f DetectedFormat) IsSplit() bool {
	return f.AmountColumn < 0 && f.IncomeColumn >= 0 && f.ExpenseColumn >= 0
}

// DataStart is the index of the first data row.
func (f DetectedFormat) DataStart() int {
	if f.HasHeaderRow {
		return 1
	}
	return 0
}

// MinWidth is the narrowest row that holds every mapped column.
func (f DetectedFormat) MinWidth() int {
	w := 0
	for _, c := range []int{f.DateColumn, f.DescriptionColumn, f.AmountColumn, f.IncomeColumn, f.ExpenseColumn} {
		if c+1 > w {
			w = c + 1
		}
	}
	return w
}

func (f DetectedFormat) validate(width int) error {
	if f.DateColumn < 0 || f.DateColumn >= width {
		return fmt.Errorf("date column %d out of range", f.DateColumn)
	}
	for _, c := range []int{f.DescriptionColumn, f.AmountColumn, f.IncomeColumn, f.ExpenseColumn} {
		if c >= width {
			return fmt.Errorf("column %d out of range", c)
		}
	}
	switch {
	case f.AmountColumn >= 0:
		if f.AmountColumn == f.DateColumn {
			return errors.New("date and amount share a column")
		}
	case f.IncomeColumn >= 0 && f.ExpenseColumn >= 0:
		if f.IncomeColumn == f.ExpenseColumn || f.IncomeColumn == f.DateColumn || f.ExpenseColumn == f.DateColumn {
			return errors.New("date, income and expense columns overlap")
		}
	default:
		return errors.New("no amount column")
	}
	return nil
}

// Strategy inspects decoded rows and reports a layout when it recognises one.
// Strategies must not modify rows.
type Strategy func(rows []decoder.Row) (DetectedFormat, bool)

// Detector runs its strategies in order; the first that succeeds wins.
type Detector struct {
	strategies []Strategy
}

// NewDetector builds a detector over the given strategies.
func NewDetector(strategies ...Strategy) *Detector {
	return &Detector{strategies: strategies}
}

// NewDefaultDetector wires the header/split, header/name and content strategies.
func NewDefaultDetector(vocab Vocabulary, dates *normalizer.DateParser, amounts *normalizer.AmountParser) *Detector {
	h := newHeuristics(vocab, dates, amounts)
	return NewDetector(h.headerSplit, h.headerName, h.content)
}

// Detect returns the layout of rows or ErrFormatNotDetected.
func (d *Detector) Detect(rows []decoder.Row) (DetectedFormat, error) {
	width := sampleWidth(rows)
	if width < 2 {
		return DetectedFormat{}, fmt.Errorf("%w: fewer than two columns", ErrFormatNotDetected)
	}

	for _, strategy := range d.strategies {
		format, ok := strategy(rows)
		if !ok {
			continue
		}
		if err := format.validate(width); err != nil {
			continue
		}
		if format.HasHeaderRow {
			format.Fingerprint = Fingerprint(rows[0])
		}
		return format, nil
	}
	return DetectedFormat{}, ErrFormatNotDetected
}

// Fingerprint hashes the normalized, non-empty header cells.
func Fingerprint(header []string) string {
	normalized := make([]string, 0, len(header))
	for _, h := range header {
		if clean := strings.ReplaceAll(normalizer.NormalizeText(h), " ", ""); clean != "" {
			normalized = append(normalized, clean)
		}
	}
	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

func sampleWidth(rows []decoder.Row) int {
	width := 0
	for i, r := range rows {
		if i > sampleSize {
			break
		}
		if len(r) > width {
			width = len(r)
		}
	}
	return width
}
