// Package parser reads the category and history CSV exports that seed an import session
// when no database is at hand. It uses gocsv for struct-based unmarshaling.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
)

// CategoryRow is one line of a categories export.
type CategoryRow struct {
	ID       string `csv:"id"`
	TopLevel string `csv:"top_level"`
	SubLabel string `csv:"sub_label"`
	Kind     string `csv:"kind"`
}

// HistoryRow is one line of a history export. Category holds a category id or a
// category name ("Food / Coffee").
type HistoryRow struct {
	Description string `csv:"description"`
	Category    string `csv:"category"`
}

// ParseError represents a parsing error for a specific row
type ParseError struct {
	Row     int
	Column  string
	Message string
	RawData string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// Config configures the CSV reader.
type Config struct {
	Delimiter rune // default ','
}

// DefaultConfig returns a parser config with sensible defaults
func DefaultConfig() Config {
	return Config{Delimiter: ','}
}

// Parser reads session seed files.
type Parser struct {
	config Config
}

// NewParser creates a new parser with the given configuration
func NewParser(config Config) *Parser {
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	return &Parser{config: config}
}

// ParseCategories reads a categories export. Invalid rows are reported and skipped.
func (p *Parser) ParseCategories(reader io.Reader) ([]categorization.Category, []ParseError, error) {
	var rows []CategoryRow
	if err := p.unmarshal(reader, &rows); err != nil {
		return nil, nil, err
	}

	var (
		categories []categorization.Category
		errs       []ParseError
	)
	for i, row := range rows {
		rowNum := i + 2 // 1-indexed plus header

		id, err := uuid.Parse(strings.TrimSpace(row.ID))
		if err != nil {
			errs = append(errs, ParseError{Row: rowNum, Column: "id", Message: "invalid uuid", RawData: row.ID})
			continue
		}
		topLevel := strings.TrimSpace(row.TopLevel)
		if topLevel == "" {
			errs = append(errs, ParseError{Row: rowNum, Column: "top_level", Message: "missing top-level name"})
			continue
		}
		kind, err := categorization.ParseCategoryKind(row.Kind)
		if err != nil {
			errs = append(errs, ParseError{Row: rowNum, Column: "kind", Message: err.Error(), RawData: row.Kind})
			continue
		}

		categories = append(categories, categorization.Category{
			ID:       id,
			TopLevel: topLevel,
			SubLabel: strings.TrimSpace(row.SubLabel),
			Kind:     kind,
		})
	}
	return categories, errs, nil
}

// ParseHistory reads a history export, resolving each category against categories.
func (p *Parser) ParseHistory(reader io.Reader, categories []categorization.Category) ([]categorization.HistoricalTransaction, []ParseError, error) {
	var rows []HistoryRow
	if err := p.unmarshal(reader, &rows); err != nil {
		return nil, nil, err
	}

	byName := make(map[string]uuid.UUID, len(categories))
	known := make(map[uuid.UUID]bool, len(categories))
	for _, c := range categories {
		byName[strings.ToLower(c.Name())] = c.ID
		known[c.ID] = true
	}

	var (
		history []categorization.HistoricalTransaction
		errs    []ParseError
	)
	for i, row := range rows {
		rowNum := i + 2

		description := strings.TrimSpace(row.Description)
		if description == "" {
			errs = append(errs, ParseError{Row: rowNum, Column: "description", Message: "missing description"})
			continue
		}

		ref := strings.TrimSpace(row.Category)
		id, err := uuid.Parse(ref)
		switch {
		case err == nil && known[id]:
		case err == nil:
			errs = append(errs, ParseError{Row: rowNum, Column: "category", Message: "unknown category id", RawData: ref})
			continue
		default:
			var ok bool
			if id, ok = byName[strings.ToLower(ref)]; !ok {
				errs = append(errs, ParseError{Row: rowNum, Column: "category", Message: "unknown category", RawData: ref})
				continue
			}
		}

		history = append(history, categorization.HistoricalTransaction{Description: description, CategoryID: id})
	}
	return history, errs, nil
}

func (p *Parser) unmarshal(reader io.Reader, out any) error {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = p.config.Delimiter
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	if err := gocsv.UnmarshalCSV(csvReader, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	return nil
}
