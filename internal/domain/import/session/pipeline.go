package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/classifier"
	"github.com/FACorreiaa/statement-import/internal/domain/import/decoder"
	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-import/internal/domain/import/sniffer"
	"github.com/FACorreiaa/statement-import/internal/domain/import/vocabulary"
)

const tracerName = "github.com/FACorreiaa/statement-import/internal/domain/import/session"

// SkipReason says why a data row was not staged.
type SkipReason string

const (
	SkipNoDate     SkipReason = "no_date"
	SkipNoAmount   SkipReason = "no_amount"
	SkipZeroAmount SkipReason = "zero_amount"
	SkipShortRow   SkipReason = "short_row"
)

// StagedTransaction is one reviewable row. Amount is always positive; direction is
// carried by IsExpense.
type StagedTransaction struct {
	ID          int
	SourceRow   int
	Date        time.Time
	Description string
	Amount      decimal.Decimal

	IsExpense       bool
	IsReimbursement bool

	SuggestedCategoryID *uuid.UUID
	CategoryID          *uuid.UUID
	Confidence          categorization.Confidence
	MatchSource         categorization.MatchSource
	Overridden          bool

	Included bool
}

// Preview is the outcome of running the pipeline over one file.
type Preview struct {
	Rows    []StagedTransaction
	Skipped map[SkipReason]int
	Format  sniffer.DetectedFormat
	Kind    decoder.Kind
}

// SkippedTotal is the number of data rows left out.
func (p Preview) SkippedTotal() int {
	n := 0
	for _, c := range p.Skipped {
		n += c
	}
	return n
}

// Pipeline runs decode, detect, normalize, classify and match over a whole file. It
// holds only immutable configuration and is safe for concurrent use.
type Pipeline struct {
	decoder    *decoder.Decoder
	detector   *sniffer.Detector
	dates      *normalizer.DateParser
	amounts    *normalizer.AmountParser
	classifier *classifier.Classifier
	matcher    *categorization.Matcher
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewPipeline builds every stage from vocab.
func NewPipeline(vocab vocabulary.Vocabulary, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		decoder:    decoder.New(logger),
		detector:   vocab.Detector(),
		dates:      vocab.DateParser(),
		amounts:    vocab.AmountParser(),
		classifier: vocab.Classifier(),
		matcher:    vocab.Matcher(),
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
	}
}

// Run stages every valid data row of content in source order. Whole-file defects are
// reported as ErrNoValidTransactions.
func (p *Pipeline) Run(ctx context.Context, content []byte, account AccountContext, categories []categorization.Category, index *categorization.HistoryIndex) (*Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := p.tracer.Start(ctx, "import.pipeline",
		trace.WithAttributes(
			attribute.Int("import.bytes", len(content)),
			attribute.String("import.account_type", account.AccountType.String()),
		))
	defer span.End()

	preview, err := p.run(content, account, categories, index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("import.kind", string(preview.Kind)),
		attribute.String("import.strategy", preview.Format.Strategy),
		attribute.Int("import.staged", len(preview.Rows)),
		attribute.Int("import.skipped", preview.SkippedTotal()),
	)
	return preview, nil
}

func (p *Pipeline) run(content []byte, account AccountContext, categories []categorization.Category, index *categorization.HistoryIndex) (*Preview, error) {
	rows, kind := p.decoder.Decode(content)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file has no rows", ErrNoValidTransactions)
	}

	format, err := p.detector.Detect(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoValidTransactions, err)
	}

	preview := &Preview{
		Skipped: make(map[SkipReason]int),
		Format:  format,
		Kind:    kind,
	}

	for i := format.DataStart(); i < len(rows); i++ {
		tx, reason := p.stage(rows[i], format, account, categories, index)
		if reason != "" {
			preview.Skipped[reason]++
			continue
		}
		tx.ID = len(preview.Rows)
		tx.SourceRow = i + 1
		preview.Rows = append(preview.Rows, tx)
	}

	p.logger.Debug("statement staged",
		slog.String("kind", string(kind)),
		slog.String("strategy", format.Strategy),
		slog.Int("rows", len(rows)),
		slog.Int("staged", len(preview.Rows)),
		slog.Int("skipped", preview.SkippedTotal()),
	)

	if len(preview.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data row has both a date and an amount", ErrNoValidTransactions)
	}
	return preview, nil
}

func (p *Pipeline) stage(row decoder.Row, format sniffer.DetectedFormat, account AccountContext, categories []categorization.Category, index *categorization.HistoryIndex) (StagedTransaction, SkipReason) {
	if isShort(row, format) {
		return StagedTransaction{}, SkipShortRow
	}

	date, ok := p.dates.Parse(row.Cell(format.DateColumn))
	if !ok {
		return StagedTransaction{}, SkipNoDate
	}

	description := ""
	if format.DescriptionColumn >= 0 {
		description = normalizer.CleanDescription(row.Cell(format.DescriptionColumn))
	}

	var (
		magnitude decimal.Decimal
		result    classifier.Result
	)
	if format.IsSplit() {
		direction, amount, reason := p.splitAmount(row, format)
		if reason != "" {
			return StagedTransaction{}, reason
		}
		magnitude = amount.Magnitude
		result = p.classifier.ClassifyDirected(direction, account.AccountType, description)
	} else {
		amount, ok := p.amounts.Parse(row.Cell(format.AmountColumn))
		if !ok {
			return StagedTransaction{}, SkipNoAmount
		}
		if amount.IsZero() {
			return StagedTransaction{}, SkipZeroAmount
		}
		magnitude = amount.Magnitude
		result = p.classifier.Classify(amount.Negative, account.AccountType, description)
	}

	match := p.matcher.Match(description, categories, index)
	return StagedTransaction{
		Date:                date,
		Description:         description,
		Amount:              magnitude,
		IsExpense:           result.IsExpense,
		IsReimbursement:     result.IsReimbursement,
		SuggestedCategoryID: match.CategoryID,
		CategoryID:          cloneID(match.CategoryID),
		Confidence:          match.Confidence,
		MatchSource:         match.Source,
		Included:            true,
	}, ""
}

// splitAmount reads the expense column first; the income column is used only when the
// expense cell is empty or zero.
func (p *Pipeline) splitAmount(row decoder.Row, format sniffer.DetectedFormat) (classifier.Direction, normalizer.Amount, SkipReason) {
	expense, expenseOK := p.amounts.Parse(row.Cell(format.ExpenseColumn))
	if expenseOK && !expense.IsZero() {
		return classifier.Outflow, expense, ""
	}
	income, incomeOK := p.amounts.Parse(row.Cell(format.IncomeColumn))
	if incomeOK && !income.IsZero() {
		return classifier.Inflow, income, ""
	}
	if expenseOK || incomeOK {
		return 0, normalizer.Amount{}, SkipZeroAmount
	}
	return 0, normalizer.Amount{}, SkipNoAmount
}

// isShort reports rows that do not reach the date column or any amount column.
// Spreadsheet rows drop trailing empty cells, so only those columns are required.
func isShort(row decoder.Row, format sniffer.DetectedFormat) bool {
	if len(row) <= format.DateColumn {
		return true
	}
	if format.IsSplit() {
		return len(row) <= min(format.IncomeColumn, format.ExpenseColumn)
	}
	return len(row) <= format.AmountColumn
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

// IsFormatError reports whether err came from format detection rather than from an
// empty file or a file without valid rows.
func IsFormatError(err error) bool {
	return errors.Is(err, sniffer.ErrFormatNotDetected)
}
