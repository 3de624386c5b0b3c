// Package session drives one statement import from account selection through review to
// commit. It owns the staging list; every other stage of the pipeline is stateless.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/pkg/money"
)

// State is the position of a session in its lifecycle.
type State int

const (
	AwaitingAccountSelection State = iota + 1
	AwaitingFile
	Previewing
	Committing
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingAccountSelection:
		return "awaiting_account_selection"
	case AwaitingFile:
		return "awaiting_file"
	case Previewing:
		return "previewing"
	case Committing:
		return "committing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Committer persists the rows a user approved. The session never writes anywhere
// itself.
type Committer interface {
	Commit(ctx context.Context, account AccountContext, rows []StagedTransaction) error
}

// Totals sums the included rows. Reimbursements reduce Expense.
type Totals struct {
	Expense *money.Money
	Income  *money.Money
}

// Session is one import. All methods are safe for concurrent use.
type Session struct {
	id        uuid.UUID
	pipeline  *Pipeline
	committer Committer
	metrics   *Metrics
	tracer    trace.Tracer
	logger    *slog.Logger

	// read-only after construction
	categories []categorization.Category
	history    *categorization.HistoryIndex
	fuzzy      *categorization.FuzzyMatcher
	search     *categorization.SearchIndex

	mu       sync.Mutex
	state    State
	account  AccountContext
	filename string
	preview  *Preview
	rows     []StagedTransaction
}

// New starts a session that first needs an account.
func New(pipeline *Pipeline, snapshot Snapshot, committer Committer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	history := categorization.BuildHistoryIndex(snapshot.History)
	s := &Session{
		id:         uuid.New(),
		pipeline:   pipeline,
		committer:  committer,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		categories: append([]categorization.Category(nil), snapshot.Categories...),
		history:    history,
		fuzzy:      categorization.NewFuzzyMatcher(history),
		state:      AwaitingAccountSelection,
	}

	search, err := categorization.NewSearchIndex()
	if err == nil {
		err = search.IndexHistory(history)
	}
	if err != nil {
		s.logger.Warn("precedent search unavailable", "session_id", s.id, "error", err)
		if search != nil {
			_ = search.Close()
		}
	} else {
		s.search = search
	}

	return s
}

// NewForAccount starts a session that already knows its account.
func NewForAccount(pipeline *Pipeline, snapshot Snapshot, account AccountContext, committer Committer, logger *slog.Logger) (*Session, error) {
	s := New(pipeline, snapshot, committer, logger)
	if err := s.SelectAccount(account); err != nil {
		_ = s.Cancel()
		return nil, err
	}
	return s, nil
}

// WithMetrics records session activity on m.
func (s *Session) WithMetrics(m *Metrics) *Session {
	s.metrics = m
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account returns the selected account.
func (s *Session) Account() AccountContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Categories returns the snapshot's categories.
func (s *Session) Categories() []categorization.Category {
	return append([]categorization.Category(nil), s.categories...)
}

// SelectAccount moves AwaitingAccountSelection to AwaitingFile.
func (s *Session) SelectAccount(account AccountContext) error {
	if err := account.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(AwaitingAccountSelection); err != nil {
		return err
	}
	s.account = account
	s.state = AwaitingFile
	return nil
}

// Upload runs the pipeline over content and moves to Previewing. When nothing can be
// staged the session stays in AwaitingFile and the error wraps ErrNoValidTransactions.
func (s *Session) Upload(ctx context.Context, filename string, content []byte) (Preview, error) {
	s.mu.Lock()
	if err := s.expect(AwaitingFile); err != nil {
		s.mu.Unlock()
		return Preview{}, err
	}
	account := s.account
	s.mu.Unlock()

	preview, err := s.pipeline.Run(ctx, content, account, s.categories, s.history)
	if err != nil {
		if errors.Is(err, ErrNoValidTransactions) {
			s.metrics.observeUpload(outcomeNoRows, nil)
			s.logger.Info("no valid transactions in upload",
				"session_id", s.id, "filename", filename, "error", err)
		} else {
			s.metrics.observeUpload(outcomeFailed, nil)
		}
		return Preview{}, fmt.Errorf("failed to stage %q: %w", filename, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(AwaitingFile); err != nil {
		return Preview{}, err
	}
	s.filename = filename
	s.preview = preview
	s.rows = preview.Rows
	s.state = Previewing
	s.metrics.observeUpload(outcomeOK, preview)

	s.logger.Info("statement staged",
		"session_id", s.id,
		"filename", filename,
		"staged", len(preview.Rows),
		"skipped", preview.SkippedTotal(),
		"strategy", preview.Format.Strategy,
	)
	return s.snapshotPreview(), nil
}

// Preview returns the staged list and detection details of the current upload.
func (s *Session) Preview() (Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(Previewing); err != nil {
		return Preview{}, err
	}
	return s.snapshotPreview(), nil
}

// Toggle flips a row's included flag and returns the new value.
func (s *Session) Toggle(id int) (bool, error) {
	var included bool
	err := s.edit(id, func(tx *StagedTransaction) error {
		tx.Included = !tx.Included
		included = tx.Included
		return nil
	})
	return included, err
}

// SetIncluded sets a row's included flag.
func (s *Session) SetIncluded(id int, included bool) error {
	return s.edit(id, func(tx *StagedTransaction) error {
		tx.Included = included
		return nil
	})
}

// OverrideCategory assigns categoryID to a row. uuid.Nil leaves the row unassigned.
func (s *Session) OverrideCategory(id int, categoryID uuid.UUID) error {
	if categoryID != uuid.Nil && !s.knownCategory(categoryID) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	return s.edit(id, func(tx *StagedTransaction) error {
		if categoryID == uuid.Nil {
			tx.CategoryID = nil
		} else {
			c := categoryID
			tx.CategoryID = &c
		}
		tx.Overridden = true
		return nil
	})
}

// SelectAll includes every row.
func (s *Session) SelectAll() error {
	return s.setAll(true)
}

// SelectNone excludes every row.
func (s *Session) SelectNone() error {
	return s.setAll(false)
}

// Rows returns a copy of the staged list in source order.
func (s *Session) Rows() []StagedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.rows)
}

// Row returns one staged row.
func (s *Session) Row(id int) (StagedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.rows) {
		return StagedTransaction{}, fmt.Errorf("%w: %d", ErrUnknownRow, id)
	}
	return cloneRow(s.rows[id]), nil
}

// Counts returns the number of included rows and of all staged rows.
func (s *Session) Counts() (included, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.rows {
		if tx.Included {
			included++
		}
	}
	return included, len(s.rows)
}

// Totals sums the included rows in the account currency.
func (s *Session) Totals() (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.account.CurrencyCode
	totals := Totals{Expense: money.Zero(code), Income: money.Zero(code)}
	for _, tx := range s.rows {
		if !tx.Included {
			continue
		}
		amount, err := money.NewFromDecimal(tx.Amount, code)
		if err != nil {
			return Totals{}, fmt.Errorf("failed to total row %d: %w", tx.ID, err)
		}
		switch {
		case tx.IsReimbursement:
			totals.Expense, err = totals.Expense.Subtract(amount)
		case tx.IsExpense:
			totals.Expense, err = totals.Expense.Add(amount)
		default:
			totals.Income, err = totals.Income.Add(amount)
		}
		if err != nil {
			return Totals{}, fmt.Errorf("failed to total row %d: %w", tx.ID, err)
		}
	}
	return totals, nil
}

// Alternatives lists categories used by similar historical descriptions, best first,
// for the override picker.
func (s *Session) Alternatives(id, limit int) ([]categorization.Category, error) {
	tx, err := s.Row(id)
	if err != nil {
		return nil, err
	}

	var out []categorization.Category
	for _, categoryID := range s.fuzzy.Alternatives(tx.Description, categorization.DefaultAlternativeScore, 0) {
		c, ok := s.category(categoryID)
		if !ok {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Precedents lists historical descriptions resembling a row. It returns nothing when
// the search index could not be built.
func (s *Session) Precedents(id, limit int) ([]categorization.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.rows) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRow, id)
	}
	if s.search == nil {
		return nil, nil
	}
	results, err := s.search.Search(s.rows[id].Description, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search precedents: %w", err)
	}
	return results, nil
}

// Commit hands the included rows to the committer and closes the session. On failure
// the session returns to Previewing with every row intact.
func (s *Session) Commit(ctx context.Context) (int, error) {
	s.mu.Lock()
	if err := s.expect(Previewing); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	var approved []StagedTransaction
	for _, tx := range s.rows {
		if tx.Included {
			approved = append(approved, cloneRow(tx))
		}
	}
	if len(approved) == 0 {
		s.mu.Unlock()
		s.metrics.observeCommit(outcomeRejected, 0)
		return 0, ErrNothingToCommit
	}
	account := s.account
	s.state = Committing
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "import.commit",
		trace.WithAttributes(
			attribute.String("import.session_id", s.id.String()),
			attribute.Int("import.rows", len(approved)),
		))
	defer span.End()

	err := s.committer.Commit(ctx, account, approved)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Previewing
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.observeCommit(outcomeFailed, 0)
		s.logger.Warn("commit failed, staged rows kept", "session_id", s.id, "rows", len(approved), "error", err)
		return 0, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	s.metrics.observeCommit(outcomeOK, len(approved))
	s.logger.Info("statement committed", "session_id", s.id, "filename", s.filename, "rows", len(approved))
	s.close()
	return len(approved), nil
}

// Cancel discards the staged rows and closes the session. It fails only while a
// commit is in flight.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Closed:
		return nil
	case Committing:
		return fmt.Errorf("%w: cannot cancel while %s", ErrInvalidState, s.state)
	}
	s.close()
	return nil
}

// close must be called with mu held.
func (s *Session) close() {
	s.state = Closed
	s.rows = nil
	s.preview = nil
	if s.search != nil {
		if err := s.search.Close(); err != nil {
			s.logger.Warn("failed to close search index", "session_id", s.id, "error", err)
		}
		s.search = nil
	}
}

func (s *Session) expect(want State) error {
	if s.state != want {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, s.state, want)
	}
	return nil
}

func (s *Session) edit(id int, fn func(tx *StagedTransaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(Previewing); err != nil {
		return err
	}
	if id < 0 || id >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrUnknownRow, id)
	}
	return fn(&s.rows[id])
}

func (s *Session) setAll(included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(Previewing); err != nil {
		return err
	}
	for i := range s.rows {
		s.rows[i].Included = included
	}
	return nil
}

func (s *Session) snapshotPreview() Preview {
	skipped := make(map[SkipReason]int, len(s.preview.Skipped))
	for k, v := range s.preview.Skipped {
		skipped[k] = v
	}
	return Preview{
		Rows:    cloneRows(s.rows),
		Skipped: skipped,
		Format:  s.preview.Format,
		Kind:    s.preview.Kind,
	}
}

func (s *Session) knownCategory(id uuid.UUID) bool {
	_, ok := s.category(id)
	return ok
}

func (s *Session) category(id uuid.UUID) (categorization.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return categorization.Category{}, false
}

func cloneRows(rows []StagedTransaction) []StagedTransaction {
	if rows == nil {
		return nil
	}
	out := make([]StagedTransaction, len(rows))
	for i, tx := range rows {
		out[i] = cloneRow(tx)
	}
	return out
}

func cloneRow(tx StagedTransaction) StagedTransaction {
	tx.SuggestedCategoryID = cloneID(tx.SuggestedCategoryID)
	tx.CategoryID = cloneID(tx.CategoryID)
	return tx
}
