package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/classifier"
	"github.com/FACorreiaa/statement-import/internal/domain/import/sniffer"
	"github.com/FACorreiaa/statement-import/internal/domain/import/vocabulary"
)

// fakeCommitter records committed batches and fails while err is set.
type fakeCommitter struct {
	mu      sync.Mutex
	err     error
	batches [][]StagedTransaction
	account AccountContext
}

func (f *fakeCommitter) Commit(ctx context.Context, account AccountContext, rows []StagedTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.account = account
	f.batches = append(f.batches, rows)
	return nil
}

var (
	groceriesID  = uuid.MustParse("5b8f3a7e-3c1e-4a47-9d5e-0c2a9a1f0001")
	salaryID     = uuid.MustParse("5b8f3a7e-3c1e-4a47-9d5e-0c2a9a1f0002")
	unassignedID = uuid.MustParse("5b8f3a7e-3c1e-4a47-9d5e-0c2a9a1f0003")
	coffeeID     = uuid.MustParse("5b8f3a7e-3c1e-4a47-9d5e-0c2a9a1f0004")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() Snapshot {
	return Snapshot{
		Categories: []categorization.Category{
			{ID: unassignedID, TopLevel: "Unassigned", Kind: categorization.KindExpense},
			{ID: salaryID, TopLevel: "Income", SubLabel: "Salary", Kind: categorization.KindIncome},
			{ID: groceriesID, TopLevel: "Food", SubLabel: "Groceries", Kind: categorization.KindExpense},
			{ID: coffeeID, TopLevel: "Food", SubLabel: "Coffee", Kind: categorization.KindExpense},
		},
		History: []categorization.HistoricalTransaction{
			{Description: "STARBUCKS LISBOA", CategoryID: coffeeID},
			{Description: "STARBUCKS PORTO", CategoryID: coffeeID},
		},
	}
}

func ordinaryEUR() AccountContext {
	return AccountContext{AccountType: classifier.OrdinaryAccount, CurrencyCode: "EUR"}
}

func newTestSession(t *testing.T, account AccountContext, committer Committer) *Session {
	t.Helper()
	s, err := NewForAccount(NewPipeline(vocabulary.Default(), testLogger()), testSnapshot(), account, committer, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Cancel() })
	return s
}

const statement = `Date,Description,Amount
15/01/2025,UBER EATS,-350.50
16/01/2025,PINGO DOCE ALVALADE,"-42,10"
,Saldo anterior,1000.00
17/01/2025,STARBUCKS LISBOA,-3.20
31/01/2025,NOMINA ACME SA,2500.00
01/02/2025,AJUSTE,0.00
`

// ============================================================================
// Account selection
// ============================================================================

func TestAccountContext_Validate(t *testing.T) {
	tests := []struct {
		name    string
		account AccountContext
		wantErr bool
	}{
		{"ordinary", AccountContext{classifier.OrdinaryAccount, "EUR"}, false},
		{"credit card", AccountContext{classifier.CreditCardAccount, "USD"}, false},
		{"unknown type", AccountContext{classifier.AccountType(9), "EUR"}, true},
		{"zero type", AccountContext{CurrencyCode: "EUR"}, true},
		{"lowercase currency", AccountContext{classifier.OrdinaryAccount, "eur"}, true},
		{"unknown currency", AccountContext{classifier.OrdinaryAccount, "ZZZ"}, true},
		{"empty currency", AccountContext{classifier.OrdinaryAccount, ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAccount)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSession_SelectAccount(t *testing.T) {
	s := New(NewPipeline(vocabulary.Default(), testLogger()), testSnapshot(), &fakeCommitter{}, testLogger())
	defer s.Cancel()

	assert.Equal(t, AwaitingAccountSelection, s.State())

	_, err := s.Upload(context.Background(), "a.csv", []byte(statement))
	assert.ErrorIs(t, err, ErrInvalidState)

	err = s.SelectAccount(AccountContext{AccountType: classifier.OrdinaryAccount, CurrencyCode: "???"})
	assert.ErrorIs(t, err, ErrInvalidAccount)
	assert.Equal(t, AwaitingAccountSelection, s.State())

	require.NoError(t, s.SelectAccount(ordinaryEUR()))
	assert.Equal(t, AwaitingFile, s.State())
	assert.Equal(t, "EUR", s.Account().CurrencyCode)

	assert.ErrorIs(t, s.SelectAccount(ordinaryEUR()), ErrInvalidState)
}

func TestNewForAccount_Invalid(t *testing.T) {
	_, err := NewForAccount(NewPipeline(vocabulary.Default(), testLogger()), testSnapshot(),
		AccountContext{CurrencyCode: "EUR"}, &fakeCommitter{}, testLogger())
	assert.ErrorIs(t, err, classifier.ErrUnknownAccountType)
}

// ============================================================================
// Upload
// ============================================================================

func TestSession_Upload(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})

	preview, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)
	assert.Equal(t, Previewing, s.State())

	require.Len(t, preview.Rows, 4)
	assert.Equal(t, 1, preview.Skipped[SkipNoDate])
	assert.Equal(t, 1, preview.Skipped[SkipZeroAmount])
	assert.Equal(t, 2, preview.SkippedTotal())
	assert.True(t, preview.Format.HasHeaderRow)
	assert.NotEmpty(t, preview.Format.Fingerprint)

	uber := preview.Rows[0]
	assert.Equal(t, 0, uber.ID)
	assert.Equal(t, 2, uber.SourceRow)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), uber.Date)
	assert.Equal(t, "UBER EATS", uber.Description)
	assert.Equal(t, "350.5", uber.Amount.String())
	assert.True(t, uber.IsExpense)
	assert.False(t, uber.IsReimbursement)
	assert.Nil(t, uber.SuggestedCategoryID, "Delivery is not a user category")
	assert.Equal(t, categorization.ConfidenceLow, uber.Confidence)
	assert.True(t, uber.Included)

	groceries := preview.Rows[1]
	assert.Equal(t, "42.1", groceries.Amount.String())
	require.NotNil(t, groceries.SuggestedCategoryID)
	assert.Equal(t, groceriesID, *groceries.SuggestedCategoryID)
	assert.Equal(t, categorization.SourceDictionary, groceries.MatchSource)

	coffee := preview.Rows[2]
	require.NotNil(t, coffee.CategoryID)
	assert.Equal(t, coffeeID, *coffee.CategoryID)
	assert.Equal(t, categorization.ConfidenceHigh, coffee.Confidence)
	assert.Equal(t, categorization.SourceHistoryExact, coffee.MatchSource)

	salary := preview.Rows[3]
	assert.False(t, salary.IsExpense)
	require.NotNil(t, salary.SuggestedCategoryID)
	assert.Equal(t, salaryID, *salary.SuggestedCategoryID)

	included, total := s.Counts()
	assert.Equal(t, 4, included)
	assert.Equal(t, 4, total)

	_, err = s.Upload(context.Background(), "again.csv", []byte(statement))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSession_UploadNoValidTransactions(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		formatFailed bool
	}{
		{"empty file", "", false},
		{"single column", "hello\nworld\n", true},
		{"no dates", "a,b,c\nx,y,1.00\n", true},
		{"only zero amounts", "15/01/2025,A,0.00\n16/01/2025,B,-0.00\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})

			_, err := s.Upload(context.Background(), "bad.csv", []byte(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoValidTransactions)
			assert.Equal(t, tt.formatFailed, errors.Is(err, sniffer.ErrFormatNotDetected))
			assert.Equal(t, AwaitingFile, s.State(), "session goes back to waiting for a file")

			_, err = s.Upload(context.Background(), "good.csv", []byte(statement))
			require.NoError(t, err)
			assert.Equal(t, Previewing, s.State())
		})
	}
}

func TestSession_UploadCanceledContext(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Upload(ctx, "statement.csv", []byte(statement))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, AwaitingFile, s.State())
}

func TestSession_NilLogger(t *testing.T) {
	pipeline := NewPipeline(vocabulary.Default(), nil)
	s, err := NewForAccount(pipeline, testSnapshot(), ordinaryEUR(), &fakeCommitter{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Cancel() })

	content := "Date, Description, Amount\n15/01/2025, \"UBER, EATS\", -350.50\n"
	preview, err := s.Upload(context.Background(), "spaced.csv", []byte(content))
	require.NoError(t, err)
	require.Len(t, preview.Rows, 1)
	assert.Equal(t, "UBER, EATS", preview.Rows[0].Description)
	assert.Equal(t, "350.5", preview.Rows[0].Amount.String())
}

func TestSession_CreditCardReimbursement(t *testing.T) {
	s := newTestSession(t, AccountContext{AccountType: classifier.CreditCardAccount, CurrencyCode: "EUR"}, &fakeCommitter{})

	content := "20/01/2025,DEVOLUCION AMAZON,-200.00\n21/01/2025,AMAZON MARKETPLACE,59.99\n22/01/2025,PAGO TARJETA,-500.00\n"
	preview, err := s.Upload(context.Background(), "card.csv", []byte(content))
	require.NoError(t, err)
	require.Len(t, preview.Rows, 3)

	refund := preview.Rows[0]
	assert.True(t, refund.IsExpense)
	assert.True(t, refund.IsReimbursement)
	assert.Equal(t, "200", refund.Amount.String())

	purchase := preview.Rows[1]
	assert.True(t, purchase.IsExpense)
	assert.False(t, purchase.IsReimbursement)

	payment := preview.Rows[2]
	assert.False(t, payment.IsExpense)
	assert.False(t, payment.IsReimbursement)

	totals, err := s.Totals()
	require.NoError(t, err)
	assert.Equal(t, "-140.01", totals.Expense.String())
	assert.Equal(t, "500.00", totals.Income.String())
}

func TestSession_SplitColumns(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})

	content := "Fecha;Concepto;Cargo;Abono\n" +
		"02/03/2025;MERCADONA;45,20;\n" +
		"03/03/2025;NOMINA;;1.800,00\n" +
		"04/03/2025;SIN IMPORTE;;\n"
	preview, err := s.Upload(context.Background(), "split.csv", []byte(content))
	require.NoError(t, err)
	require.True(t, preview.Format.IsSplit())
	require.Len(t, preview.Rows, 2)

	assert.True(t, preview.Rows[0].IsExpense)
	assert.Equal(t, "45.2", preview.Rows[0].Amount.String())
	assert.False(t, preview.Rows[1].IsExpense)
	assert.Equal(t, "1800", preview.Rows[1].Amount.String())
	assert.Equal(t, 1, preview.Skipped[SkipNoAmount])
}

// ============================================================================
// Review edits
// ============================================================================

func TestSession_Edits(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)

	included, err := s.Toggle(0)
	require.NoError(t, err)
	assert.False(t, included)

	require.NoError(t, s.SetIncluded(1, false))
	n, total := s.Counts()
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, total)

	require.NoError(t, s.OverrideCategory(0, groceriesID))
	row, err := s.Row(0)
	require.NoError(t, err)
	require.NotNil(t, row.CategoryID)
	assert.Equal(t, groceriesID, *row.CategoryID)
	assert.Nil(t, row.SuggestedCategoryID, "suggestion is kept as it was")
	assert.True(t, row.Overridden)

	require.NoError(t, s.OverrideCategory(2, uuid.Nil))
	row, err = s.Row(2)
	require.NoError(t, err)
	assert.Nil(t, row.CategoryID)

	assert.ErrorIs(t, s.OverrideCategory(0, uuid.New()), ErrUnknownCategory)
	assert.ErrorIs(t, s.SetIncluded(99, true), ErrUnknownRow)
	_, err = s.Toggle(-1)
	assert.ErrorIs(t, err, ErrUnknownRow)
	_, err = s.Row(4)
	assert.ErrorIs(t, err, ErrUnknownRow)

	require.NoError(t, s.SelectNone())
	n, _ = s.Counts()
	assert.Equal(t, 0, n)

	require.NoError(t, s.SelectAll())
	n, _ = s.Counts()
	assert.Equal(t, 4, n)
}

func TestSession_EditsRequirePreviewing(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})

	_, err := s.Toggle(0)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, s.SelectAll(), ErrInvalidState)
	assert.ErrorIs(t, s.OverrideCategory(0, groceriesID), ErrInvalidState)
	_, err = s.Preview()
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSession_RowsAreCopies(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)

	rows := s.Rows()
	rows[1].Included = false
	*rows[1].CategoryID = uuid.New()

	row, err := s.Row(1)
	require.NoError(t, err)
	assert.True(t, row.Included)
	assert.Equal(t, groceriesID, *row.CategoryID)
}

func TestSession_Totals(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)

	totals, err := s.Totals()
	require.NoError(t, err)
	assert.Equal(t, "395.80", totals.Expense.String())
	assert.Equal(t, "2500.00", totals.Income.String())
	assert.Equal(t, "EUR", totals.Expense.Currency())

	require.NoError(t, s.SetIncluded(3, false))
	totals, err = s.Totals()
	require.NoError(t, err)
	assert.True(t, totals.Income.IsZero())
}

func TestSession_AlternativesAndPrecedents(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)

	alts, err := s.Alternatives(2, 3)
	require.NoError(t, err)
	require.NotEmpty(t, alts)
	assert.Equal(t, coffeeID, alts[0].ID)

	precedents, err := s.Precedents(2, 5)
	require.NoError(t, err)
	require.NotEmpty(t, precedents)
	for _, p := range precedents {
		assert.Equal(t, coffeeID, p.CategoryID)
	}

	_, err = s.Alternatives(10, 3)
	assert.ErrorIs(t, err, ErrUnknownRow)
	_, err = s.Precedents(10, 3)
	assert.ErrorIs(t, err, ErrUnknownRow)
}

// ============================================================================
// Commit and cancel
// ============================================================================

func TestSession_Commit(t *testing.T) {
	committer := &fakeCommitter{}
	s := newTestSession(t, ordinaryEUR(), committer)
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)
	require.NoError(t, s.SetIncluded(0, false))

	n, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, Closed, s.State())

	require.Len(t, committer.batches, 1)
	batch := committer.batches[0]
	require.Len(t, batch, 3)
	assert.Equal(t, "PINGO DOCE ALVALADE", batch[0].Description)
	assert.Equal(t, "EUR", committer.account.CurrencyCode)

	assert.Empty(t, s.Rows(), "closed session holds no rows")
	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSession_CommitFailureKeepsRows(t *testing.T) {
	dbErr := errors.New("connection reset")
	committer := &fakeCommitter{err: dbErr}
	s := newTestSession(t, ordinaryEUR(), committer)
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)
	require.NoError(t, s.OverrideCategory(0, unassignedID))
	before := s.Rows()

	_, err = s.Commit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.ErrorIs(t, err, dbErr)
	assert.Equal(t, Previewing, s.State())
	assert.Equal(t, before, s.Rows())

	committer.mu.Lock()
	committer.err = nil
	committer.mu.Unlock()

	n, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSession_CommitNothingSelected(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)
	require.NoError(t, s.SelectNone())

	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNothingToCommit)
	assert.Equal(t, Previewing, s.State())
}

func TestSession_Cancel(t *testing.T) {
	committer := &fakeCommitter{}
	s := newTestSession(t, ordinaryEUR(), committer)
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)

	require.NoError(t, s.Cancel())
	assert.Equal(t, Closed, s.State())
	assert.Empty(t, s.Rows())
	assert.Empty(t, committer.batches)
	assert.NoError(t, s.Cancel(), "cancel is idempotent")
}

func TestSession_ConcurrentReview(t *testing.T) {
	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{})
	_, err := s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = s.Toggle((i + j) % 4)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, total := s.Counts()
				assert.Equal(t, 4, total)
				_ = s.Rows()
			}
		}()
	}
	wg.Wait()
}

// ============================================================================
// Metrics
// ============================================================================

func TestSession_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	s := newTestSession(t, ordinaryEUR(), &fakeCommitter{}).WithMetrics(metrics)

	_, err := s.Upload(context.Background(), "bad.csv", []byte("nothing here"))
	require.Error(t, err)
	_, err = s.Upload(context.Background(), "statement.csv", []byte(statement))
	require.NoError(t, err)
	_, err = s.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.uploads.WithLabelValues(outcomeNoRows)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.uploads.WithLabelValues(outcomeOK)))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.staged))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.skipped.WithLabelValues(string(SkipNoDate))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.commits.WithLabelValues(outcomeOK)))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.committed))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeUpload(outcomeOK, &Preview{})
		m.observeCommit(outcomeOK, 3)
	})
}
