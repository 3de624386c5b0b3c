// Package repository persists committed imports and loads the categories and history a
// session matches against.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/session"
	"github.com/FACorreiaa/statement-import/pkg/money"
)

// DefaultHistoryLimit bounds how many categorized transactions seed a session.
const DefaultHistoryLimit = 5000

// DBTX is the subset of pgxpool.Pool the repository uses.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var transactionColumns = []string{
	"id", "user_id", "account_id", "import_session_id", "source_row",
	"booked_at", "description", "amount_minor", "currency_code",
	"is_expense", "is_reimbursement", "category_id", "suggested_category_id",
	"match_confidence", "created_at",
}

// PostgresRepository reads and writes import data in PostgreSQL.
type PostgresRepository struct {
	db  DBTX
	now func() time.Time
}

// NewPostgresRepository creates a new PostgreSQL import repository
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// LoadCategories returns the user's categories plus the shared defaults.
func (r *PostgresRepository) LoadCategories(ctx context.Context, userID uuid.UUID) ([]categorization.Category, error) {
	query := `
		SELECT id, top_level, COALESCE(sub_label, ''), kind
		FROM categories
		WHERE user_id = $1 OR user_id IS NULL
		ORDER BY user_id NULLS LAST, top_level, sub_label NULLS FIRST`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	defer rows.Close()

	var categories []categorization.Category
	for rows.Next() {
		var (
			c    categorization.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.TopLevel, &c.SubLabel, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if c.Kind, err = categorization.ParseCategoryKind(kind); err != nil {
			return nil, fmt.Errorf("category %s: %w", c.ID, err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// LoadHistory returns the user's categorized descriptions, oldest first, so later
// assignments win when the index is built.
func (r *PostgresRepository) LoadHistory(ctx context.Context, userID uuid.UUID, limit int) ([]categorization.HistoricalTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query := `
		SELECT description, category_id
		FROM (
			SELECT description, category_id, booked_at, created_at
			FROM transactions
			WHERE user_id = $1 AND category_id IS NOT NULL
			ORDER BY booked_at DESC, created_at DESC
			LIMIT $2
		) recent
		ORDER BY booked_at, created_at`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var history []categorization.HistoricalTransaction
	for rows.Next() {
		var h categorization.HistoricalTransaction
		if err := rows.Scan(&h.Description, &h.CategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// LoadSnapshot loads everything a session needs for userID.
func (r *PostgresRepository) LoadSnapshot(ctx context.Context, userID uuid.UUID, historyLimit int) (session.Snapshot, error) {
	categories, err := r.LoadCategories(ctx, userID)
	if err != nil {
		return session.Snapshot{}, err
	}
	history, err := r.LoadHistory(ctx, userID, historyLimit)
	if err != nil {
		return session.Snapshot{}, err
	}
	return session.Snapshot{Categories: categories, History: history}, nil
}

// Committer binds the repository to one user's account.
func (r *PostgresRepository) Committer(userID, accountID, importID uuid.UUID) *Committer {
	return &Committer{repo: r, userID: userID, accountID: accountID, importID: importID}
}

// Committer writes approved rows into transactions in a single database transaction.
type Committer struct {
	repo      *PostgresRepository
	userID    uuid.UUID
	accountID uuid.UUID
	importID  uuid.UUID
}

var _ session.Committer = (*Committer)(nil)

// Commit copies rows into transactions. Nothing is written unless every row is.
func (c *Committer) Commit(ctx context.Context, account session.AccountContext, rows []session.StagedTransaction) error {
	src, err := c.copyRows(account, rows)
	if err != nil {
		return err
	}

	tx, err := c.repo.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns, pgx.CopyFromRows(src))
	if err != nil {
		return fmt.Errorf("failed to copy transactions: %w", err)
	}
	if int(n) != len(src) {
		return fmt.Errorf("copied %d of %d transactions", n, len(src))
	}

	return tx.Commit(ctx)
}

func (c *Committer) copyRows(account session.AccountContext, rows []session.StagedTransaction) ([][]any, error) {
	now := c.repo.now().UTC()
	src := make([][]any, 0, len(rows))
	for _, tx := range rows {
		amount, err := money.NewFromDecimal(tx.Amount, account.CurrencyCode)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", tx.SourceRow, err)
		}
		src = append(src, []any{
			uuid.New(),
			c.userID,
			c.accountID,
			c.importID,
			tx.SourceRow,
			tx.Date,
			tx.Description,
			amount.Amount(),
			account.CurrencyCode,
			tx.IsExpense,
			tx.IsReimbursement,
			tx.CategoryID,
			tx.SuggestedCategoryID,
			tx.Confidence.String(),
			now,
		})
	}
	return src, nil
}
