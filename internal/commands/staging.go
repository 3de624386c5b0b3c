package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/classifier"
	"github.com/FACorreiaa/statement-import/internal/domain/import/inbox"
	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-import/internal/domain/import/session"
	"github.com/FACorreiaa/statement-import/pkg/config"
)

var ErrInvalidOverride = errors.New("invalid category override")

// stagingOptions are the flags shared by preview and commit.
type stagingOptions struct {
	file           string
	accountType    string
	currency       string
	categoriesPath string
	historyPath    string
	vocabularyPath string
	exclude        []int
	overrides      []string
	explain        []int
}

func (o *stagingOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.file, "file", "", "statement file: delimited text, xlsx or xls (required)")
	_ = cmd.MarkFlagRequired("file")
	o.bindSources(cmd)
	flags.IntSliceVar(&o.exclude, "exclude", nil, "row ids to leave out")
	flags.StringArrayVar(&o.overrides, "set-category", nil, `override as row=category, category being an id or a name like "Food / Coffee"`)
	flags.IntSliceVar(&o.explain, "explain", nil, "row ids to show alternative categories and similar past transactions for")
}

// bindSources binds the account and snapshot flags.
func (o *stagingOptions) bindSources(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.accountType, "account-type", "ordinary", "account type: ordinary or credit_card")
	flags.StringVar(&o.currency, "currency", "", "account currency code (default IMPORT_DEFAULT_CURRENCY)")
	flags.StringVar(&o.categoriesPath, "categories", "", "categories CSV with id,top_level,sub_label,kind columns")
	flags.StringVar(&o.historyPath, "history", "", "history CSV with description,category columns")
	flags.StringVar(&o.vocabularyPath, "vocabulary", "", "YAML file overriding the built-in vocabulary")
}

func (o *stagingOptions) account(cfg *config.Config) (session.AccountContext, error) {
	accountType, err := classifier.ParseAccountType(o.accountType)
	if err != nil {
		return session.AccountContext{}, fmt.Errorf("%w: %w", session.ErrInvalidAccount, err)
	}

	currency := o.currency
	if currency == "" {
		currency = cfg.Import.DefaultCurrency
	}

	account := session.AccountContext{
		AccountType:  accountType,
		CurrencyCode: strings.ToUpper(strings.TrimSpace(currency)),
	}
	if err := account.Validate(); err != nil {
		return session.AccountContext{}, err
	}
	return account, nil
}

func (o *stagingOptions) read(cfg *config.Config) ([]byte, error) {
	return inbox.ReadFile(o.file, cfg.Import.MaxFileBytes)
}

// stage runs the statement through a fresh session and applies the review flags.
func stage(ctx context.Context, cmd *cobra.Command, deps *Dependencies, opts *stagingOptions, content []byte, snapshot session.Snapshot, committer session.Committer) (*session.Session, error) {
	account, err := opts.account(deps.Config)
	if err != nil {
		return nil, err
	}

	s, err := session.NewForAccount(deps.Pipeline, snapshot, account, committer, deps.Logger)
	if err != nil {
		return nil, err
	}
	s.WithMetrics(deps.Metrics)

	if _, err := s.Upload(ctx, filepath.Base(opts.file), content); err != nil {
		if errors.Is(err, session.ErrNoValidTransactions) {
			fmt.Fprintln(cmd.ErrOrStderr(), session.UserMessage)
		}
		_ = s.Cancel()
		return nil, err
	}

	if err := applyReview(s, opts); err != nil {
		_ = s.Cancel()
		return nil, err
	}
	return s, nil
}

func applyReview(s *session.Session, opts *stagingOptions) error {
	for _, id := range opts.exclude {
		if err := s.SetIncluded(id, false); err != nil {
			return fmt.Errorf("--exclude %d: %w", id, err)
		}
	}

	for _, raw := range opts.overrides {
		id, categoryID, err := parseOverride(raw, s.Categories())
		if err != nil {
			return err
		}
		if err := s.OverrideCategory(id, categoryID); err != nil {
			return fmt.Errorf("--set-category %s: %w", raw, err)
		}
	}
	return nil
}

// parseOverride reads "row=category". An empty category clears the assignment.
func parseOverride(raw string, categories []categorization.Category) (int, uuid.UUID, error) {
	rowPart, ref, ok := strings.Cut(raw, "=")
	if !ok {
		return 0, uuid.Nil, fmt.Errorf("%w: %q, want row=category", ErrInvalidOverride, raw)
	}

	id, err := strconv.Atoi(strings.TrimSpace(rowPart))
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("%w: row %q is not a number", ErrInvalidOverride, rowPart)
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return id, uuid.Nil, nil
	}
	if categoryID, err := uuid.Parse(ref); err == nil {
		return id, categoryID, nil
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name(), ref) {
			return id, c.ID, nil
		}
	}
	return 0, uuid.Nil, fmt.Errorf("%w: %q", session.ErrUnknownCategory, ref)
}

// loadSnapshotFiles reads categories and history exports. Malformed rows are logged
// and skipped.
func loadSnapshotFiles(categoriesPath, historyPath string, logger *slog.Logger) (session.Snapshot, error) {
	var snapshot session.Snapshot
	p := parser.NewParser(parser.DefaultConfig())

	if categoriesPath != "" {
		f, err := os.Open(categoriesPath)
		if err != nil {
			return snapshot, fmt.Errorf("failed to open categories: %w", err)
		}
		categories, rowErrs, err := p.ParseCategories(f)
		f.Close()
		if err != nil {
			return snapshot, fmt.Errorf("failed to load categories from %s: %w", categoriesPath, err)
		}
		logParseErrors(logger, categoriesPath, rowErrs)
		snapshot.Categories = categories
	}

	if historyPath != "" {
		f, err := os.Open(historyPath)
		if err != nil {
			return snapshot, fmt.Errorf("failed to open history: %w", err)
		}
		history, rowErrs, err := p.ParseHistory(f, snapshot.Categories)
		f.Close()
		if err != nil {
			return snapshot, fmt.Errorf("failed to load history from %s: %w", historyPath, err)
		}
		logParseErrors(logger, historyPath, rowErrs)
		snapshot.History = history
	}

	logger.Debug("snapshot loaded from files",
		"categories", len(snapshot.Categories),
		"history", len(snapshot.History),
	)
	return snapshot, nil
}

func logParseErrors(logger *slog.Logger, path string, errs []parser.ParseError) {
	for _, e := range errs {
		logger.Warn("skipping malformed row",
			"file", path,
			"row", e.Row,
			"column", e.Column,
			"error", e.Message,
		)
	}
}
