package commands

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-import/internal/domain/import/inbox"
	"github.com/FACorreiaa/statement-import/internal/domain/import/session"
	"github.com/FACorreiaa/statement-import/pkg/config"
	"github.com/FACorreiaa/statement-import/pkg/storage"
)

type commitOptions struct {
	stagingOptions
	userID    string
	accountID string
	force     bool
}

func newCommitCommand(global *globalOptions) *cobra.Command {
	var opts commitOptions

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Stage a statement and save the included rows to the ledger",
		Long: "Stage a statement and save the included rows to the ledger.\n\n" +
			"Categories and history are read from the database unless --categories is given.\n" +
			"When IMPORT_ARCHIVE_PATH is set the file is archived and a file already imported\n" +
			"for the same user is refused unless --force is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(cmd, global, &opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.userID, "user", "", "owner user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.accountID, "account", "", "destination account id (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().BoolVar(&opts.force, "force", false, "import even if the archive already holds this file")

	return cmd
}

func runCommit(cmd *cobra.Command, global *globalOptions, opts *commitOptions) error {
	ctx := cmd.Context()

	userID, err := uuid.Parse(opts.userID)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	accountID, err := uuid.Parse(opts.accountID)
	if err != nil {
		return fmt.Errorf("invalid --account: %w", err)
	}

	cfg, err := config.Load(global.envFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	deps, err := InitDependencies(ctx, cfg, logger, dependencyOptions{
		vocabularyPath: opts.vocabularyPath,
		withDatabase:   true,
		withArchive:    true,
	})
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	content, err := opts.read(cfg)
	if err != nil {
		return err
	}
	if err := checkArchive(ctx, deps, userID, content, opts.force); err != nil {
		return err
	}

	var snapshot session.Snapshot
	if opts.categoriesPath != "" {
		snapshot, err = loadSnapshotFiles(opts.categoriesPath, opts.historyPath, logger)
	} else {
		snapshot, err = deps.Repository.LoadSnapshot(ctx, userID, cfg.Import.HistoryLimit)
	}
	if err != nil {
		return err
	}

	importID := uuid.New()
	committer := deps.Repository.Committer(userID, accountID, importID)

	s, err := stage(ctx, cmd, deps, &opts.stagingOptions, content, snapshot, committer)
	if err != nil {
		return err
	}
	defer func() { _ = s.Cancel() }()

	out := cmd.OutOrStdout()
	if err := renderPreview(out, s, filepath.Base(opts.file)); err != nil {
		return err
	}
	if err := renderExplain(out, s, opts.explain); err != nil {
		return err
	}

	n, err := s.Commit(ctx)
	if err != nil {
		return err
	}

	logger.Info("import committed",
		"import_id", importID,
		"user_id", userID,
		"account_id", accountID,
		"rows", n,
	)
	renderCommitted(out, n, importID)

	if deps.Archive != nil {
		name := filepath.Base(opts.file)
		if _, err := deps.Archive.Save(ctx, userID, importID, name, n, bytes.NewReader(content)); err != nil {
			// The rows are in; only the copy is missing.
			logger.Error("failed to archive statement", "import_id", importID, "file", name, "error", err)
		}
	}
	return nil
}

// checkArchive refuses a file the user already imported, unless forced.
func checkArchive(ctx context.Context, deps *Dependencies, userID uuid.UUID, content []byte, force bool) error {
	if deps.Archive == nil {
		return nil
	}

	prev, found, err := deps.Archive.FindByChecksum(ctx, userID, storage.Checksum(content))
	if err != nil {
		return fmt.Errorf("failed to check archive: %w", err)
	}
	if !found {
		return nil
	}
	if !force {
		return fmt.Errorf("%w as %s on %s, use --force to import again",
			inbox.ErrAlreadyImported, prev.ImportID, prev.CreatedAt.Format(time.DateOnly))
	}

	deps.Logger.Warn("importing a statement that was already imported",
		"previous_import_id", prev.ImportID,
		"file", prev.Name,
	)
	return nil
}
