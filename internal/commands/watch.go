package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-import/internal/domain/import/inbox"
	"github.com/FACorreiaa/statement-import/internal/domain/import/session"
	"github.com/FACorreiaa/statement-import/pkg/config"
	"github.com/FACorreiaa/statement-import/pkg/cron"
)

// processedDir is the archive under the inbox when IMPORT_ARCHIVE_PATH is unset.
const processedDir = "processed"

type watchOptions struct {
	stagingOptions
	inboxDir  string
	userID    string
	accountID string
	schedule  string
	once      bool
}

func newWatchCommand(global *globalOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Commit every statement dropped into an inbox directory",
		Long: "Commit every statement dropped into an inbox directory, accepting the suggested\n" +
			"categories. Imported files move to the archive, rejected ones to failed/ or\n" +
			"duplicates/ under the inbox.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, global, &opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.inboxDir, "inbox", "", "directory to watch (required)")
	_ = cmd.MarkFlagRequired("inbox")
	flags.StringVar(&opts.userID, "user", "", "owner user id (required)")
	_ = cmd.MarkFlagRequired("user")
	flags.StringVar(&opts.accountID, "account", "", "destination account id (required)")
	_ = cmd.MarkFlagRequired("account")
	flags.StringVar(&opts.schedule, "schedule", "", "cron spec or descriptor (default IMPORT_WATCH_SCHEDULE)")
	flags.BoolVar(&opts.once, "once", false, "drain the inbox once and exit")
	opts.bindSources(cmd)

	return cmd
}

func runWatch(cmd *cobra.Command, global *globalOptions, opts *watchOptions) error {
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

	account, err := opts.account(cfg)
	if err != nil {
		return err
	}

	var processor *inbox.Processor
	drain := func(ctx context.Context) error {
		res, err := processor.Run(ctx)
		if err != nil {
			return err
		}
		if res != (inbox.Result{}) {
			logger.Info("inbox drained",
				"committed", res.Committed,
				"rows", res.Rows,
				"duplicates", res.Duplicates,
				"failed", res.Failed,
			)
		}
		return nil
	}

	var scheduler *cron.Scheduler
	if !opts.once {
		schedule := opts.schedule
		if schedule == "" {
			schedule = cfg.Import.WatchSchedule
		}
		scheduler = cron.NewScheduler(logger)
		if err := scheduler.Add(schedule, "inbox", drain); err != nil {
			return err
		}
	}

	archivePath := cfg.Import.ArchivePath
	if archivePath == "" {
		archivePath = filepath.Join(opts.inboxDir, processedDir)
	}

	ctx := cmd.Context()
	deps, err := InitDependencies(ctx, cfg, logger, dependencyOptions{
		vocabularyPath: opts.vocabularyPath,
		withDatabase:   true,
		withArchive:    true,
		archivePath:    archivePath,
	})
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	snapshots := func(ctx context.Context) (session.Snapshot, error) {
		return deps.Repository.LoadSnapshot(ctx, userID, cfg.Import.HistoryLimit)
	}
	if opts.categoriesPath != "" {
		snapshots = func(context.Context) (session.Snapshot, error) {
			return loadSnapshotFiles(opts.categoriesPath, opts.historyPath, logger)
		}
	}

	processor, err = inbox.NewProcessor(inbox.Config{
		Dir:      opts.inboxDir,
		MaxBytes: cfg.Import.MaxFileBytes,
		UserID:   userID,
		Account:  account,
	}, deps.Pipeline, snapshots, func(importID uuid.UUID) session.Committer {
		return deps.Repository.Committer(userID, accountID, importID)
	}, deps.Archive, logger)
	if err != nil {
		return err
	}
	processor.WithMetrics(deps.Metrics)

	if opts.once {
		res, err := processor.Run(ctx)
		if err != nil {
			return err
		}
		renderInboxResult(cmd.OutOrStdout(), res)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching inbox", "dir", opts.inboxDir, "archive", archivePath)
	scheduler.RunNow(ctx)
	scheduler.Start(ctx)

	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}
