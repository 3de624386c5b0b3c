package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-import/pkg/config"
)

func newPreviewCommand(global *globalOptions) *cobra.Command {
	var opts stagingOptions

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Stage a statement and print the review table without saving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, global, &opts)
		},
	}

	opts.bind(cmd)

	return cmd
}

func runPreview(cmd *cobra.Command, global *globalOptions, opts *stagingOptions) error {
	ctx := cmd.Context()

	cfg, err := config.Load(global.envFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	deps, err := InitDependencies(ctx, cfg, logger, dependencyOptions{vocabularyPath: opts.vocabularyPath})
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	content, err := opts.read(cfg)
	if err != nil {
		return err
	}

	snapshot, err := loadSnapshotFiles(opts.categoriesPath, opts.historyPath, logger)
	if err != nil {
		return err
	}

	s, err := stage(ctx, cmd, deps, opts, content, snapshot, nil)
	if err != nil {
		return err
	}
	defer func() { _ = s.Cancel() }()

	out := cmd.OutOrStdout()
	if err := renderPreview(out, s, filepath.Base(opts.file)); err != nil {
		return err
	}
	return renderExplain(out, s, opts.explain)
}
