package commands

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-import/pkg/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type globalOptions struct {
	envFile string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:     "importer",
		Short:   "Stage, review and commit bank statement imports",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "environment file with importer settings")

	rootCmd.AddCommand(newPreviewCommand(&opts))
	rootCmd.AddCommand(newCommitCommand(&opts))
	rootCmd.AddCommand(newWatchCommand(&opts))

	return rootCmd
}

// newLogger writes to w, which is stderr in production so it never mixes with the table.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.Level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
