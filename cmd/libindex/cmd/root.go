// Package cmd provides the CLI commands for libindex.
package cmd

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/designtools/libindex/internal/logging"
)

var (
	libraryFlag  string
	logLevelFlag string
	debugFlag    bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the libindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "libindex",
		Short: "Incremental vector indexer for design libraries",
		Long: `libindex builds a searchable vector index over a design library:
HTML pages, stylesheets, and framework components are split into
structural chunks, embedded via a local Ollama instance, and stored
for similarity search with framework and category filters.

Runs are incremental: only files whose content changed since the last
run are re-embedded.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("libindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&libraryFlag, "library", "l", ".", "Path to the design library root")
	cmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the default slog logger. Stderr mirroring is
// suppressed when stderr is not a terminal, so piping output does not
// interleave JSON log records into it.
func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugFlag {
		cfg = logging.DebugConfig()
	}
	if logLevelFlag != "" {
		cfg.Level = logLevelFlag
	}
	cfg.WriteToStderr = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		// Fall back to stderr-only logging rather than refusing to run
		slog.Warn("file logging unavailable", slog.String("error", err.Error()))
		return nil
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
