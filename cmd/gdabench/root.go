package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/spboyer/gdabench/internal/store"
)

var version = "dev"

// dbPath is where the harness keeps its SQLite database. Every command that
// touches persisted state reads it.
var dbPath string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gdabench",
		Short: "gdabench - evaluation harness for conversational data agents",
		Long: `gdabench evaluates Gemini Data Analytics agents against suites of
natural-language questions with typed assertions.

It runs benchmark suites against registered agents, records every trial's
trace and assertion results, and compares runs to surface regressions.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "gdabench.db", "Path to the harness database")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newAgentCommand())
	cmd.AddCommand(newSuiteCommand())
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newRunsCommand())
	cmd.AddCommand(newAskCommand())
	cmd.AddCommand(newEvalCommand())
	cmd.AddCommand(newSuggestCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

func openStore() (store.Store, error) {
	return store.OpenSQLite(dbPath)
}
