package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spboyer/gdabench/internal/dataset"
	"github.com/spboyer/gdabench/internal/models"
)

func newSuiteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Manage benchmark suites",
	}

	cmd.AddCommand(newSuiteAddCommand())
	cmd.AddCommand(newSuiteImportCommand())
	cmd.AddCommand(newSuiteListCommand())

	return cmd
}

func newSuiteImportCommand() *cobra.Command {
	var suiteID, suiteName string

	cmd := &cobra.Command{
		Use:   "import <questions.csv>",
		Short: "Import a suite from a CSV question bank",
		Long: `Import a suite from a CSV question bank.

The first row names the columns. question is required; id, text_contains,
query_contains, row_count, chart_type, judge, and max_duration_ms are
optional and map to assertions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := dataset.SuiteFromCSV(args[0], suiteID, suiteName)
			if err != nil {
				return fmt.Errorf("failed to import suite: %w", err)
			}

			st, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close() //nolint:errcheck

			if err := st.SaveSuite(cmd.Context(), suite); err != nil {
				return fmt.Errorf("failed to save suite: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported suite %s (%d examples)\n", suite.ID, len(suite.Examples)) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&suiteID, "id", "", "Suite id (required)")
	cmd.Flags().StringVar(&suiteName, "name", "", "Suite display name (default: the id)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newSuiteAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <suite.yaml>",
		Short: "Load a suite definition from a YAML file",
		Long: `Load a suite definition from a YAML file.

The file is validated against the suite schema before it is stored. Loading a
suite with an existing id replaces it; runs already created keep their frozen
snapshot and are unaffected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := models.LoadSuiteFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to load suite: %w", err)
			}

			st, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close() //nolint:errcheck

			if err := st.SaveSuite(cmd.Context(), suite); err != nil {
				return fmt.Errorf("failed to save suite: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved suite %s (%d examples)\n", suite.ID, len(suite.Examples)) //nolint:errcheck
			return nil
		},
	}
}

func newSuiteListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close() //nolint:errcheck

			suites, err := st.ListSuites(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list suites: %w", err)
			}
			if len(suites) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suites stored. Add one with: gdabench suite add <suite.yaml>") //nolint:errcheck
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  %s  %s  %s\n", padRight("ID", 20), padRight("Examples", 8), "Name") //nolint:errcheck
			for _, s := range suites {
				fmt.Fprintf(out, "  %s  %s  %s\n", //nolint:errcheck
					padRight(truncate(s.ID, 20), 20),
					padRight(fmt.Sprintf("%d", len(s.Examples)), 8),
					s.Name)
			}
			return nil
		},
	}
}
