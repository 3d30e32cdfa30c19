package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spboyer/gdabench/internal/models"
)

var runsLimit int

// runRow pairs a run with its derived aggregate for listing.
type runRow struct {
	run models.Run
	agg models.RunAggregate
}

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List run history, newest first",
		Args:  cobra.NoArgs,
		RunE:  runsCommandE,
	}

	cmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	return cmd
}

func runsCommandE(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs yet. Start one with: gdabench run <agent-id> <suite-id>") //nolint:errcheck
		return nil
	}

	rows := make([]runRow, 0, len(runs))
	for _, run := range runs {
		trials, err := st.ListTrials(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to load trials for run %s: %w", run.ID, err)
		}
		rows = append(rows, runRow{run: run, agg: models.Aggregate(trials)})
	}

	printRunsTable(cmd.OutOrStdout(), rows)
	return nil
}
