package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spboyer/gdabench/internal/compare"
)

var (
	compareEpsilon      float64
	compareOutputFormat string
)

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <base-run-id> <challenger-run-id>",
		Short: "Compare two runs and surface regressions",
		Long: `Compare two runs case by case.

Trials are aligned by the example they were frozen from, so the comparison
survives suite edits between runs. Score movements within the epsilon are
reported as STABLE.`,
		Args: cobra.ExactArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().Float64Var(&compareEpsilon, "epsilon", compare.DefaultScoreEpsilon, "Minimum score delta treated as a real change")
	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

func compareCommandE(cmd *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", compareOutputFormat)
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	engine := compare.NewEngine(st, compare.WithScoreEpsilon(compareEpsilon))
	result, err := engine.CompareRuns(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if compareOutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printCompareReport(out, result)
	}

	if result.RegressionsCount > 0 {
		return &TestFailureError{Message: fmt.Sprintf("%d regression(s) found", result.RegressionsCount)}
	}
	return nil
}
