package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/spboyer/gdabench/internal/asserts"
	"github.com/spboyer/gdabench/internal/lifecycle"
	"github.com/spboyer/gdabench/internal/llm"
)

var evalJudgeModel string

func newEvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <trial-id> <asserts.yaml>",
		Short: "Re-evaluate a completed trial's stored trace against new assertions",
		Long: `Re-evaluate a completed trial against a new assertion list.

The trial's stored trace is evaluated as-is; the agent is not called and the
trial's recorded results are never modified.`,
		Args: cobra.ExactArgs(2),
		RunE: evalCommandE,
	}

	cmd.Flags().StringVar(&evalJudgeModel, "judge-model", "", "Model for AI_JUDGE assertions (default: gemini-2.0-flash)")

	return cmd
}

func evalCommandE(cmd *cobra.Command, args []string) error {
	trialID := args[0]
	ctx := cmd.Context()

	assertions, err := loadAssertsFile(args[1])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	manager := lifecycle.NewManager(st, nil, newEvalEngine(ctx))
	results, err := manager.EvaluateOffline(ctx, trialID, assertions)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	printAssertionResults(cmd.OutOrStdout(), results)
	if failed := countFailedAccuracy(results); failed > 0 {
		return &TestFailureError{Message: fmt.Sprintf("%d assertion(s) failed", failed)}
	}
	return nil
}

// newEvalEngine builds an assertion engine with a best-effort judge; offline
// evaluation of non-judge assertions works without LLM credentials.
func newEvalEngine(ctx context.Context) *asserts.Engine {
	judge, err := llm.NewGeminiClient(ctx, llm.WithModel(evalJudgeModel))
	if err != nil {
		slog.Warn("LLM client unavailable, AI_JUDGE assertions will report errors", "error", err)
		return asserts.NewEngine()
	}
	return asserts.NewEngine(asserts.WithLLM(judge))
}
