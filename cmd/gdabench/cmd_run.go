package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/spboyer/gdabench/internal/asserts"
	"github.com/spboyer/gdabench/internal/gdaclient"
	"github.com/spboyer/gdabench/internal/lifecycle"
	"github.com/spboyer/gdabench/internal/llm"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/store"
	"github.com/spboyer/gdabench/internal/suggest"
)

var (
	runWorkers    int
	runJudgeModel string
	runFormat     string
	runOutputPath string
	runNoSuggest  bool
	runEndpoint   string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <agent-id> <suite-id>",
		Short: "Run a benchmark suite against an agent",
		Long: `Run a benchmark suite against a registered agent.

The suite is frozen into an immutable snapshot at run creation, one trial is
created per example, and trials execute concurrently up to the worker limit.
Ctrl-C cancels the run cooperatively: in-flight trials finish, pending trials
are cancelled.`,
		Args: cobra.ExactArgs(2),
		RunE: runCommandE,
	}

	cmd.Flags().IntVar(&runWorkers, "workers", 4, "Number of concurrent trial workers")
	cmd.Flags().StringVar(&runJudgeModel, "judge-model", "", "Model for AI_JUDGE assertions and suggestions (default: gemini-2.0-flash)")
	cmd.Flags().StringVar(&runFormat, "format", "default", "Output format: default, github-comment")
	cmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "Output JSON file for trial results")
	cmd.Flags().BoolVar(&runNoSuggest, "no-suggest", false, "Skip assertion suggestion generation")
	cmd.Flags().StringVar(&runEndpoint, "endpoint", "", "Override the Gemini Data Analytics API endpoint")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	agentID, suiteID := args[0], args[1]
	if runFormat != "default" && runFormat != "github-comment" {
		return fmt.Errorf("unsupported format %q: must be default or github-comment", runFormat)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	var clientOpts []gdaclient.Option
	if runEndpoint != "" {
		clientOpts = append(clientOpts, gdaclient.WithEndpoint(runEndpoint))
	}
	agents, err := gdaclient.New(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create agent client: %w", err)
	}

	manager := buildManager(ctx, st, agents)

	run, err := manager.CreateRun(ctx, agentID, suiteID)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	out := cmd.OutOrStdout()
	if runFormat == "default" {
		fmt.Fprintf(out, "Run %s created (%s / %s)\n\n", run.ID, agentID, suiteID) //nolint:errcheck
		manager.OnProgress(func(ev lifecycle.ProgressEvent) {
			switch ev.EventType {
			case lifecycle.EventTrialStart:
				fmt.Fprintf(out, "▶ [%d/%d] %s\n", ev.TrialNum, ev.TotalTrials, truncate(ev.Question, 70)) //nolint:errcheck
			case lifecycle.EventTrialComplete:
				icon := trialStatusIcon(ev.Status)
				fmt.Fprintf(out, "%s [%d/%d] %s  score=%s  %s\n", icon, ev.TrialNum, ev.TotalTrials, //nolint:errcheck
					truncate(ev.Question, 60), formatScore(ev.Score), formatDuration(ev.DurationMS))
			}
		})
	}

	run, err = manager.ExecuteRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("run execution failed: %w", err)
	}

	trials, err := st.ListTrials(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load trials: %w", err)
	}
	agg := models.Aggregate(trials)

	if runOutputPath != "" {
		if err := writeRunJSON(runOutputPath, run, trials, agg); err != nil {
			return err
		}
	}

	switch runFormat {
	case "github-comment":
		fmt.Fprint(out, formatGitHubComment(run, trials, agg)) //nolint:errcheck
	default:
		fmt.Fprintln(out) //nolint:errcheck
		printRunReport(out, run, trials, agg)
	}

	if run.Status == models.RunCancelled {
		return &TestFailureError{Message: fmt.Sprintf("run %s was cancelled", run.ID)}
	}
	if agg.Failed > 0 {
		return &TestFailureError{Message: fmt.Sprintf("%d of %d trials failed", agg.Failed, agg.Total)}
	}
	if agg.Accuracy != nil && *agg.Accuracy < 1 {
		return &TestFailureError{Message: fmt.Sprintf("accuracy %.1f%%: some assertions failed", *agg.Accuracy*100)}
	}
	return nil
}

// buildManager wires the lifecycle manager. The LLM client is best-effort:
// without credentials, AI_JUDGE assertions report errors and suggestion
// generation is disabled, but plain suites still run.
func buildManager(ctx context.Context, st store.Store, agents gdaclient.Client) *lifecycle.Manager {
	engineOpts := []asserts.Option{}
	managerOpts := []lifecycle.Option{lifecycle.WithWorkers(runWorkers)}

	judge, err := llm.NewGeminiClient(ctx, llm.WithModel(runJudgeModel))
	if err != nil {
		slog.Warn("LLM client unavailable, AI_JUDGE and suggestions disabled", "error", err)
	} else {
		engineOpts = append(engineOpts, asserts.WithLLM(judge))
		if !runNoSuggest {
			managerOpts = append(managerOpts, lifecycle.WithSuggester(suggest.New(judge)))
		}
	}

	return lifecycle.NewManager(st, agents, asserts.NewEngine(engineOpts...), managerOpts...)
}

// runOutput is the JSON shape written by --output.
type runOutput struct {
	Run       *models.Run        `json:"run"`
	Aggregate models.RunAggregate `json:"aggregate"`
	Trials    []models.Trial     `json:"trials"`
}

func writeRunJSON(path string, run *models.Run, trials []models.Trial, agg models.RunAggregate) error {
	data, err := json.MarshalIndent(runOutput{Run: run, Aggregate: agg, Trials: trials}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
