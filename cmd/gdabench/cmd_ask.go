package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/spboyer/gdabench/internal/gdaclient"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/spinner"
)

var (
	askAssertsPath string
	askShowTrace   bool
)

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <agent-id> <question>",
		Short: "Ask an agent a single question without recording a run",
		Long: `Ask a registered agent one question as an ephemeral trial.

Nothing is persisted. Use --asserts to evaluate the response against a YAML
assertion list.`,
		Args: cobra.ExactArgs(2),
		RunE: askCommandE,
	}

	cmd.Flags().StringVar(&askAssertsPath, "asserts", "", "YAML file with assertions to evaluate against the response")
	cmd.Flags().BoolVar(&askShowTrace, "trace", false, "Print the raw agent trace")

	return cmd
}

func askCommandE(cmd *cobra.Command, args []string) error {
	agentID, question := args[0], args[1]
	ctx := cmd.Context()

	var assertions []models.Assertion
	if askAssertsPath != "" {
		var err error
		assertions, err = loadAssertsFile(askAssertsPath)
		if err != nil {
			return err
		}
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	agents, err := gdaclient.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create agent client: %w", err)
	}

	manager := buildManager(ctx, st, agents)

	stop := func() {}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		stop = spinner.Start(os.Stderr, "waiting for agent")
	}
	trial, err := manager.ExecuteEphemeral(ctx, agentID, question, assertions)
	stop()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askShowTrace {
		data, err := yaml.Marshal(trial.TraceResults)
		if err == nil {
			fmt.Fprintf(out, "--- trace ---\n%s-------------\n", data) //nolint:errcheck
		}
	}

	if trial.Status == models.TrialFailed {
		fmt.Fprintf(out, "❌ %s (failed at %s)\n", trial.ErrorMessage, trial.FailedStage) //nolint:errcheck
		return &TestFailureError{Message: "trial failed"}
	}

	fmt.Fprintf(out, "%s\n\n", trial.OutputText)                                                     //nolint:errcheck
	fmt.Fprintf(out, "  duration %s, first response %s\n", formatDuration(trial.DurationMS), formatDuration(trial.TTFRMS)) //nolint:errcheck

	if len(trial.AssertionResults) > 0 {
		fmt.Fprintln(out) //nolint:errcheck
		printAssertionResults(out, trial.AssertionResults)
		if failed := countFailedAccuracy(trial.AssertionResults); failed > 0 {
			return &TestFailureError{Message: fmt.Sprintf("%d assertion(s) failed", failed)}
		}
	}
	return nil
}

func printAssertionResults(out io.Writer, results []models.AssertionResult) {
	for _, r := range results {
		icon := "✅"
		if !r.Passed {
			icon = "❌"
		}
		fmt.Fprintf(out, "  %s %s  score=%.2f", icon, r.Assertion.Describe(), r.Score) //nolint:errcheck
		if r.Reasoning != "" {
			fmt.Fprintf(out, "  (%s)", truncate(r.Reasoning, 60)) //nolint:errcheck
		}
		if r.ErrorMessage != "" {
			fmt.Fprintf(out, "  error: %s", r.ErrorMessage) //nolint:errcheck
		}
		fmt.Fprintln(out) //nolint:errcheck
	}
}

func countFailedAccuracy(results []models.AssertionResult) int {
	n := 0
	for _, r := range results {
		if r.Assertion.IsAccuracy() && !r.Passed {
			n++
		}
	}
	return n
}

// assertsFile is the YAML shape accepted by --asserts and the eval command.
type assertsFile struct {
	Asserts []models.Assertion `yaml:"asserts"`
}

func loadAssertsFile(path string) ([]models.Assertion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var f assertsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(f.Asserts) == 0 {
		return nil, fmt.Errorf("%s: no asserts defined", path)
	}
	known := models.KnownAssertKinds()
	for i := range f.Asserts {
		if !slices.Contains(known, f.Asserts[i].Kind) {
			return nil, fmt.Errorf("%s: asserts[%d]: unknown assertion type %q", path, i, f.Asserts[i].Kind)
		}
	}
	return f.Asserts, nil
}
