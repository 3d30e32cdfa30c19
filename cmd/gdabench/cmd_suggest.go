package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spboyer/gdabench/internal/llm"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/suggest"
)

var (
	suggestMax   int
	suggestModel string
	suggestSave  bool
)

func newSuggestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <trial-id>",
		Short: "Suggest assertions for a completed trial",
		Long: `Analyze a completed trial's trace with an LLM and propose new assertions.

Suggestions that duplicate the trial's existing assertions are dropped. By
default the YAML is printed to stdout; use --save to store the suggestions for
later review in the web UI.`,
		Args: cobra.ExactArgs(1),
		RunE: suggestCommandE,
	}

	cmd.Flags().IntVar(&suggestMax, "max", 5, "Maximum number of suggestions")
	cmd.Flags().StringVar(&suggestModel, "model", "", "Model to use for suggestions (default: gemini-2.0-flash)")
	cmd.Flags().BoolVar(&suggestSave, "save", false, "Store the suggestions instead of just printing them")

	return cmd
}

func suggestCommandE(cmd *cobra.Command, args []string) error {
	trialID := args[0]
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	trial, err := st.GetTrial(ctx, trialID)
	if err != nil {
		return fmt.Errorf("failed to load trial %s: %w", trialID, err)
	}

	client, err := llm.NewGeminiClient(ctx, llm.WithModel(suggestModel))
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	suggester := suggest.New(client, suggest.WithMaxSuggestions(suggestMax))
	suggestions, err := suggester.Generate(ctx, trial)
	if err != nil {
		return fmt.Errorf("suggestion generation failed: %w", err)
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No new assertions suggested.") //nolint:errcheck
		return nil
	}

	if suggestSave {
		if err := st.SaveSuggestions(ctx, suggestions); err != nil {
			return fmt.Errorf("failed to save suggestions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d suggestion(s) for trial %s\n", len(suggestions), trialID) //nolint:errcheck
		return nil
	}

	return printSuggestionsYAML(cmd, suggestions)
}

func printSuggestionsYAML(cmd *cobra.Command, suggestions []models.SuggestedAssertion) error {
	// Print in the shape an asserts file expects, so output can be pasted
	// straight into a suite example.
	doc := assertsFile{}
	for _, s := range suggestions {
		doc.Asserts = append(doc.Asserts, s.Assertion)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, s := range suggestions {
		if s.Rationale != "" {
			fmt.Fprintf(out, "# %s: %s\n", s.Assertion.Describe(), s.Rationale) //nolint:errcheck
		}
	}
	fmt.Fprintf(out, "%s", data) //nolint:errcheck
	return nil
}
