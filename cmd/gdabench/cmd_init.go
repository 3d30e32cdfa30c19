package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/wizard"
)

const sampleSuiteYAML = `id: sample-suite
name: Sample Suite
description: Starter benchmark suite. Replace the example with real questions.
examples:
  - id: total-revenue
    question: What was the total revenue last quarter?
    asserts:
      - type: TEXT_CONTAINS
        value: revenue
        weight: 1
      - type: DURATION_MAX_MS
        value: 30000
        weight: 0
`

const initGitignore = `gdabench.db
*.db
`

const initReadme = `# gdabench workspace

Register the agent and load the suite:

    gdabench agent add agent.yaml
    gdabench suite add suite.yaml

Run the benchmark and browse results:

    gdabench run <agent-id> sample-suite
    gdabench serve
`

func newInitCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a benchmark workspace",
		Long: `Initialize a benchmark workspace.

Creates an agent.yaml definition, a sample suite.yaml, a .gitignore for the
harness database, and a README.

Use --interactive to run a guided form that collects the agent's project,
location, resource id, and datasource configuration.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided agent setup form")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	agent := defaultAgentScaffold()
	if interactive {
		collected, err := wizard.RunAgentWizard(cmd.InOrStdin(), cmd.OutOrStdout(), "")
		if err != nil {
			return err
		}
		agent = collected
	}

	agentData, err := yaml.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to render agent.yaml: %w", err)
	}

	out := cmd.OutOrStdout()
	files := []struct {
		name    string
		content []byte
	}{
		{"agent.yaml", agentData},
		{"suite.yaml", []byte(sampleSuiteYAML)},
		{".gitignore", []byte(initGitignore)},
		{"README.md", []byte(initReadme)},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "  %s (exists, skipped)\n", path) //nolint:errcheck
			continue
		}
		if err := os.WriteFile(path, f.content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(out, "  %s\n", path) //nolint:errcheck
	}

	fmt.Fprintln(out, "\nWorkspace created. Next steps:")               //nolint:errcheck
	fmt.Fprintln(out, "  1. Edit agent.yaml with your agent's details") //nolint:errcheck
	fmt.Fprintln(out, "  2. gdabench agent add agent.yaml")             //nolint:errcheck
	fmt.Fprintln(out, "  3. gdabench suite add suite.yaml")             //nolint:errcheck
	return nil
}

func defaultAgentScaffold() *models.Agent {
	return &models.Agent{
		ID:              "my-agent",
		DisplayName:     "My Data Agent",
		ProjectID:       "my-gcp-project",
		Location:        "global",
		AgentResourceID: "my_data_agent",
		Datasource: models.DatasourceConfig{
			Type:      models.DatasourceBigQuery,
			ProjectID: "my-gcp-project",
			DatasetID: "my_dataset",
		},
	}
}
