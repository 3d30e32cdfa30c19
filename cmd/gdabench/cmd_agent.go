package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spboyer/gdabench/internal/models"
)

func newAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage registered data agents",
	}

	cmd.AddCommand(newAgentAddCommand())
	cmd.AddCommand(newAgentListCommand())
	cmd.AddCommand(newAgentRemoveCommand())

	return cmd
}

func newAgentAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <agent.yaml>",
		Short: "Register an agent from a YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := loadAgentFile(args[0])
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close() //nolint:errcheck

			if err := st.CreateAgent(cmd.Context(), agent); err != nil {
				return fmt.Errorf("failed to save agent: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered agent %s (%s)\n", agent.ID, agent.ResourceName()) //nolint:errcheck
			return nil
		},
	}
}

func newAgentListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close() //nolint:errcheck

			agents, err := st.ListAgents(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list agents: %w", err)
			}
			if len(agents) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No agents registered. Add one with: gdabench agent add <agent.yaml>") //nolint:errcheck
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  %s  %s  %s\n", padRight("ID", 20), padRight("Datasource", 10), "Resource") //nolint:errcheck
			for _, a := range agents {
				fmt.Fprintf(out, "  %s  %s  %s\n", //nolint:errcheck
					padRight(truncate(a.ID, 20), 20),
					padRight(string(a.Datasource.Type), 10),
					a.ResourceName())
			}
			return nil
		},
	}
}

func newAgentRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <agent-id>",
		Short: "Remove a registered agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close() //nolint:errcheck

			if err := st.DeleteAgent(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to remove agent %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed agent %s\n", args[0]) //nolint:errcheck
			return nil
		},
	}
}

func loadAgentFile(path string) (*models.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var agent models.Agent
	if err := yaml.Unmarshal(data, &agent); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if agent.ID == "" {
		return nil, fmt.Errorf("%s: agent id is required", path)
	}
	if err := agent.ValidateForExecution(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &agent, nil
}
