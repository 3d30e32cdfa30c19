package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/spboyer/gdabench/internal/asserts"
	"github.com/spboyer/gdabench/internal/compare"
	"github.com/spboyer/gdabench/internal/gdaclient"
	"github.com/spboyer/gdabench/internal/lifecycle"
	"github.com/spboyer/gdabench/internal/webserver"
)

var (
	servePort      int
	serveNoBrowser bool
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the results browser and REST API",
		Long: `Start the local web server over the harness database.

The API exposes run history, trial detail with timeline phases, offline
re-evaluation, suggestion review, and run comparison. See / for the endpoint
listing.`,
		Args: cobra.NoArgs,
		RunE: serveCommandE,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 3000, "Port to listen on")
	cmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "Do not open the browser automatically")

	return cmd
}

func serveCommandE(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	// The server only re-evaluates stored traces, so a missing agent client
	// is fine; runs are started from the CLI.
	var agents gdaclient.Client
	if c, err := gdaclient.New(ctx); err != nil {
		slog.Warn("agent client unavailable", "error", err)
	} else {
		agents = c
	}
	manager := lifecycle.NewManager(st, agents, asserts.NewEngine())

	srv, err := webserver.New(webserver.Config{
		Port:      servePort,
		NoBrowser: serveNoBrowser,
		Logger:    slog.Default(),
		Store:     st,
		Manager:   manager,
		Comparer:  compare.NewEngine(st),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.ListenAndServe(ctx)
}
