package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spboyer/gdabench/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "gdabench.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAgentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &models.Agent{
		ID:              "agent-1",
		DisplayName:     "Sales Agent",
		ProjectID:       "proj",
		Location:        "us-central1",
		AgentResourceID: "sales",
		Datasource: models.DatasourceConfig{
			Type:      models.DatasourceBigQuery,
			ProjectID: "proj",
			DatasetID: "sales",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.CreateAgent(ctx, agent))

	got, err := s.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Equal(t, agent.DisplayName, got.DisplayName)
	require.Equal(t, models.DatasourceBigQuery, got.Datasource.Type)
	require.Equal(t, "sales", got.Datasource.DatasetID)

	_, err = s.GetAgent(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRunWithTrialsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{
		ID:              "run-1",
		AgentID:         "agent-1",
		SuiteSnapshotID: "snap-1",
		OriginalSuiteID: "suite-1",
		Status:          models.RunPending,
		CreatedAt:       time.Now().UTC(),
	}
	trials := []models.Trial{
		{
			ID:                "trial-1",
			RunID:             "run-1",
			OriginalExampleID: "ex-1",
			Question:          "total revenue?",
			Status:            models.TrialPending,
			Asserts: []models.Assertion{
				{Kind: models.AssertTextContains, Value: "revenue", Weight: 1},
			},
		},
		{ID: "trial-2", RunID: "run-1", OriginalExampleID: "ex-2", Status: models.TrialPending},
	}
	require.NoError(t, s.CreateRun(ctx, run, trials))

	got, err := s.ListTrials(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "total revenue?", got[0].Question)
	require.Len(t, got[0].Asserts, 1)
	require.Equal(t, models.AssertTextContains, got[0].Asserts[0].Kind)
}

func TestTraceBlobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{ID: "run-1", Status: models.RunRunning, CreatedAt: time.Now().UTC()}
	trial := models.Trial{ID: "trial-1", RunID: "run-1", Status: models.TrialPending}
	require.NoError(t, s.CreateRun(ctx, run, []models.Trial{trial}))

	trial.Status = models.TrialCompleted
	trial.TraceResults = []map[string]any{
		{"timestamp": "2026-01-01T00:00:00Z", "system_message": map[string]any{
			"text": map[string]any{"parts": []any{"hello"}},
		}},
	}
	trial.AssertionResults = []models.AssertionResult{
		{Assertion: models.Assertion{Kind: models.AssertTextContains, Weight: 1}, Passed: true, Score: 1},
	}
	require.NoError(t, s.UpdateTrial(ctx, &trial))

	got, err := s.GetTrial(ctx, "trial-1")
	require.NoError(t, err)
	require.Len(t, got.TraceResults, 1)
	require.Equal(t, "2026-01-01T00:00:00Z", got.TraceResults[0]["timestamp"])
	require.Len(t, got.AssertionResults, 1)
	require.True(t, got.AssertionResults[0].Passed)
}

func TestClaimTrialIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{ID: "run-1", Status: models.RunRunning, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateRun(ctx, run, []models.Trial{
		{ID: "trial-1", RunID: "run-1", Status: models.TrialPending},
	}))

	claimed, err := s.ClaimTrial(ctx, "trial-1")
	require.NoError(t, err)
	require.True(t, claimed)

	// second claim loses
	claimed, err = s.ClaimTrial(ctx, "trial-1")
	require.NoError(t, err)
	require.False(t, claimed)

	got, err := s.GetTrial(ctx, "trial-1")
	require.NoError(t, err)
	require.Equal(t, models.TrialRunning, got.Status)
	require.NotNil(t, got.StartedAt)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &models.SuiteSnapshot{
		ID:              "snap-1",
		OriginalSuiteID: "suite-1",
		Name:            "smoke",
		Examples: []models.ExampleSnapshot{
			{ID: "es-1", OriginalExampleID: "ex-1", Question: "q1"},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateSnapshot(ctx, snap))

	got, err := s.GetSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	require.Equal(t, "suite-1", got.OriginalSuiteID)
	require.Len(t, got.Examples, 1)
	require.Equal(t, "ex-1", got.Examples[0].OriginalExampleID)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := &models.Run{ID: id, Status: models.RunCompleted, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.CreateRun(ctx, run, nil))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-c", runs[0].ID)
	require.Equal(t, "run-b", runs[1].ID)
}

func TestSuggestionAcceptance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sugg := models.SuggestedAssertion{
		ID:      "sugg-1",
		TrialID: "trial-1",
		Assertion: models.Assertion{
			Kind:   models.AssertTextContains,
			Value:  "42",
			Weight: 1,
		},
		Rationale: "final response names the total",
	}
	require.NoError(t, s.SaveSuggestions(ctx, []models.SuggestedAssertion{sugg}))

	require.NoError(t, s.SetSuggestionAccepted(ctx, "sugg-1", true))

	got, err := s.ListSuggestions(ctx, "trial-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Accepted)
	require.Equal(t, models.AssertTextContains, got[0].Assertion.Kind)

	require.ErrorIs(t, s.SetSuggestionAccepted(ctx, "missing", true), ErrNotFound)
}
