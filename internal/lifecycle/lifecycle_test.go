package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/spboyer/gdabench/internal/asserts"
	"github.com/spboyer/gdabench/internal/gdaclient"
	"github.com/spboyer/gdabench/internal/gdaclient/gdaclientmock"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/store"
)

func newFixture(t *testing.T) (*store.SQLiteStore, *gdaclientmock.MockClient) {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctrl := gomock.NewController(t)
	return st, gdaclientmock.NewMockClient(ctrl)
}

func seedAgent(t *testing.T, st store.Store) *models.Agent {
	t.Helper()
	agent := &models.Agent{
		ID:              "agent-1",
		DisplayName:     "Sales Agent",
		ProjectID:       "proj",
		Location:        "us-central1",
		AgentResourceID: "sales",
		Datasource:      models.DatasourceConfig{Type: models.DatasourceBigQuery},
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, st.CreateAgent(context.Background(), agent))
	return agent
}

func seedSuite(t *testing.T, st store.Store, asserts ...models.Assertion) *models.Suite {
	t.Helper()
	suite := &models.Suite{
		ID:   "suite-1",
		Name: "smoke",
		Examples: []models.Example{
			{ID: "ex-1", Question: "What is total revenue?", Asserts: asserts},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.SaveSuite(context.Background(), suite))
	return suite
}

func revenueTrace() []map[string]any {
	return []map[string]any{
		{"timestamp": "2026-01-01T00:00:00Z", "system_message": map[string]any{
			"data": map[string]any{
				"generated_sql": "SELECT region, revenue FROM sales",
				"result": map[string]any{"data": []any{
					map[string]any{"region": "east", "revenue": 10},
					map[string]any{"region": "west", "revenue": 20},
					map[string]any{"region": "south", "revenue": 12},
				}},
			},
		}},
		{"timestamp": "2026-01-01T00:00:02Z", "system_message": map[string]any{
			"text": map[string]any{"text_type": "FINAL", "parts": []any{"Total revenue was $42."}},
		}},
	}
}

func TestCreateRunFreezesSuite(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	suite := seedSuite(t, st, models.Assertion{Kind: models.AssertTextContains, Value: "revenue", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return(`{"system_instruction": "be terse"}`, nil)

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)
	require.Equal(t, models.RunPending, run.Status)
	require.Equal(t, "suite-1", run.OriginalSuiteID)
	require.JSONEq(t, `{"system_instruction": "be terse"}`, run.AgentContextSnapshot)

	// Editing the live suite must not affect the frozen trials.
	suite.Examples[0].Question = "changed"
	require.NoError(t, st.SaveSuite(ctx, suite))

	trials, err := st.ListTrials(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	require.Equal(t, "What is total revenue?", trials[0].Question)
	require.Equal(t, "ex-1", trials[0].OriginalExampleID)
	require.Equal(t, models.TrialPending, trials[0].Status)
}

func TestCreateRunAssignsSnapshotIDs(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertTextContains, Value: "revenue", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil).Times(2)

	m := NewManager(st, client, asserts.NewEngine())

	// Each run freezes its own snapshot on the shared database.
	run1, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)
	run2, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)

	require.NotEmpty(t, run1.SuiteSnapshotID)
	require.NotEmpty(t, run2.SuiteSnapshotID)
	require.NotEqual(t, run1.SuiteSnapshotID, run2.SuiteSnapshotID)

	snap, err := st.GetSnapshot(ctx, run1.SuiteSnapshotID)
	require.NoError(t, err)
	require.Equal(t, run1.SuiteSnapshotID, snap.ID)
	require.Equal(t, "suite-1", snap.OriginalSuiteID)
	require.Len(t, snap.Examples, 1)
	require.NotEmpty(t, snap.Examples[0].ID)

	trials, err := st.ListTrials(ctx, run1.ID)
	require.NoError(t, err)
	require.Equal(t, snap.Examples[0].ID, trials[0].ExampleSnapshotID)
}

func TestCreateRunContextFetchFailureIsTolerated(t *testing.T) {
	st, client := newFixture(t)
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertTextContains, Value: "x", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", errors.New("permission denied"))

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(context.Background(), "agent-1", "suite-1")
	require.NoError(t, err)
	require.Empty(t, run.AgentContextSnapshot)
}

func TestCreateRunLookerCredentialInvariant(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()

	agent := &models.Agent{
		ID:              "looker-agent",
		ProjectID:       "proj",
		Location:        "us-central1",
		AgentResourceID: "looker",
		Datasource:      models.DatasourceConfig{Type: models.DatasourceLooker},
	}
	require.NoError(t, st.CreateAgent(ctx, agent))
	seedSuite(t, st, models.Assertion{Kind: models.AssertTextContains, Value: "x", Weight: 1})

	m := NewManager(st, client, asserts.NewEngine())
	_, err := m.CreateRun(ctx, "looker-agent", "suite-1")
	require.Error(t, err)

	// fail fast: no run row was created
	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestExecuteRunEndToEnd(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertDataRowCount, Value: "3", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil)
	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), "What is total revenue?").
		Return(&gdaclient.AskResponse{
			Messages: revenueTrace(),
			Durations: gdaclient.Durations{
				Total:               2 * time.Second,
				TimeToFirstResponse: 500 * time.Millisecond,
			},
		}, nil)

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)

	run, err = m.ExecuteRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, run.Status)

	trials, err := st.ListTrials(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, trials, 1)

	trial := trials[0]
	require.Equal(t, models.TrialCompleted, trial.Status)
	require.Equal(t, "Total revenue was $42.", trial.OutputText)
	require.EqualValues(t, 2000, trial.DurationMS)
	require.EqualValues(t, 500, trial.TTFRMS)
	require.NotNil(t, trial.StartedAt)
	require.NotNil(t, trial.CompletedAt)

	require.Len(t, trial.AssertionResults, 1)
	require.True(t, trial.AssertionResults[0].Passed)
	require.EqualValues(t, 1, trial.AssertionResults[0].Score)

	score := trial.Score()
	require.NotNil(t, score)
	require.EqualValues(t, 1, *score)
}

func TestExecuteTrialAgentCallFailure(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertTextContains, Value: "x", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil)
	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("deadline exceeded"))

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)

	run, err = m.ExecuteRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, run.Status)

	trials, err := st.ListTrials(ctx, run.ID)
	require.NoError(t, err)
	trial := trials[0]
	require.Equal(t, models.TrialFailed, trial.Status)
	require.Equal(t, models.TrialExecuting, trial.FailedStage)
	require.Contains(t, trial.ErrorMessage, "deadline exceeded")
	require.NotEmpty(t, trial.ErrorTraceback)
	require.Empty(t, trial.AssertionResults)
}

func TestExecuteTrialInStreamAgentError(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertTextContains, Value: "x", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil)
	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&gdaclient.AskResponse{
			Messages: []map[string]any{
				{"timestamp": "2026-01-01T00:00:00Z", "system_message": map[string]any{
					"error": "query quota exhausted",
				}},
			},
			ErrorMessage: "query quota exhausted",
		}, nil)

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)

	_, err = m.ExecuteRun(ctx, run.ID)
	require.NoError(t, err)

	trials, err := st.ListTrials(ctx, run.ID)
	require.NoError(t, err)
	trial := trials[0]
	require.Equal(t, models.TrialFailed, trial.Status)
	require.Equal(t, models.TrialExecuting, trial.FailedStage)
	require.Contains(t, trial.ErrorMessage, "query quota exhausted")

	// the partial trace is kept, but assertions were never evaluated
	require.Len(t, trial.TraceResults, 1)
	require.Empty(t, trial.AssertionResults)
}

func TestEvaluateOfflineDoesNotMutateTrial(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertDataRowCount, Value: "3", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil)
	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&gdaclient.AskResponse{Messages: revenueTrace()}, nil)

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)
	_, err = m.ExecuteRun(ctx, run.ID)
	require.NoError(t, err)

	trials, err := st.ListTrials(ctx, run.ID)
	require.NoError(t, err)
	before := trials[0]

	newAsserts := []models.Assertion{
		{Kind: models.AssertQueryContains, Value: "from sales", Weight: 1},
		{Kind: models.AssertDataRowCount, Value: "99", Weight: 1},
	}
	for range 2 {
		results, err := m.EvaluateOffline(ctx, before.ID, newAsserts)
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.True(t, results[0].Passed)
		require.False(t, results[1].Passed)
	}

	after, err := st.GetTrial(ctx, before.ID)
	require.NoError(t, err)
	require.Equal(t, before.AssertionResults, after.AssertionResults)
	require.Equal(t, before.TraceResults, after.TraceResults)
	require.Equal(t, before.Status, after.Status)
}

func TestCancelRunMarksPendingTrials(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertTextContains, Value: "x", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil)

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)

	require.NoError(t, m.CancelRun(ctx, run.ID))

	_, err = m.ExecuteRun(ctx, run.ID)
	require.Error(t, err)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunCancelled, got.Status)

	trials, err := st.ListTrials(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.TrialCancelled, trials[0].Status)
}

func TestExecuteEphemeral(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)

	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), "What is total revenue?").
		Return(&gdaclient.AskResponse{Messages: revenueTrace()}, nil)

	m := NewManager(st, client, asserts.NewEngine())
	trial, err := m.ExecuteEphemeral(ctx, "agent-1", "What is total revenue?", []models.Assertion{
		{Kind: models.AssertTextContains, Value: "$42", Weight: 1},
	})
	require.NoError(t, err)
	require.Equal(t, models.TrialCompleted, trial.Status)
	require.Len(t, trial.AssertionResults, 1)
	require.True(t, trial.AssertionResults[0].Passed)

	// ephemeral: nothing persisted
	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestExecuteEphemeralLookerInvariant(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()

	agent := &models.Agent{
		ID:              "looker-agent",
		ProjectID:       "proj",
		Location:        "us-central1",
		AgentResourceID: "looker",
		Datasource:      models.DatasourceConfig{Type: models.DatasourceLooker},
	}
	require.NoError(t, st.CreateAgent(ctx, agent))

	m := NewManager(st, client, asserts.NewEngine())
	_, err := m.ExecuteEphemeral(ctx, "looker-agent", "q", nil)
	require.Error(t, err)
}

type failingSuggester struct{ calls int }

func (f *failingSuggester) Generate(ctx context.Context, trial *models.Trial) ([]models.SuggestedAssertion, error) {
	f.calls++
	return nil, errors.New("llm unavailable")
}

func TestSuggestionFailureNeverFailsTrial(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)
	seedSuite(t, st, models.Assertion{Kind: models.AssertDataRowCount, Value: "3", Weight: 1})

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil)
	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&gdaclient.AskResponse{Messages: revenueTrace()}, nil)

	sugg := &failingSuggester{}
	m := NewManager(st, client, asserts.NewEngine(), WithSuggester(sugg))
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)
	_, err = m.ExecuteRun(ctx, run.ID)
	require.NoError(t, err)

	require.Equal(t, 1, sugg.calls)

	trials, err := st.ListTrials(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.TrialCompleted, trials[0].Status)
}

func TestAggregateRunExcludesFailedTrials(t *testing.T) {
	st, client := newFixture(t)
	ctx := context.Background()
	seedAgent(t, st)

	suite := &models.Suite{
		ID:   "suite-1",
		Name: "smoke",
		Examples: []models.Example{
			{ID: "ex-1", Question: "q1", Asserts: []models.Assertion{{Kind: models.AssertDataRowCount, Value: "3", Weight: 1}}},
			{ID: "ex-2", Question: "q2", Asserts: []models.Assertion{{Kind: models.AssertTextContains, Value: "x", Weight: 1}}},
		},
	}
	require.NoError(t, st.SaveSuite(ctx, suite))

	client.EXPECT().GetAgentContext(gomock.Any(), gomock.Any()).Return("", nil)
	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), "q1").
		Return(&gdaclient.AskResponse{Messages: revenueTrace(), Durations: gdaclient.Durations{Total: time.Second}}, nil)
	client.EXPECT().AskQuestion(gomock.Any(), gomock.Any(), "q2").
		Return(nil, errors.New("boom"))

	m := NewManager(st, client, asserts.NewEngine())
	run, err := m.CreateRun(ctx, "agent-1", "suite-1")
	require.NoError(t, err)
	_, err = m.ExecuteRun(ctx, run.ID)
	require.NoError(t, err)

	agg, err := m.AggregateRun(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, 2, agg.Total)
	require.Equal(t, 1, agg.Completed)
	require.Equal(t, 1, agg.Failed)
	require.NotNil(t, agg.Accuracy)
	require.EqualValues(t, 1, *agg.Accuracy)
	require.EqualValues(t, 1000, agg.AvgDurationMS)
}
