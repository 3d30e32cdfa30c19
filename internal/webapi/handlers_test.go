package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/spboyer/gdabench/internal/asserts"
	"github.com/spboyer/gdabench/internal/compare"
	"github.com/spboyer/gdabench/internal/gdaclient/gdaclientmock"
	"github.com/spboyer/gdabench/internal/lifecycle"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/store"
)

func newTestAPI(t *testing.T) (*store.SQLiteStore, http.Handler) {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	client := gdaclientmock.NewMockClient(gomock.NewController(t))
	manager := lifecycle.NewManager(st, client, asserts.NewEngine())
	comparer := compare.NewEngine(st)

	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandlers(st, manager, comparer))
	return st, mux
}

func seedCompletedRun(t *testing.T, st store.Store) (string, string) {
	t.Helper()
	assertion := models.Assertion{Kind: models.AssertDataRowCount, Value: "2", Weight: 1}
	run := &models.Run{
		ID:              "run-1",
		AgentID:         "agent-1",
		OriginalSuiteID: "suite-1",
		Status:          models.RunCompleted,
		CreatedAt:       time.Now().UTC(),
	}
	trial := models.Trial{
		ID:                "trial-1",
		RunID:             "run-1",
		OriginalExampleID: "ex-1",
		Question:          "total revenue?",
		Status:            models.TrialCompleted,
		DurationMS:        2000,
		TTFRMS:            400,
		Asserts:           []models.Assertion{assertion},
		AssertionResults: []models.AssertionResult{
			{Assertion: assertion, Passed: true, Score: 1},
		},
		TraceResults: []map[string]any{
			{"timestamp": "2026-01-01T00:00:00Z", "system_message": map[string]any{
				"data": map[string]any{
					"generated_sql": "SELECT region, revenue FROM sales",
					"result": map[string]any{"data": []any{
						map[string]any{"region": "east"},
						map[string]any{"region": "west"},
					}},
				},
			}},
			{"timestamp": "2026-01-01T00:00:01Z", "system_message": map[string]any{
				"text": map[string]any{"text_type": "FINAL", "parts": []any{"Revenue was $42."}},
			}},
		},
	}
	require.NoError(t, st.CreateRun(context.Background(), run, []models.Trial{trial}))
	return run.ID, trial.ID
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestAPI(t)

	rec := doRequest(t, h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
}

func TestHandleRuns(t *testing.T) {
	st, h := newTestAPI(t)
	seedCompletedRun(t, st)

	rec := doRequest(t, h, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, "run-1", runs[0].ID)
	require.Equal(t, 1, runs[0].Completed)
	require.NotNil(t, runs[0].Accuracy)
	require.EqualValues(t, 1, *runs[0].Accuracy)
}

func TestHandleRunsBadLimit(t *testing.T) {
	_, h := newTestAPI(t)
	rec := doRequest(t, h, http.MethodGet, "/api/runs?limit=nope", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRunDetail(t *testing.T) {
	st, h := newTestAPI(t)
	runID, trialID := seedCompletedRun(t, st)

	rec := doRequest(t, h, http.MethodGet, "/api/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail RunDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Len(t, detail.Trials, 1)
	require.Equal(t, trialID, detail.Trials[0].ID)
	require.Equal(t, models.TrialCompleted, detail.Trials[0].Status)
}

func TestHandleRunDetailNotFound(t *testing.T) {
	_, h := newTestAPI(t)
	rec := doRequest(t, h, http.MethodGet, "/api/runs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTrialDetailIncludesTimeline(t *testing.T) {
	st, h := newTestAPI(t)
	_, trialID := seedCompletedRun(t, st)

	rec := doRequest(t, h, http.MethodGet, "/api/trials/"+trialID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail TrialDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, "total revenue?", detail.Question)
	require.Len(t, detail.AssertionResults, 1)
	require.NotNil(t, detail.Timeline)
	require.EqualValues(t, 2000, detail.Timeline.TotalDurationMS)
	require.NotEmpty(t, detail.Timeline.Groups)
}

func TestHandleEvaluate(t *testing.T) {
	st, h := newTestAPI(t)
	_, trialID := seedCompletedRun(t, st)

	body := `{"asserts": [{"type": "QUERY_CONTAINS", "value": "from sales", "weight": 1}]}`
	rec := doRequest(t, h, http.MethodPost, "/api/trials/"+trialID+"/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.True(t, resp.Results[0].Passed)

	// offline evaluation never mutates the stored trial
	trial, err := st.GetTrial(context.Background(), trialID)
	require.NoError(t, err)
	require.Len(t, trial.AssertionResults, 1)
	require.Equal(t, models.AssertDataRowCount, trial.AssertionResults[0].Assertion.Kind)
}

func TestHandleEvaluateRequiresAsserts(t *testing.T) {
	st, h := newTestAPI(t)
	_, trialID := seedCompletedRun(t, st)

	rec := doRequest(t, h, http.MethodPost, "/api/trials/"+trialID+"/evaluate", `{"asserts": []}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompare(t *testing.T) {
	st, h := newTestAPI(t)
	seedCompletedRun(t, st)

	base := &models.Run{ID: "run-base", Status: models.RunCompleted, CreatedAt: time.Now().UTC()}
	assertion := models.Assertion{ID: "a1", Kind: models.AssertTextContains, Value: "x", Weight: 1}
	require.NoError(t, st.CreateRun(context.Background(), base, []models.Trial{{
		ID: "bt-1", RunID: "run-base", OriginalExampleID: "ex-1", Question: "total revenue?",
		Status:  models.TrialCompleted,
		Asserts: []models.Assertion{assertion},
		AssertionResults: []models.AssertionResult{
			{Assertion: assertion, Passed: false, Score: 0},
		},
	}}))

	rec := doRequest(t, h, http.MethodGet, "/api/compare?base=run-base&challenger=run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Cases, 1)
	require.Equal(t, compare.Improved, result.Cases[0].Classification)
}

func TestHandleCompareMissingParams(t *testing.T) {
	_, h := newTestAPI(t)
	rec := doRequest(t, h, http.MethodGet, "/api/compare?base=only", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAcceptSuggestion(t *testing.T) {
	st, h := newTestAPI(t)
	_, trialID := seedCompletedRun(t, st)

	require.NoError(t, st.SaveSuggestions(context.Background(), []models.SuggestedAssertion{{
		ID:      "sugg-1",
		TrialID: trialID,
		Assertion: models.Assertion{
			Kind: models.AssertTextContains, Value: "$42", Weight: 1,
		},
	}}))

	rec := doRequest(t, h, http.MethodPost, "/api/suggestions/sugg-1/accept", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := st.ListSuggestions(context.Background(), trialID)
	require.NoError(t, err)
	require.True(t, got[0].Accepted)

	rec = doRequest(t, h, http.MethodPost, "/api/suggestions/missing/accept", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
