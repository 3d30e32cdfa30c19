package gdaclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spboyer/gdabench/internal/models"
)

func testAgent() *models.Agent {
	return &models.Agent{
		ID:              "agent-1",
		ProjectID:       "proj",
		Location:        "us-central1",
		AgentResourceID: "sales",
		Datasource:      models.DatasourceConfig{Type: models.DatasourceBigQuery},
	}
}

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(),
		WithEndpoint(srv.URL),
		WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestAskQuestionDecodesStream(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/projects/proj/locations/us-central1:chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"timestamp": "2026-01-01T00:00:00Z", "system_message": {"text": {"parts": ["hi"]}}},
			{"timestamp": "2026-01-01T00:00:01Z", "system_message": {"data": {"generated_sql": "SELECT 1"}}}
		]`))
	}))

	resp, err := c.AskQuestion(context.Background(), testAgent(), "total revenue?")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 2)
	require.Equal(t, "2026-01-01T00:00:00Z", resp.Messages[0]["timestamp"])
	require.GreaterOrEqual(t, resp.Durations.Total, resp.Durations.TimeToFirstResponse)

	msgs := gotBody["messages"].([]any)
	um := msgs[0].(map[string]any)["userMessage"].(map[string]any)
	require.Equal(t, "total revenue?", um["text"])

	dac := gotBody["data_agent_context"].(map[string]any)
	require.Equal(t, "projects/proj/locations/us-central1/dataAgents/sales", dac["data_agent"])
	require.NotContains(t, dac, "credentials")
}

func TestAskQuestionSendsLookerCredentials(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`[]`))
	}))

	agent := testAgent()
	agent.Datasource.Type = models.DatasourceLooker
	agent.LookerClientID = "id"
	agent.LookerClientSecret = "secret"

	_, err := c.AskQuestion(context.Background(), agent, "q")
	require.NoError(t, err)

	dac := gotBody["data_agent_context"].(map[string]any)
	secret := dac["credentials"].(map[string]any)["oauth"].(map[string]any)["secret"].(map[string]any)
	require.Equal(t, "id", secret["client_id"])
	require.Equal(t, "secret", secret["client_secret"])
}

func TestAskQuestionRejectsLookerAgentWithoutCredentials(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	agent := testAgent()
	agent.Datasource.Type = models.DatasourceLooker

	_, err := c.AskQuestion(context.Background(), agent, "q")
	require.Error(t, err)
}

func TestAskQuestionAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "agent not found"}}`, http.StatusNotFound)
	}))

	_, err := c.AskQuestion(context.Background(), testAgent(), "q")
	require.Error(t, err)
	require.Contains(t, err.Error(), "agent not found")
}

func TestGetAgentContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/projects/proj/locations/us-central1/dataAgents/sales", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"name": "projects/proj/locations/us-central1/dataAgents/sales",
			"data_analytics_agent": {
				"published_context": {"system_instruction": "be terse"}
			}
		}`))
	}))

	got, err := c.GetAgentContext(context.Background(), testAgent())
	require.NoError(t, err)
	require.JSONEq(t, `{"system_instruction": "be terse"}`, got)
}

func TestGetAgentContextEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "x", "data_analytics_agent": {}}`))
	}))

	got, err := c.GetAgentContext(context.Background(), testAgent())
	require.NoError(t, err)
	require.Empty(t, got)
}
