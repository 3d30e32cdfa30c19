package gdaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/spboyer/gdabench/internal/models"
)

const (
	defaultEndpoint = "https://geminidataanalytics.googleapis.com"
	apiVersion      = "v1beta"
	cloudScope      = "https://www.googleapis.com/auth/cloud-platform"
)

// HTTPClient is the production [Client] backed by the GDA REST API.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

type Option func(*HTTPClient)

// WithEndpoint overrides the API endpoint. Used for regional endpoints and
// test servers.
func WithEndpoint(endpoint string) Option {
	return func(c *HTTPClient) { c.endpoint = endpoint }
}

// WithHTTPClient replaces the underlying HTTP client, bypassing ADC. Used in
// tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

func WithClientLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) { c.logger = logger }
}

// New builds an HTTPClient authenticated with Application Default
// Credentials.
func New(ctx context.Context, opts ...Option) (*HTTPClient, error) {
	c := &HTTPClient{
		endpoint: defaultEndpoint,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		hc, err := google.DefaultClient(ctx, cloudScope)
		if err != nil {
			return nil, fmt.Errorf("loading application default credentials: %w", err)
		}
		c.httpClient = hc
	}
	return c, nil
}

// AskQuestion posts the question to the agent's chat endpoint and decodes the
// streamed JSON array of messages, timing the first message and the full
// stream.
func (c *HTTPClient) AskQuestion(ctx context.Context, agent *models.Agent, question string) (*AskResponse, error) {
	if err := agent.ValidateForExecution(); err != nil {
		return nil, err
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", agent.ProjectID, agent.Location)
	body := map[string]any{
		"parent": parent,
		"messages": []any{
			map[string]any{"userMessage": map[string]any{"text": question}},
		},
		"data_agent_context": c.agentContext(agent),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/%s:chat", c.endpoint, apiVersion, parent)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("asking agent", "agent", agent.ResourceName(), "question", question)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling chat endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("chat", resp)
	}

	messages, firstAt, err := decodeStream(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding chat stream: %w", err)
	}

	out := &AskResponse{
		Messages: messages,
		Durations: Durations{
			Total: time.Since(start),
		},
		ErrorMessage: streamError(messages),
	}
	if !firstAt.IsZero() {
		out.Durations.TimeToFirstResponse = firstAt.Sub(start)
	}
	return out, nil
}

// streamError surfaces an in-stream agent error. The API reports agent-side
// failures as a final error system message with a 200 transport status.
func streamError(messages []map[string]any) string {
	for i := len(messages) - 1; i >= 0; i-- {
		sys, _ := messages[i]["system_message"].(map[string]any)
		if sys == nil {
			sys, _ = messages[i]["systemMessage"].(map[string]any)
		}
		if sys == nil {
			continue
		}
		switch v := sys["error"].(type) {
		case string:
			return v
		case map[string]any:
			if text, ok := v["text"].(string); ok && text != "" {
				return text
			}
			if text, ok := v["message"].(string); ok && text != "" {
				return text
			}
			return "agent reported an error"
		}
	}
	return ""
}

func (c *HTTPClient) agentContext(agent *models.Agent) map[string]any {
	dac := map[string]any{
		"data_agent": agent.ResourceName(),
	}
	if agent.RequiresLookerCredentials() {
		dac["credentials"] = map[string]any{
			"oauth": map[string]any{
				"secret": map[string]any{
					"client_id":     agent.LookerClientID,
					"client_secret": agent.LookerClientSecret,
				},
			},
		}
	}
	return dac
}

// decodeStream reads a JSON array of messages incrementally, recording the
// arrival time of the first element.
func decodeStream(r io.Reader) ([]map[string]any, time.Time, error) {
	dec := json.NewDecoder(r)

	if _, err := dec.Token(); err != nil {
		if err == io.EOF {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, err
	}

	var messages []map[string]any
	var firstAt time.Time
	for dec.More() {
		var msg map[string]any
		if err := dec.Decode(&msg); err != nil {
			return nil, time.Time{}, err
		}
		if firstAt.IsZero() {
			firstAt = time.Now()
		}
		messages = append(messages, msg)
	}
	return messages, firstAt, nil
}

// GetAgentContext fetches the data agent resource and returns its published
// context serialized as JSON.
func (c *HTTPClient) GetAgentContext(ctx context.Context, agent *models.Agent) (string, error) {
	url := fmt.Sprintf("%s/%s/%s", c.endpoint, apiVersion, agent.ResourceName())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("get agent", resp)
	}

	var resource struct {
		DataAnalyticsAgent struct {
			PublishedContext map[string]any `json:"published_context"`
		} `json:"data_analytics_agent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&resource); err != nil {
		return "", fmt.Errorf("decoding agent resource: %w", err)
	}

	if len(resource.DataAnalyticsAgent.PublishedContext) == 0 {
		return "", nil
	}
	serialized, err := json.Marshal(resource.DataAnalyticsAgent.PublishedContext)
	if err != nil {
		return "", err
	}
	return string(serialized), nil
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s: %s: %s", op, resp.Status, bytes.TrimSpace(body))
}
