// Package gdaclient talks to the Gemini Data Analytics API: it asks an agent
// a question and streams back the trace of system messages the agent emits
// while answering.
package gdaclient

import (
	"context"
	"time"

	"github.com/spboyer/gdabench/internal/models"
)

//go:generate go tool mockgen -source client.go -destination gdaclientmock/mock_client.go -package gdaclientmock

// Durations captures the two latency measurements taken around an agent call.
type Durations struct {
	// Total is the wall-clock time from sending the question to the end of
	// the response stream.
	Total time.Duration

	// TimeToFirstResponse is the time from sending the question to the
	// first streamed message.
	TimeToFirstResponse time.Duration
}

// AskResponse is the outcome of one question asked of an agent.
type AskResponse struct {
	// Messages holds the raw wire messages in arrival order. They are kept
	// untyped here; normalization happens in the trace package.
	Messages []map[string]any

	Durations Durations

	// ErrorMessage is set when the agent reported a failure inside the
	// stream rather than at the transport level. A response carrying one
	// still has its partial trace in Messages.
	ErrorMessage string
}

// Client is the surface the run lifecycle needs from the GDA API.
type Client interface {
	// AskQuestion sends one natural-language question to the agent and
	// collects the full response stream.
	AskQuestion(ctx context.Context, agent *models.Agent, question string) (*AskResponse, error)

	// GetAgentContext fetches the agent's published context as a JSON
	// string, or "" when the agent publishes none.
	GetAgentContext(ctx context.Context, agent *models.Agent) (string, error)
}
