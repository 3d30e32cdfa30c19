// Package llm wraps the Gemini client behind the one operation the harness
// needs: generating a structured (JSON-schema constrained) response.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// Client generates structured output from a prompt. Implementations may fail;
// callers are expected to catch and convert errors into domain results rather
// than letting them propagate.
type Client interface {
	// GenerateStructured sends the prompt and decodes the model's JSON reply
	// into out. The schema is derived from the concrete type of out.
	GenerateStructured(ctx context.Context, prompt string, out any) error
}

// GeminiClient is the production Client backed by google.golang.org/genai.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// Option configures a GeminiClient.
type Option func(*GeminiClient)

// WithModel overrides the default judge model.
func WithModel(model string) Option {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

const defaultModel = "gemini-2.0-flash"

// NewGeminiClient creates a client using application-default credentials (or
// GOOGLE_API_KEY when set, per the genai SDK's resolution order).
func NewGeminiClient(ctx context.Context, opts ...Option) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := &GeminiClient{client: client, model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// GenerateStructured implements [Client].
func (c *GeminiClient) GenerateStructured(ctx context.Context, prompt string, out any) error {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schemaFor(out),
	})
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return fmt.Errorf("model returned an empty response")
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode structured response %q: %w", text, err)
	}
	return nil
}

// Verdict is the structured judge reply: a boolean verdict plus its
// explanation.
type Verdict struct {
	Verdict     bool   `json:"verdict"`
	Explanation string `json:"explanation"`
}

// schemaFor maps the handful of structured outputs the harness requests onto
// genai schemas. Unknown types fall back to a free-form object, which the
// model fills best-effort.
func schemaFor(out any) *genai.Schema {
	switch out.(type) {
	case *Verdict:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"verdict":     {Type: genai.TypeBoolean},
				"explanation": {Type: genai.TypeString},
			},
			Required: []string{"verdict", "explanation"},
		}
	case *SuggestionList:
		return suggestionListSchema()
	default:
		return &genai.Schema{Type: genai.TypeObject}
	}
}

// SuggestionList is the structured reply of the assertion suggester.
type SuggestionList struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Suggestion is one proposed assertion in wire form; the suggest package
// decodes it into a domain assertion.
type Suggestion struct {
	Type      string         `json:"type"`
	Value     string         `json:"value,omitempty"`
	Columns   map[string]any `json:"columns,omitempty"`
	Rationale string         `json:"rationale,omitempty"`
}

func suggestionListSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"suggestions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type":      {Type: genai.TypeString},
						"value":     {Type: genai.TypeString},
						"columns":   {Type: genai.TypeObject},
						"rationale": {Type: genai.TypeString},
					},
					Required: []string{"type"},
				},
			},
		},
		Required: []string{"suggestions"},
	}
}
