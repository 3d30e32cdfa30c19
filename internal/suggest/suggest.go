// Package suggest proposes new assertions for a completed trial by showing
// the trial's trace to a model and decoding its structured reply.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/spboyer/gdabench/internal/llm"
	"github.com/spboyer/gdabench/internal/models"
)

const defaultMaxSuggestions = 5

// Suggester generates assertion suggestions for completed trials.
type Suggester struct {
	client         llm.Client
	maxSuggestions int
	logger         *slog.Logger
}

// Option configures a Suggester.
type Option func(*Suggester)

// WithMaxSuggestions caps how many suggestions one call may produce.
func WithMaxSuggestions(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Suggester) { s.logger = logger }
}

// New creates a Suggester backed by the given LLM client.
func New(client llm.Client, opts ...Option) *Suggester {
	s := &Suggester{
		client:         client,
		maxSuggestions: defaultMaxSuggestions,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate proposes assertions for a completed trial. Suggestions duplicating
// an existing assertion (same semantic content, ignoring id and weight) are
// dropped, as are duplicates within the reply itself.
func (s *Suggester) Generate(ctx context.Context, trial *models.Trial) ([]models.SuggestedAssertion, error) {
	if trial.Status != models.TrialCompleted {
		return nil, fmt.Errorf("trial %s is %s, suggestions need a completed trial", trial.ID, trial.Status)
	}
	if len(trial.TraceResults) == 0 {
		return nil, errors.New("trial has no trace to learn from")
	}

	var reply llm.SuggestionList
	if err := s.client.GenerateStructured(ctx, buildPrompt(trial, s.maxSuggestions), &reply); err != nil {
		return nil, fmt.Errorf("generating suggestions: %w", err)
	}

	seen := make(map[string]bool, len(trial.Asserts))
	for i := range trial.Asserts {
		seen[trial.Asserts[i].ContentHash()] = true
	}

	var out []models.SuggestedAssertion
	for i := range reply.Suggestions {
		assertion, err := decodeSuggestion(&reply.Suggestions[i])
		if err != nil {
			s.logger.Warn("skipping malformed suggestion", "error", err)
			continue
		}

		hash := assertion.ContentHash()
		if seen[hash] {
			continue
		}
		seen[hash] = true

		out = append(out, models.SuggestedAssertion{
			ID:        uuid.NewString(),
			TrialID:   trial.ID,
			Assertion: *assertion,
			Rationale: reply.Suggestions[i].Rationale,
		})
		if len(out) == s.maxSuggestions {
			break
		}
	}
	return out, nil
}

// decodeSuggestion converts a wire suggestion into a domain assertion,
// rejecting unknown types. Suggested assertions default to accuracy weight 1.
func decodeSuggestion(raw *llm.Suggestion) (*models.Assertion, error) {
	kind := models.AssertKind(raw.Type)
	known := false
	for _, k := range models.KnownAssertKinds() {
		if kind == k {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown assert type %q", raw.Type)
	}

	assertion := &models.Assertion{Kind: kind, Weight: 1}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           assertion,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	err = dec.Decode(map[string]any{
		"value":   raw.Value,
		"columns": raw.Columns,
	})
	if err != nil {
		return nil, fmt.Errorf("decoding suggestion payload: %w", err)
	}

	switch kind {
	case models.AssertDataRow:
		if len(assertion.Columns) == 0 {
			return nil, errors.New("DATA_CHECK_ROW suggestion without columns")
		}
	default:
		if assertion.Value == "" {
			return nil, fmt.Errorf("%s suggestion without a value", kind)
		}
	}
	return assertion, nil
}
