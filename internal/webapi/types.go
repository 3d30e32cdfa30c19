package webapi

import (
	"time"

	"github.com/spboyer/gdabench/internal/compare"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/timeline"
)

// RunSummary is the API shape for one run in the list view.
type RunSummary struct {
	ID            string           `json:"id"`
	AgentID       string           `json:"agentId"`
	SuiteID       string           `json:"suiteId"`
	Status        models.RunStatus `json:"status"`
	Total         int              `json:"total"`
	Completed     int              `json:"completed"`
	Failed        int              `json:"failed"`
	Accuracy      *float64         `json:"accuracy,omitempty"`
	AvgDurationMS int64            `json:"avgDurationMs"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// RunDetail is a run plus its trials.
type RunDetail struct {
	RunSummary
	AgentContextSnapshot string         `json:"agentContextSnapshot,omitempty"`
	Trials               []TrialSummary `json:"trials"`
}

// TrialSummary is the API shape for one trial in a run listing.
type TrialSummary struct {
	ID                string             `json:"id"`
	OriginalExampleID string             `json:"originalExampleId,omitempty"`
	Question          string             `json:"question"`
	Status            models.TrialStatus `json:"status"`
	FailedStage       models.TrialStatus `json:"failedStage,omitempty"`
	Score             *float64           `json:"score,omitempty"`
	DurationMS        int64              `json:"durationMs"`
	ErrorMessage      string             `json:"errorMessage,omitempty"`
}

// TrialDetail is a trial with its full results and resolved timeline.
type TrialDetail struct {
	TrialSummary
	OutputText       string                      `json:"outputText,omitempty"`
	ErrorTraceback   string                      `json:"errorTraceback,omitempty"`
	TTFRMS           int64                       `json:"ttfrMs"`
	Asserts          []models.Assertion          `json:"asserts,omitempty"`
	AssertionResults []models.AssertionResult    `json:"assertionResults,omitempty"`
	Suggestions      []models.SuggestedAssertion `json:"suggestions,omitempty"`
	Timeline         *timeline.Timeline          `json:"timeline,omitempty"`
}

// EvaluateRequest is the payload for offline re-evaluation of a stored trace.
type EvaluateRequest struct {
	Asserts []models.Assertion `json:"asserts"`
}

// EvaluateResponse carries the results of an offline evaluation. Nothing is
// persisted.
type EvaluateResponse struct {
	Results []models.AssertionResult `json:"results"`
}

// CompareResponse wraps the comparison engine result.
type CompareResponse = compare.Result

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
