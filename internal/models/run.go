package models

import (
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunPaused    RunStatus = "PAUSED"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunCancelled RunStatus = "CANCELLED"
)

// TrialStatus is the lifecycle state of a single trial. Transitions are
// monotonic through the ordered stages; FAILED is reachable from EXECUTING or
// EVALUATING, and CANCELLED/PAUSED only before execution starts.
type TrialStatus string

const (
	TrialPending    TrialStatus = "PENDING"
	TrialRunning    TrialStatus = "RUNNING"
	TrialExecuting  TrialStatus = "EXECUTING"
	TrialEvaluating TrialStatus = "EVALUATING"
	TrialCompleted  TrialStatus = "COMPLETED"
	TrialFailed     TrialStatus = "FAILED"
	TrialCancelled  TrialStatus = "CANCELLED"
	TrialPaused     TrialStatus = "PAUSED"
)

// Terminal reports whether the status admits no further transitions.
func (s TrialStatus) Terminal() bool {
	return s == TrialCompleted || s == TrialFailed || s == TrialCancelled
}

// Run is one execution of a suite snapshot against one agent.
type Run struct {
	ID              string    `json:"id"`
	AgentID         string    `json:"agent_id"`
	SuiteSnapshotID string    `json:"suite_snapshot_id"`
	OriginalSuiteID string    `json:"original_suite_id"`
	Status          RunStatus `json:"status"`

	// AgentContextSnapshot is the agent's published context captured once at
	// run creation; empty when the fetch failed (non-fatal).
	AgentContextSnapshot string `json:"agent_context_snapshot,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Trial is one unit of work: one example snapshot executed within one run.
type Trial struct {
	ID                string      `json:"id"`
	RunID             string      `json:"run_id"`
	ExampleSnapshotID string      `json:"example_snapshot_id"`
	OriginalExampleID string      `json:"original_example_id"`
	Question          string      `json:"question"`
	Asserts           []Assertion `json:"asserts"`

	Status      TrialStatus `json:"status"`
	FailedStage TrialStatus `json:"failed_stage,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	OutputText     string `json:"output_text,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ErrorTraceback string `json:"error_traceback,omitempty"`

	// TraceResults holds the raw agent trace messages as received on the wire.
	// Written exactly once after a successful agent call.
	TraceResults []map[string]any `json:"trace_results,omitempty"`

	// AssertionResults are written exactly once by a successful evaluation
	// pass; offline re-evaluation never touches them.
	AssertionResults []AssertionResult `json:"assertion_results,omitempty"`

	SuggestedAsserts []SuggestedAssertion `json:"suggested_asserts,omitempty"`

	DurationMS int64 `json:"duration_ms"`
	TTFRMS     int64 `json:"ttfr_ms"`
}

// Score is the mean score over accuracy-weighted assertion results, or nil
// when the trial carries none (all diagnostic, or not yet evaluated).
func (t *Trial) Score() *float64 {
	return MeanAccuracyScore(t.AssertionResults)
}

// ResetForExecution clears every field a prior execution pass may have
// written, so a re-executed trial never shows stale data.
func (t *Trial) ResetForExecution() {
	t.StartedAt = nil
	t.CompletedAt = nil
	t.OutputText = ""
	t.ErrorMessage = ""
	t.ErrorTraceback = ""
	t.FailedStage = ""
	t.TraceResults = nil
	t.AssertionResults = nil
	t.DurationMS = 0
	t.TTFRMS = 0
}

// RunAggregate is the derived summary of a run's trials. It is recomputed from
// the trials on demand, never maintained incrementally.
type RunAggregate struct {
	Total         int      `json:"total"`
	Completed     int      `json:"completed"`
	Failed        int      `json:"failed"`
	Pending       int      `json:"pending"`
	Accuracy      *float64 `json:"accuracy,omitempty"`
	AvgDurationMS int64    `json:"avg_duration_ms"`
}

// Aggregate computes run-level metrics over a set of trials. Failed trials are
// excluded from accuracy and duration averages but counted separately.
func Aggregate(trials []Trial) RunAggregate {
	agg := RunAggregate{Total: len(trials)}

	var scoreSum float64
	var scoreN int
	var durSum int64
	var durN int64

	for i := range trials {
		t := &trials[i]
		switch t.Status {
		case TrialCompleted:
			agg.Completed++
			if s := t.Score(); s != nil {
				scoreSum += *s
				scoreN++
			}
			durSum += t.DurationMS
			durN++
		case TrialFailed:
			agg.Failed++
		default:
			agg.Pending++
		}
	}

	if scoreN > 0 {
		acc := scoreSum / float64(scoreN)
		agg.Accuracy = &acc
	}
	if durN > 0 {
		agg.AvgDurationMS = durSum / durN
	}
	return agg
}
