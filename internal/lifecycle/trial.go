package lifecycle

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/spboyer/gdabench/internal/asserts"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/trace"
)

// stageFailure records which stage of trial execution failed. Stages return
// it instead of raising, so the failure path is explicit in each stage
// function's signature.
type stageFailure struct {
	stage     models.TrialStatus
	err       error
	traceback string
}

func failAt(stage models.TrialStatus, err error) *stageFailure {
	return &stageFailure{stage: stage, err: err}
}

// ExecuteTrial runs one claimed trial through its stages. It never returns an
// error: every failure is recorded on the trial itself, so one trial's
// failure cannot abort its siblings.
func (m *Manager) ExecuteTrial(ctx context.Context, agent *models.Agent, trial *models.Trial) {
	trial.ResetForExecution()
	trial.Status = models.TrialRunning
	if err := m.store.UpdateTrial(ctx, trial); err != nil {
		m.logger.Error("persisting trial reset", "trial", trial.ID, "error", err)
		return
	}

	if f := m.runTrialStages(ctx, agent, trial); f != nil {
		trial.Status = models.TrialFailed
		trial.FailedStage = f.stage
		trial.ErrorMessage = f.err.Error()
		trial.ErrorTraceback = f.traceback
		if trial.ErrorTraceback == "" {
			trial.ErrorTraceback = fmt.Sprintf("%+v", f.err)
		}
		if trial.CompletedAt == nil {
			now := time.Now().UTC()
			trial.CompletedAt = &now
		}
		m.logger.Warn("trial failed",
			"trial", trial.ID,
			"stage", f.stage,
			"error", f.err)
		if err := m.store.UpdateTrial(ctx, trial); err != nil {
			m.logger.Error("persisting failed trial", "trial", trial.ID, "error", err)
		}
	}
}

// runTrialStages executes stages in order, persisting each transition before
// the next step so observers polling the trial see monotonic progress. A
// panic anywhere is converted into a stage failure carrying the stack.
func (m *Manager) runTrialStages(ctx context.Context, agent *models.Agent, trial *models.Trial) (failure *stageFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &stageFailure{
				stage:     trial.Status,
				err:       fmt.Errorf("panic: %v", r),
				traceback: string(debug.Stack()),
			}
		}
	}()

	trial.Status = models.TrialExecuting
	now := time.Now().UTC()
	trial.StartedAt = &now
	if err := m.store.UpdateTrial(ctx, trial); err != nil {
		return failAt(models.TrialExecuting, err)
	}

	resp, err := m.agents.AskQuestion(ctx, agent, trial.Question)

	// Stamp completion before any processing so duration reflects agent
	// latency specifically.
	completed := time.Now().UTC()
	trial.CompletedAt = &completed

	if err != nil {
		return failAt(models.TrialExecuting, err)
	}

	trial.DurationMS = resp.Durations.Total.Milliseconds()
	trial.TTFRMS = resp.Durations.TimeToFirstResponse.Milliseconds()
	trial.TraceResults = resp.Messages

	messages := trace.Normalize(resp.Messages)
	trial.OutputText = trace.FinalText(messages)

	if err := m.store.UpdateTrial(ctx, trial); err != nil {
		return failAt(models.TrialExecuting, err)
	}

	// An in-stream agent error fails the trial at the execution stage;
	// assertions are never evaluated against a failed agent call.
	if resp.ErrorMessage != "" {
		return failAt(models.TrialExecuting, fmt.Errorf("agent error: %s", resp.ErrorMessage))
	}

	trial.Status = models.TrialEvaluating
	if err := m.store.UpdateTrial(ctx, trial); err != nil {
		return failAt(models.TrialEvaluating, err)
	}

	trial.AssertionResults = m.engine.EvaluateAll(ctx, &asserts.Input{
		Question:        trial.Question,
		Messages:        messages,
		RawTrace:        trial.TraceResults,
		TotalDurationMS: trial.DurationMS,
	}, trial.Asserts)

	if err := m.store.UpdateTrial(ctx, trial); err != nil {
		return failAt(models.TrialEvaluating, err)
	}

	m.generateSuggestions(ctx, trial)

	trial.Status = models.TrialCompleted
	if err := m.store.UpdateTrial(ctx, trial); err != nil {
		return failAt(models.TrialEvaluating, err)
	}
	return nil
}

// generateSuggestions is enrichment: any failure is logged and swallowed, it
// never fails the trial.
func (m *Manager) generateSuggestions(ctx context.Context, trial *models.Trial) {
	if m.suggester == nil {
		return
	}

	// The suggester wants a completed trial; the status flips before the
	// final persist, so hand it a copy.
	preview := *trial
	preview.Status = models.TrialCompleted

	suggestions, err := m.suggester.Generate(ctx, &preview)
	if err != nil {
		m.logger.Warn("suggestion generation failed", "trial", trial.ID, "error", err)
		return
	}
	if len(suggestions) == 0 {
		return
	}
	if err := m.store.SaveSuggestions(ctx, suggestions); err != nil {
		m.logger.Warn("could not persist suggestions", "trial", trial.ID, "error", err)
		return
	}
	trial.SuggestedAsserts = suggestions
}

// EvaluateOffline re-runs the assertion engine over a trial's stored trace
// without calling the agent or mutating the trial. Used to try out new
// assertions against historical data.
func (m *Manager) EvaluateOffline(ctx context.Context, trialID string, assertions []models.Assertion) ([]models.AssertionResult, error) {
	trial, err := m.store.GetTrial(ctx, trialID)
	if err != nil {
		return nil, fmt.Errorf("loading trial %s: %w", trialID, err)
	}
	if len(trial.TraceResults) == 0 {
		return nil, fmt.Errorf("trial %s has no stored trace", trialID)
	}

	messages := trace.Normalize(trial.TraceResults)
	return m.engine.EvaluateAll(ctx, &asserts.Input{
		Question:        trial.Question,
		Messages:        messages,
		RawTrace:        trial.TraceResults,
		TotalDurationMS: trial.DurationMS,
	}, assertions), nil
}

// ExecuteEphemeral asks the agent one question and evaluates the given
// assertions without creating any run or trial rows. The returned trial is
// transient.
func (m *Manager) ExecuteEphemeral(ctx context.Context, agentID, question string, assertions []models.Assertion) (*models.Trial, error) {
	agent, err := m.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading agent %s: %w", agentID, err)
	}
	if err := agent.ValidateForExecution(); err != nil {
		return nil, err
	}

	trial := &models.Trial{
		ID:       uuid.NewString(),
		Question: question,
		Asserts:  assertions,
		Status:   models.TrialExecuting,
	}
	now := time.Now().UTC()
	trial.StartedAt = &now

	resp, err := m.agents.AskQuestion(ctx, agent, question)
	completed := time.Now().UTC()
	trial.CompletedAt = &completed
	if err != nil {
		trial.Status = models.TrialFailed
		trial.FailedStage = models.TrialExecuting
		trial.ErrorMessage = err.Error()
		trial.ErrorTraceback = fmt.Sprintf("%+v", err)
		return trial, nil
	}

	trial.DurationMS = resp.Durations.Total.Milliseconds()
	trial.TTFRMS = resp.Durations.TimeToFirstResponse.Milliseconds()
	trial.TraceResults = resp.Messages

	messages := trace.Normalize(resp.Messages)
	trial.OutputText = trace.FinalText(messages)

	if resp.ErrorMessage != "" {
		trial.Status = models.TrialFailed
		trial.FailedStage = models.TrialExecuting
		trial.ErrorMessage = resp.ErrorMessage
		return trial, nil
	}

	trial.Status = models.TrialEvaluating
	trial.AssertionResults = m.engine.EvaluateAll(ctx, &asserts.Input{
		Question:        question,
		Messages:        messages,
		RawTrace:        trial.TraceResults,
		TotalDurationMS: trial.DurationMS,
	}, assertions)
	trial.Status = models.TrialCompleted
	return trial, nil
}
