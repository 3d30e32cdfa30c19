package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spboyer/gdabench/internal/models"
)

// CreateRun freezes the suite into an immutable snapshot and creates a
// PENDING run with one PENDING trial per example. The Looker-credential check
// happens before any row is written.
func (m *Manager) CreateRun(ctx context.Context, agentID, suiteID string) (*models.Run, error) {
	agent, err := m.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading agent %s: %w", agentID, err)
	}
	if err := agent.ValidateForExecution(); err != nil {
		return nil, err
	}

	suite, err := m.store.GetSuite(ctx, suiteID)
	if err != nil {
		return nil, fmt.Errorf("loading suite %s: %w", suiteID, err)
	}
	if len(suite.Examples) == 0 {
		return nil, fmt.Errorf("suite %s has no examples", suiteID)
	}

	snap := suite.Snapshot()
	snap.ID = uuid.NewString()
	for i := range snap.Examples {
		snap.Examples[i].ID = uuid.NewString()
	}
	if err := m.store.CreateSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("freezing suite snapshot: %w", err)
	}

	// Enrichment only: a failed context fetch never blocks run creation.
	agentContext, err := m.agents.GetAgentContext(ctx, agent)
	if err != nil {
		m.logger.Warn("could not fetch agent context", "agent", agentID, "error", err)
		agentContext = ""
	}

	run := &models.Run{
		ID:                   uuid.NewString(),
		AgentID:              agent.ID,
		SuiteSnapshotID:      snap.ID,
		OriginalSuiteID:      suite.ID,
		Status:               models.RunPending,
		AgentContextSnapshot: agentContext,
		CreatedAt:            time.Now().UTC(),
	}

	trials := make([]models.Trial, 0, len(snap.Examples))
	for i := range snap.Examples {
		ex := &snap.Examples[i]
		trials = append(trials, models.Trial{
			ID:                uuid.NewString(),
			RunID:             run.ID,
			ExampleSnapshotID: ex.ID,
			OriginalExampleID: ex.OriginalExampleID,
			Question:          ex.Question,
			Asserts:           ex.Asserts,
			Status:            models.TrialPending,
		})
	}

	if err := m.store.CreateRun(ctx, run, trials); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return run, nil
}

// ExecuteRun executes every claimable trial of the run across the configured
// worker pool. Cancel and pause are cooperative: they stop new trials from
// being claimed, while trials already in flight finish normally.
func (m *Manager) ExecuteRun(ctx context.Context, runID string) (*models.Run, error) {
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	switch run.Status {
	case models.RunPending, models.RunPaused:
	default:
		return nil, fmt.Errorf("run %s is %s, expected PENDING or PAUSED", runID, run.Status)
	}

	agent, err := m.store.GetAgent(ctx, run.AgentID)
	if err != nil {
		return nil, fmt.Errorf("loading agent %s: %w", run.AgentID, err)
	}

	trials, err := m.store.ListTrials(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("listing trials: %w", err)
	}

	if err := m.store.UpdateRunStatus(ctx, runID, models.RunRunning); err != nil {
		return nil, err
	}
	run.Status = models.RunRunning

	m.notifyProgress(ProgressEvent{
		EventType:   EventRunStart,
		RunID:       runID,
		TotalTrials: len(trials),
	})

	// Resumed runs see their PAUSED trials as claimable again.
	for i := range trials {
		if trials[i].Status == models.TrialPaused {
			trials[i].Status = models.TrialPending
			if err := m.store.UpdateTrial(ctx, &trials[i]); err != nil {
				return nil, err
			}
		}
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(m.workers)

	for i := range trials {
		if trials[i].Status != models.TrialPending {
			continue
		}
		trialID := trials[i].ID
		num := i + 1

		g.Go(func() error {
			// Consult the cooperative signals between trials, never
			// mid-trial.
			if ctx.Err() != nil {
				return nil
			}
			if status, err := m.runStatus(gctx, runID); err != nil || status != models.RunRunning {
				return err
			}

			claimed, err := m.store.ClaimTrial(gctx, trialID)
			if err != nil {
				return err
			}
			if !claimed {
				return nil
			}

			trial, err := m.store.GetTrial(gctx, trialID)
			if err != nil {
				return err
			}

			m.notifyProgress(ProgressEvent{
				EventType:   EventTrialStart,
				RunID:       runID,
				TrialID:     trialID,
				Question:    trial.Question,
				TrialNum:    num,
				TotalTrials: len(trials),
			})

			m.ExecuteTrial(gctx, agent, trial)

			m.notifyProgress(ProgressEvent{
				EventType:   EventTrialComplete,
				RunID:       runID,
				TrialID:     trialID,
				Question:    trial.Question,
				TrialNum:    num,
				TotalTrials: len(trials),
				Status:      trial.Status,
				DurationMS:  trial.DurationMS,
				Score:       trial.Score(),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return m.finishRun(context.WithoutCancel(ctx), runID)
}

func (m *Manager) runStatus(ctx context.Context, runID string) (models.RunStatus, error) {
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	return run.Status, nil
}

// finishRun settles the run's terminal status from the trial states left
// behind: unstarted trials mean the run was paused or cancelled, otherwise it
// completed.
func (m *Manager) finishRun(ctx context.Context, runID string) (*models.Run, error) {
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	trials, err := m.store.ListTrials(ctx, runID)
	if err != nil {
		return nil, err
	}

	pending := 0
	for i := range trials {
		if !trials[i].Status.Terminal() {
			pending++
		}
	}

	switch {
	case run.Status == models.RunCancelled:
		// Trials never started stay visible as CANCELLED.
		for i := range trials {
			if trials[i].Status == models.TrialPending {
				trials[i].Status = models.TrialCancelled
				if err := m.store.UpdateTrial(ctx, &trials[i]); err != nil {
					return nil, err
				}
			}
		}
		m.notifyProgress(ProgressEvent{EventType: EventRunCancelled, RunID: runID})
	case run.Status == models.RunPaused, pending > 0:
		if err := m.store.UpdateRunStatus(ctx, runID, models.RunPaused); err != nil {
			return nil, err
		}
		run.Status = models.RunPaused
		m.notifyProgress(ProgressEvent{EventType: EventRunPaused, RunID: runID})
	default:
		if err := m.store.UpdateRunStatus(ctx, runID, models.RunCompleted); err != nil {
			return nil, err
		}
		run.Status = models.RunCompleted
		m.notifyProgress(ProgressEvent{EventType: EventRunComplete, RunID: runID})
	}
	return run, nil
}

// PauseRun signals a running run to stop claiming new trials.
func (m *Manager) PauseRun(ctx context.Context, runID string) error {
	return m.signalRun(ctx, runID, models.RunPaused, models.RunRunning)
}

// ResumeRun moves a paused run back to PENDING so ExecuteRun can pick it up.
func (m *Manager) ResumeRun(ctx context.Context, runID string) error {
	return m.signalRun(ctx, runID, models.RunPending, models.RunPaused)
}

// CancelRun signals a pending or running run to stop; trials already in
// flight finish normally, trials never started move to CANCELLED.
func (m *Manager) CancelRun(ctx context.Context, runID string) error {
	err := m.signalRun(ctx, runID, models.RunCancelled, models.RunPending, models.RunRunning, models.RunPaused)
	if err != nil {
		return err
	}

	trials, err := m.store.ListTrials(ctx, runID)
	if err != nil {
		return err
	}
	for i := range trials {
		switch trials[i].Status {
		case models.TrialPending, models.TrialPaused:
			trials[i].Status = models.TrialCancelled
			if err := m.store.UpdateTrial(ctx, &trials[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) signalRun(ctx context.Context, runID string, to models.RunStatus, from ...models.RunStatus) error {
	run, err := m.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	ok := false
	for _, s := range from {
		if run.Status == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("run %s is %s, cannot transition to %s", runID, run.Status, to)
	}
	return m.store.UpdateRunStatus(ctx, runID, to)
}

// AggregateRun recomputes the run summary from its trials. Aggregates are
// never maintained incrementally.
func (m *Manager) AggregateRun(ctx context.Context, runID string) (*models.RunAggregate, error) {
	trials, err := m.store.ListTrials(ctx, runID)
	if err != nil {
		return nil, err
	}
	agg := models.Aggregate(trials)
	return &agg, nil
}
