// Package store persists agents, suites, runs, and trials. The canonical
// implementation is SQLite-backed; everything above it talks to the [Store]
// interface.
package store

import (
	"context"
	"errors"

	"github.com/spboyer/gdabench/internal/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence surface for the harness.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
	DeleteAgent(ctx context.Context, id string) error

	// Suites and their frozen snapshots
	SaveSuite(ctx context.Context, suite *models.Suite) error
	GetSuite(ctx context.Context, id string) (*models.Suite, error)
	ListSuites(ctx context.Context) ([]models.Suite, error)
	CreateSnapshot(ctx context.Context, snap *models.SuiteSnapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.SuiteSnapshot, error)

	// Runs
	CreateRun(ctx context.Context, run *models.Run, trials []models.Trial) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus) error

	// Trials
	GetTrial(ctx context.Context, id string) (*models.Trial, error)
	ListTrials(ctx context.Context, runID string) ([]models.Trial, error)
	UpdateTrial(ctx context.Context, trial *models.Trial) error

	// ClaimTrial atomically moves a trial from PENDING to RUNNING. It
	// reports false when the trial was not PENDING, which makes it safe
	// for concurrent workers to race on the same trial.
	ClaimTrial(ctx context.Context, trialID string) (bool, error)

	// Suggestions
	SaveSuggestions(ctx context.Context, suggestions []models.SuggestedAssertion) error
	ListSuggestions(ctx context.Context, trialID string) ([]models.SuggestedAssertion, error)
	SetSuggestionAccepted(ctx context.Context, id string, accepted bool) error

	Close() error
}
