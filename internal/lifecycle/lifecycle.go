// Package lifecycle owns the run and trial state machines: creating runs
// against frozen suite snapshots, executing trials through their stages,
// and the cooperative pause/resume/cancel controls.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spboyer/gdabench/internal/asserts"
	"github.com/spboyer/gdabench/internal/gdaclient"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/store"
)

const defaultWorkers = 4

// Suggester is the optional collaborator that proposes new assertions from a
// completed trial's trace. When absent, suggestion generation is skipped.
type Suggester interface {
	Generate(ctx context.Context, trial *models.Trial) ([]models.SuggestedAssertion, error)
}

// Manager drives runs and trials. Agent and LLM clients are stateless and
// shared across concurrent trial workers; each trial row is exclusively owned
// by the one worker that claimed it.
type Manager struct {
	store     store.Store
	agents    gdaclient.Client
	engine    *asserts.Engine
	suggester Suggester
	workers   int
	logger    *slog.Logger

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates during run execution.
type ProgressListener func(event ProgressEvent)

// EventType identifies a progress event.
type EventType string

const (
	EventRunStart      EventType = "run_start"
	EventRunComplete   EventType = "run_complete"
	EventRunCancelled  EventType = "run_cancelled"
	EventRunPaused     EventType = "run_paused"
	EventTrialStart    EventType = "trial_start"
	EventTrialComplete EventType = "trial_complete"
)

// ProgressEvent is one progress update.
type ProgressEvent struct {
	EventType   EventType
	RunID       string
	TrialID     string
	Question    string
	TrialNum    int
	TotalTrials int
	Status      models.TrialStatus
	DurationMS  int64
	Score       *float64
}

// Option configures a Manager.
type Option func(*Manager)

// WithSuggester enables best-effort assertion suggestions after each
// completed trial.
func WithSuggester(s Suggester) Option {
	return func(m *Manager) { m.suggester = s }
}

// WithWorkers sets how many trials may execute concurrently.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a lifecycle manager.
func NewManager(st store.Store, agents gdaclient.Client, engine *asserts.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		agents:  agents,
		engine:  engine,
		workers: defaultWorkers,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OnProgress registers a progress listener.
func (m *Manager) OnProgress(listener ProgressListener) {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Manager) notifyProgress(event ProgressEvent) {
	m.progressMu.Lock()
	listeners := make([]ProgressListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.progressMu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}
