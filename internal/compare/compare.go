// Package compare classifies the differences between two runs of the same
// suite: which cases regressed, which improved, and how accuracy and latency
// moved overall.
package compare

import (
	"context"
	"fmt"
	"sort"

	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/statistics"
	"github.com/spboyer/gdabench/internal/store"
)

// DefaultScoreEpsilon is the minimum score movement that counts as a real
// change. Score deltas within the epsilon classify as STABLE, so float noise
// and single borderline judge verdicts do not show up as regressions.
const DefaultScoreEpsilon = 0.01

// Classification labels one aligned case pair.
type Classification string

const (
	Regression Classification = "REGRESSION"
	Improved   Classification = "IMPROVED"
	Stable     Classification = "STABLE"
	New        Classification = "NEW"
	Removed    Classification = "REMOVED"
	Error      Classification = "ERROR"
)

// Case is the comparison of one logical test case across the two runs.
type Case struct {
	OriginalExampleID string         `json:"original_example_id"`
	Question          string         `json:"question"`
	Classification    Classification `json:"classification"`

	BaseScore       *float64 `json:"base_score,omitempty"`
	ChallengerScore *float64 `json:"challenger_score,omitempty"`
	ScoreDelta      *float64 `json:"score_delta,omitempty"`

	BaseDurationMS       int64 `json:"base_duration_ms,omitempty"`
	ChallengerDurationMS int64 `json:"challenger_duration_ms,omitempty"`
}

// Result is the full outcome of comparing two runs.
type Result struct {
	BaseRunID       string `json:"base_run_id"`
	ChallengerRunID string `json:"challenger_run_id"`

	Cases []Case `json:"cases"`

	// AccuracyDelta is mean(challenger scores) - mean(base scores) over
	// non-ERROR cases present in both runs; nil when no case qualifies.
	AccuracyDelta *float64 `json:"accuracy_delta,omitempty"`

	// DurationDeltaAvgMS is the average signed duration change over the
	// same cases.
	DurationDeltaAvgMS int64 `json:"duration_delta_avg_ms"`

	RegressionsCount  int `json:"regressions_count"`
	ImprovementsCount int `json:"improvements_count"`
	ErrorsCount       int `json:"errors_count"`

	// ScoreDeltaCI is a bootstrap confidence interval over the per-case
	// score deltas; nil with fewer than two scored cases. An interval that
	// excludes zero marks the accuracy change as significant.
	ScoreDeltaCI *statistics.ConfidenceInterval `json:"score_delta_ci,omitempty"`

	// AssertTypeDeltas averages the signed score delta per assertion type
	// over cases present in both runs, surfacing which kind of check moved.
	AssertTypeDeltas map[models.AssertKind]float64 `json:"assert_type_deltas,omitempty"`
}

// Engine compares runs loaded from the store.
type Engine struct {
	store   store.Store
	epsilon float64
	ciSeed  int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithScoreEpsilon overrides the stability threshold.
func WithScoreEpsilon(eps float64) Option {
	return func(e *Engine) {
		if eps >= 0 {
			e.epsilon = eps
		}
	}
}

// WithCISeed fixes the bootstrap seed so confidence intervals are
// reproducible.
func WithCISeed(seed int64) Option {
	return func(e *Engine) {
		e.ciSeed = seed
	}
}

// NewEngine creates a comparison engine.
func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{store: st, epsilon: DefaultScoreEpsilon, ciSeed: -1}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CompareRuns aligns the two runs' trials by original example id and
// classifies each aligned case.
func (e *Engine) CompareRuns(ctx context.Context, baseRunID, challengerRunID string) (*Result, error) {
	baseTrials, err := e.loadTrials(ctx, baseRunID)
	if err != nil {
		return nil, err
	}
	chalTrials, err := e.loadTrials(ctx, challengerRunID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		BaseRunID:       baseRunID,
		ChallengerRunID: challengerRunID,
	}

	baseByID, baseOrphans := indexTrials(baseTrials)
	chalByID, chalOrphans := indexTrials(chalTrials)

	ids := make([]string, 0, len(baseByID))
	for id := range baseByID {
		ids = append(ids, id)
	}
	for id := range chalByID {
		if _, ok := baseByID[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var scoreDeltas []float64
	var durDeltaSum int64
	var durDeltaN int64
	typeDeltas := map[models.AssertKind][]float64{}

	for _, id := range ids {
		base := baseByID[id]
		chal := chalByID[id]
		c := e.compareCase(id, base, chal)
		result.Cases = append(result.Cases, c)

		switch c.Classification {
		case Regression:
			result.RegressionsCount++
		case Improved:
			result.ImprovementsCount++
		case Error:
			result.ErrorsCount++
		}

		if base != nil && chal != nil && c.Classification != Error {
			if c.BaseScore != nil && c.ChallengerScore != nil {
				scoreDeltas = append(scoreDeltas, *c.ChallengerScore-*c.BaseScore)
			}
			durDeltaSum += chal.DurationMS - base.DurationMS
			durDeltaN++
			collectTypeDeltas(typeDeltas, base, chal)
		}
	}

	// Trials without an original example id (ad-hoc cases) cannot be
	// aligned; they surface as NEW or REMOVED singletons.
	for _, t := range baseOrphans {
		result.Cases = append(result.Cases, Case{
			Question:       t.Question,
			Classification: Removed,
			BaseScore:      t.Score(),
			BaseDurationMS: t.DurationMS,
		})
	}
	for _, t := range chalOrphans {
		result.Cases = append(result.Cases, Case{
			Question:             t.Question,
			Classification:       New,
			ChallengerScore:      t.Score(),
			ChallengerDurationMS: t.DurationMS,
		})
	}

	if len(scoreDeltas) > 0 {
		var sum float64
		for _, d := range scoreDeltas {
			sum += d
		}
		delta := sum / float64(len(scoreDeltas))
		result.AccuracyDelta = &delta
	}
	if len(scoreDeltas) >= 2 {
		ci := statistics.BootstrapCIWithSeed(scoreDeltas, 0.95, e.ciSeed)
		result.ScoreDeltaCI = &ci
	}
	if durDeltaN > 0 {
		result.DurationDeltaAvgMS = durDeltaSum / durDeltaN
	}
	if len(typeDeltas) > 0 {
		result.AssertTypeDeltas = make(map[models.AssertKind]float64, len(typeDeltas))
		for kind, deltas := range typeDeltas {
			var sum float64
			for _, d := range deltas {
				sum += d
			}
			result.AssertTypeDeltas[kind] = sum / float64(len(deltas))
		}
	}
	return result, nil
}

func (e *Engine) loadTrials(ctx context.Context, runID string) ([]models.Trial, error) {
	if _, err := e.store.GetRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	trials, err := e.store.ListTrials(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("listing trials for run %s: %w", runID, err)
	}
	return trials, nil
}

// indexTrials maps trials by original example id. Trials without one are
// returned separately; they cannot be aligned across runs.
func indexTrials(trials []models.Trial) (map[string]*models.Trial, []*models.Trial) {
	byID := make(map[string]*models.Trial, len(trials))
	var orphans []*models.Trial
	for i := range trials {
		t := &trials[i]
		if t.OriginalExampleID == "" {
			orphans = append(orphans, t)
			continue
		}
		if _, ok := byID[t.OriginalExampleID]; !ok {
			byID[t.OriginalExampleID] = t
		}
	}
	return byID, orphans
}

func (e *Engine) compareCase(id string, base, chal *models.Trial) Case {
	c := Case{OriginalExampleID: id}

	switch {
	case base == nil:
		c.Question = chal.Question
		c.Classification = New
		c.ChallengerScore = chal.Score()
		c.ChallengerDurationMS = chal.DurationMS
		return c
	case chal == nil:
		c.Question = base.Question
		c.Classification = Removed
		c.BaseScore = base.Score()
		c.BaseDurationMS = base.DurationMS
		return c
	}

	c.Question = chal.Question
	c.BaseDurationMS = base.DurationMS
	c.ChallengerDurationMS = chal.DurationMS

	if base.Status == models.TrialFailed || chal.Status == models.TrialFailed ||
		!base.Status.Terminal() || !chal.Status.Terminal() {
		c.Classification = Error
		return c
	}

	c.BaseScore = base.Score()
	c.ChallengerScore = chal.Score()
	if c.BaseScore == nil || c.ChallengerScore == nil {
		c.Classification = Stable
		return c
	}

	delta := *c.ChallengerScore - *c.BaseScore
	c.ScoreDelta = &delta
	switch {
	case delta < -e.epsilon:
		c.Classification = Regression
	case delta > e.epsilon:
		c.Classification = Improved
	default:
		c.Classification = Stable
	}
	return c
}

// collectTypeDeltas aligns the two trials' assertion results by id (falling
// back to content hash) and records the signed score delta under the
// assertion's type.
func collectTypeDeltas(acc map[models.AssertKind][]float64, base, chal *models.Trial) {
	baseByKey := make(map[string]*models.AssertionResult, len(base.AssertionResults))
	for i := range base.AssertionResults {
		r := &base.AssertionResults[i]
		baseByKey[assertKey(&r.Assertion)] = r
	}
	for i := range chal.AssertionResults {
		r := &chal.AssertionResults[i]
		b, ok := baseByKey[assertKey(&r.Assertion)]
		if !ok {
			continue
		}
		acc[r.Assertion.Kind] = append(acc[r.Assertion.Kind], r.Score-b.Score)
	}
}

func assertKey(a *models.Assertion) string {
	if a.ID != "" {
		return a.ID
	}
	return a.ContentHash()
}
