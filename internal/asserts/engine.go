// Package asserts evaluates assertions against an agent response trace.
//
// Every checker is a pure function from (extracted response view, assertion)
// to an AssertionResult; the only side-effecting check is AI_JUDGE, which
// calls out to the LLM client and is the only checker wrapped in explicit
// error recovery.
package asserts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spboyer/gdabench/internal/llm"
	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/trace"
)

// Input is the response view the engine evaluates against: the question that
// was asked, the normalized trace, the raw wire trace (embedded verbatim in
// the judge prompt), and the response timings.
type Input struct {
	Question        string
	Messages        []trace.Message
	RawTrace        []map[string]any
	TotalDurationMS int64
}

// Engine dispatches assertions to their checkers.
type Engine struct {
	llm    llm.Client
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLLM supplies the client used by AI_JUDGE assertions. Without one, judge
// assertions fail with a descriptive reasoning instead of erroring.
func WithLLM(c llm.Client) Option {
	return func(e *Engine) { e.llm = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an assertion engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// EvaluateAll evaluates every assertion in order and returns exactly one
// result per assertion, order-preserving. No assertion is dropped and no
// checker failure aborts evaluation of the rest.
func (e *Engine) EvaluateAll(ctx context.Context, in *Input, asserts []models.Assertion) []models.AssertionResult {
	results := make([]models.AssertionResult, 0, len(asserts))
	for _, a := range asserts {
		results = append(results, e.evaluate(ctx, in, a))
	}
	return results
}

func (e *Engine) evaluate(ctx context.Context, in *Input, a models.Assertion) models.AssertionResult {
	switch a.Kind {
	case models.AssertTextContains:
		return checkTextContains(in, a)
	case models.AssertQueryContains:
		return checkQueryContains(in, a)
	case models.AssertDurationMaxMS, models.AssertLatencyMaxMS:
		return checkDurationMax(in, a)
	case models.AssertDataRowCount:
		return checkDataRowCount(in, a)
	case models.AssertDataRow:
		return checkDataRow(in, a)
	case models.AssertChartType:
		return checkChartType(in, a)
	case models.AssertLookerQuery:
		return checkLookerQuery(in, a)
	case models.AssertAIJudge:
		return e.checkAIJudge(ctx, in, a)
	default:
		e.logger.Warn("unsupported assert type", "type", a.Kind)
		return fail(a, fmt.Sprintf("Unsupported assert type: %s", a.Kind))
	}
}

func pass(a models.Assertion, reasoning string) models.AssertionResult {
	return models.AssertionResult{Assertion: a, Passed: true, Score: 1.0, Reasoning: reasoning}
}

func fail(a models.Assertion, reasoning string) models.AssertionResult {
	return models.AssertionResult{Assertion: a, Passed: false, Score: 0.0, Reasoning: reasoning}
}

func failErr(a models.Assertion, reasoning string, err error) models.AssertionResult {
	r := fail(a, reasoning)
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	return r
}
