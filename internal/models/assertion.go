package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlexValue is a scalar that accepts either a string or a number on the wire.
// Assertion payloads written by hand ("value: 3") and by the suggester
// ("value": "3") both land here as the literal text.
type FlexValue string

func (v *FlexValue) UnmarshalYAML(node *yaml.Node) error {
	*v = FlexValue(node.Value)
	return nil
}

func (v *FlexValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = FlexValue(s)
		return nil
	}
	*v = FlexValue(strings.Trim(string(b), `"`))
	return nil
}

func (v FlexValue) String() string { return string(v) }

// Float64 parses the value as a number.
func (v FlexValue) Float64() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
}

// Int parses the value as an integer, tolerating a float form like "3.0".
func (v FlexValue) Int() (int, error) {
	s := strings.TrimSpace(string(v))
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// AssertKind identifies the type of assertion check.
type AssertKind string

const (
	AssertTextContains  AssertKind = "TEXT_CONTAINS"
	AssertQueryContains AssertKind = "QUERY_CONTAINS"
	AssertDurationMaxMS AssertKind = "DURATION_MAX_MS"
	// AssertLatencyMaxMS is a deprecated alias for [AssertDurationMaxMS].
	// Older suites may still carry it; it evaluates identically.
	AssertLatencyMaxMS    AssertKind = "LATENCY_MAX_MS"
	AssertDataRowCount    AssertKind = "DATA_CHECK_ROW_COUNT"
	AssertDataRow         AssertKind = "DATA_CHECK_ROW"
	AssertChartType       AssertKind = "CHART_CHECK_TYPE"
	AssertLookerQuery     AssertKind = "LOOKER_QUERY_MATCH"
	AssertAIJudge         AssertKind = "AI_JUDGE"
)

// KnownAssertKinds lists every kind the engine can evaluate, in display order.
func KnownAssertKinds() []AssertKind {
	return []AssertKind{
		AssertTextContains,
		AssertQueryContains,
		AssertDurationMaxMS,
		AssertDataRowCount,
		AssertDataRow,
		AssertChartType,
		AssertLookerQuery,
		AssertAIJudge,
	}
}

// LookerQueryParams is the structured constraint set for LOOKER_QUERY_MATCH.
// Zero-valued fields are not checked.
type LookerQueryParams struct {
	Model   string            `yaml:"model,omitempty" json:"model,omitempty" mapstructure:"model"`
	Explore string            `yaml:"explore,omitempty" json:"explore,omitempty" mapstructure:"explore"`
	Fields  []string          `yaml:"fields,omitempty" json:"fields,omitempty" mapstructure:"fields"`
	Filters map[string]any    `yaml:"filters,omitempty" json:"filters,omitempty" mapstructure:"filters"`
	Sorts   []string          `yaml:"sorts,omitempty" json:"sorts,omitempty" mapstructure:"sorts"`
	Limit   FlexValue         `yaml:"limit,omitempty" json:"limit,omitempty" mapstructure:"limit"`
}

// IsEmpty reports whether no constraint is set at all.
func (p *LookerQueryParams) IsEmpty() bool {
	return p == nil || (p.Model == "" && p.Explore == "" && len(p.Fields) == 0 &&
		len(p.Filters) == 0 && len(p.Sorts) == 0 && p.Limit == "")
}

// Assertion is one typed check attached to an example. Weight > 0 makes it an
// accuracy assertion that contributes to the trial score; weight == 0 makes it
// diagnostic (informational only).
type Assertion struct {
	ID     string     `yaml:"id,omitempty" json:"id,omitempty"`
	Kind   AssertKind `yaml:"type" json:"type"`
	Weight float64    `yaml:"weight" json:"weight"`

	// Value is the scalar payload: substring for the contains checks, the bound
	// for duration checks, expected row count, expected chart mark, or the
	// free-text criterion for AI_JUDGE.
	Value FlexValue `yaml:"value,omitempty" json:"value,omitempty"`

	// Columns maps column name to expected cell value for DATA_CHECK_ROW.
	Columns map[string]any `yaml:"columns,omitempty" json:"columns,omitempty"`

	// Params holds the Looker query constraints for LOOKER_QUERY_MATCH.
	Params *LookerQueryParams `yaml:"params,omitempty" json:"params,omitempty"`
}

// IsAccuracy reports whether the assertion contributes to the trial score.
func (a *Assertion) IsAccuracy() bool { return a.Weight > 0 }

// ContentHash returns a stable hash over the assertion's semantic content,
// ignoring IDs and weights. Used to dedupe suggested assertions against ones
// that already exist on the example.
func (a *Assertion) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", a.Kind, a.Value)
	if len(a.Columns) > 0 {
		keys := make([]string, 0, len(a.Columns))
		for k := range a.Columns {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%v\x00", k, a.Columns[k])
		}
	}
	if !a.Params.IsEmpty() {
		b, _ := json.Marshal(a.Params)
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Describe returns a short human-readable label, used in listings and reports.
func (a *Assertion) Describe() string {
	switch a.Kind {
	case AssertDataRow:
		parts := make([]string, 0, len(a.Columns))
		for k := range a.Columns {
			parts = append(parts, k)
		}
		sort.Strings(parts)
		return fmt.Sprintf("%s(%s)", a.Kind, strings.Join(parts, ","))
	case AssertLookerQuery:
		if a.Params != nil && a.Params.Explore != "" {
			return fmt.Sprintf("%s(%s)", a.Kind, a.Params.Explore)
		}
		return string(a.Kind)
	default:
		if a.Value == "" {
			return string(a.Kind)
		}
		v := a.Value
		if len(v) > 40 {
			v = v[:37] + "..."
		}
		return fmt.Sprintf("%s(%q)", a.Kind, v)
	}
}

// AssertionResult is the immutable outcome of evaluating one assertion against
// one trial. Score is 1.0 on pass and 0.0 on fail; partial credit only appears
// at aggregate level.
type AssertionResult struct {
	Assertion    Assertion `json:"assertion"`
	Passed       bool      `json:"passed"`
	Score        float64   `json:"score"`
	Reasoning    string    `json:"reasoning"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// MeanAccuracyScore averages the scores of accuracy-weighted results.
// Returns nil when no accuracy assertion is present.
func MeanAccuracyScore(results []AssertionResult) *float64 {
	sum, n := 0.0, 0
	for _, r := range results {
		if r.Assertion.IsAccuracy() {
			sum += r.Score
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// SuggestedAssertion is an AI-proposed assertion attached to a completed trial.
// Unlike AssertionResult it is mutable: users may accept, edit, or discard it.
type SuggestedAssertion struct {
	ID        string    `json:"id"`
	TrialID   string    `json:"trial_id"`
	Assertion Assertion `json:"assertion"`
	Rationale string    `json:"rationale,omitempty"`
	Accepted  bool      `json:"accepted"`
}
