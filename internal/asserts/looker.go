package asserts

import (
	"fmt"
	"strings"

	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/trace"
)

// checkLookerQuery passes when at least one Looker query extracted from the
// trace satisfies every constraint set on the assertion params. When none
// does, the reasoning reports each candidate's failures so the gap is visible
// without re-running anything.
func checkLookerQuery(in *Input, a models.Assertion) models.AssertionResult {
	if a.Params.IsEmpty() {
		return fail(a, "Assert params are empty.")
	}

	candidates := trace.LookerQueries(in.Messages)
	if len(candidates) == 0 {
		return fail(a, "No Looker query found in trace.")
	}

	var allFailures []string
	for i, candidate := range candidates {
		failures := lookerQueryFailures(candidate, a.Params)
		if len(failures) == 0 {
			return pass(a, fmt.Sprintf("Looker query %d of %d satisfies all constraints.", i+1, len(candidates)))
		}
		allFailures = append(allFailures,
			fmt.Sprintf("query %d: %s", i+1, strings.Join(failures, "; ")))
	}

	return fail(a, "No Looker query satisfies all constraints. "+strings.Join(allFailures, " | "))
}

// lookerQueryFailures returns one message per unsatisfied constraint; an empty
// slice means full match.
func lookerQueryFailures(q map[string]any, p *models.LookerQueryParams) []string {
	var failures []string

	if p.Model != "" {
		if actual := stringValue(q["model"]); actual != p.Model {
			failures = append(failures, fmt.Sprintf("model %q != %q", actual, p.Model))
		}
	}
	if p.Explore != "" {
		if actual := stringValue(q["explore"]); actual != p.Explore {
			failures = append(failures, fmt.Sprintf("explore %q != %q", actual, p.Explore))
		}
	}
	if p.Limit != "" {
		if actual := stringValue(q["limit"]); actual != p.Limit.String() {
			failures = append(failures, fmt.Sprintf("limit %q != %q", actual, p.Limit))
		}
	}

	if len(p.Fields) > 0 {
		if missing := missingStrings(p.Fields, q["fields"]); len(missing) > 0 {
			failures = append(failures, fmt.Sprintf("missing fields %v", missing))
		}
	}
	if len(p.Sorts) > 0 {
		if missing := missingStrings(p.Sorts, q["sorts"]); len(missing) > 0 {
			failures = append(failures, fmt.Sprintf("missing sorts %v", missing))
		}
	}

	if len(p.Filters) > 0 {
		actual := filterPairs(q["filters"])
		for field, value := range p.Filters {
			want := stringValue(value)
			if actual[field] != want {
				failures = append(failures,
					fmt.Sprintf("filter %s=%q not satisfied (got %q)", field, want, actual[field]))
			}
		}
	}

	return failures
}

// filterPairs normalizes the two wire forms of Looker filters into a flat
// field->stringified-value map: either a list of {field, value} objects or a
// plain mapping.
func filterPairs(v any) map[string]string {
	pairs := make(map[string]string)
	switch filters := v.(type) {
	case []any:
		for _, f := range filters {
			if fm, ok := f.(map[string]any); ok {
				field := stringValue(fm["field"])
				if field != "" {
					pairs[field] = stringValue(fm["value"])
				}
			}
		}
	case map[string]any:
		for field, value := range filters {
			pairs[field] = stringValue(value)
		}
	}
	return pairs
}

// missingStrings returns the expected entries absent from the actual list,
// treating both as sets.
func missingStrings(expected []string, actual any) []string {
	have := make(map[string]bool)
	if list, ok := actual.([]any); ok {
		for _, v := range list {
			have[stringValue(v)] = true
		}
	}

	var missing []string
	for _, want := range expected {
		if !have[want] {
			missing = append(missing, want)
		}
	}
	return missing
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	// JSON numbers arrive as float64; render integral ones without the ".0"
	// so "limit: 500" compares cleanly.
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
