package trace

import (
	"encoding/json"
	"strings"
)

// FinalText concatenates every non-thought text part in trace order,
// space-joined. Progress notes and the final response are both included; the
// agent's internal thoughts are not. This is the text TEXT_CONTAINS matches
// against and what the UI shows as the answer.
func FinalText(msgs []Message) string {
	var parts []string
	for i := range msgs {
		t := msgs[i].Text
		if t == nil || t.Kind == TextThought {
			continue
		}
		parts = append(parts, t.Parts...)
	}
	return strings.Join(parts, " ")
}

// QueryText concatenates, across all messages in order, every generated SQL
// string and every structured query object (JSON-serialized) found under a
// data step. Cumulative on purpose: QUERY_CONTAINS assertions commonly match
// across multi-step reasoning, e.g. a schema lookup plus the final query.
func QueryText(msgs []Message) string {
	var parts []string
	for i := range msgs {
		d := msgs[i].Data
		if d == nil {
			continue
		}
		if d.GeneratedSQL != "" {
			parts = append(parts, d.GeneratedSQL)
		}
		if d.Query != nil {
			if b, err := json.Marshal(d.Query); err == nil {
				parts = append(parts, string(b))
			}
		}
	}
	return strings.Join(parts, " ")
}

// LastDataRows returns the result rows of the most recent data-bearing
// message, or nil when the trace has none. Last wins: agents may emit
// intermediate or failed attempts before the authoritative result, and
// assertions bind to the final state.
func LastDataRows(msgs []Message) []map[string]any {
	for i := len(msgs) - 1; i >= 0; i-- {
		d := msgs[i].Data
		if d != nil && d.HasResult {
			return d.Rows
		}
	}
	return nil
}

// LastChartType returns the mark type of the most recent chart message, or ""
// when the trace has no chart.
func LastChartType(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		c := msgs[i].Chart
		if c == nil || c.VegaConfig == nil {
			continue
		}
		return c.MarkType()
	}
	return ""
}

// LookerQueries collects, in trace order, every structured Looker query found
// under a data step. All of them, not just the last: LOOKER_QUERY_MATCH
// accepts any candidate that satisfies its constraints.
func LookerQueries(msgs []Message) []map[string]any {
	var queries []map[string]any
	for i := range msgs {
		d := msgs[i].Data
		if d == nil {
			continue
		}
		if lq := d.LookerQuery(); lq != nil {
			queries = append(queries, lq)
		}
	}
	return queries
}
