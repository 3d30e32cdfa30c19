// Package trace normalizes the raw agent response trace into a canonical
// message form and extracts typed views from it (final text, SQL, data rows,
// chart metadata, Looker queries).
//
// The wire shape is tolerant by design: messages arrive as loosely typed JSON
// with either snake_case or camelCase field naming depending on which client
// produced them. All of that tolerance lives here, in one translation step;
// nothing downstream ever looks at a raw message again.
package trace

import (
	"encoding/json"
)

// TextKind classifies a text part of the trace.
type TextKind string

const (
	TextThought  TextKind = "THOUGHT"
	TextProgress TextKind = "PROGRESS"
	TextFinal    TextKind = "FINAL"
)

// Message is the canonical form of one trace message. Exactly one of the
// payload pointers is typically set; a message with none set is an unknown
// shape and is preserved via Raw only.
type Message struct {
	Timestamp string
	Text      *TextMessage
	Data      *DataMessage
	Chart     *ChartMessage
	Schema    *SchemaMessage
	Analysis  *AnalysisMessage
	Error     *ErrorMessage

	// Raw is the original wire message, kept for display and for the
	// AI-judge prompt which embeds the full trace verbatim.
	Raw map[string]any
}

// TextMessage carries agent prose: thoughts, progress notes, or the final
// response.
type TextMessage struct {
	Kind  TextKind
	Parts []string
}

// DataMessage carries a query execution step: the structured query, generated
// SQL, and (when the query succeeded) result rows.
type DataMessage struct {
	Query        map[string]any
	GeneratedSQL string
	Rows         []map[string]any
	HasResult    bool
	BigQueryJob  map[string]any
}

// LookerQuery returns the structured Looker query payload, if this data step
// carries one.
func (d *DataMessage) LookerQuery() map[string]any {
	if d.Query == nil {
		return nil
	}
	if lq, ok := d.Query["looker"].(map[string]any); ok {
		return lq
	}
	return nil
}

// ChartMessage carries a chart generation step with its Vega-Lite config.
type ChartMessage struct {
	Query      map[string]any
	VegaConfig map[string]any
}

// MarkType returns the chart's mark, tolerating both Vega-Lite forms: a bare
// string ("bar") or an object with a type field ({"type": "bar"}).
func (c *ChartMessage) MarkType() string {
	if c.VegaConfig == nil {
		return ""
	}
	switch mark := c.VegaConfig["mark"].(type) {
	case string:
		return mark
	case map[string]any:
		if t, ok := mark["type"].(string); ok {
			return t
		}
	}
	return ""
}

// SchemaMessage carries a schema lookup step.
type SchemaMessage struct {
	Query  map[string]any
	Result map[string]any
}

// AnalysisMessage carries an advanced-analysis step.
type AnalysisMessage struct {
	Query         any
	ProgressEvent map[string]any
}

// ErrorMessage carries an error emitted mid-trace.
type ErrorMessage struct {
	Text string
	Raw  map[string]any
}

// field looks up m[name] accepting any of the given aliases. The first alias
// present wins.
func field(m map[string]any, names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := m[n]; ok {
			return v, true
		}
	}
	return nil, false
}

func mapField(m map[string]any, names ...string) map[string]any {
	v, ok := field(m, names...)
	if !ok {
		return nil
	}
	mm, _ := v.(map[string]any)
	return mm
}

func stringField(m map[string]any, names ...string) string {
	v, ok := field(m, names...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Normalize converts a raw wire trace into canonical messages, preserving
// order. Unknown shapes normalize to a Message with only Raw set; nothing is
// dropped and nothing errors.
func Normalize(raw []map[string]any) []Message {
	msgs := make([]Message, 0, len(raw))
	for _, rm := range raw {
		msgs = append(msgs, normalizeOne(rm))
	}
	return msgs
}

// NormalizeJSON parses a JSON array of wire messages and normalizes it.
func NormalizeJSON(data []byte) ([]Message, error) {
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return Normalize(raw), nil
}

func normalizeOne(rm map[string]any) Message {
	msg := Message{
		Timestamp: stringField(rm, "timestamp"),
		Raw:       rm,
	}

	sys := mapField(rm, "system_message", "systemMessage")
	if sys == nil {
		return msg
	}

	if text := mapField(sys, "text"); text != nil {
		msg.Text = normalizeText(text)
	}
	if data := mapField(sys, "data"); data != nil {
		msg.Data = normalizeData(data)
	}
	if chart := mapField(sys, "chart"); chart != nil {
		msg.Chart = &ChartMessage{
			Query:      mapField(chart, "query"),
			VegaConfig: mapField(mapField(chart, "result"), "vega_config", "vegaConfig"),
		}
	}
	if schema := mapField(sys, "schema"); schema != nil {
		msg.Schema = &SchemaMessage{
			Query:  mapField(schema, "query"),
			Result: mapField(schema, "result"),
		}
	}
	if analysis := mapField(sys, "analysis"); analysis != nil {
		q, _ := field(analysis, "query")
		msg.Analysis = &AnalysisMessage{
			Query:         q,
			ProgressEvent: mapField(analysis, "progress_event", "progressEvent"),
		}
	}
	if errVal, ok := field(sys, "error"); ok {
		em := &ErrorMessage{}
		switch v := errVal.(type) {
		case string:
			em.Text = v
		case map[string]any:
			em.Raw = v
			em.Text = stringField(v, "text", "message")
		}
		msg.Error = em
	}

	return msg
}

func normalizeText(text map[string]any) *TextMessage {
	tm := &TextMessage{Kind: TextFinal}

	switch stringField(text, "text_type", "textType") {
	case "THOUGHT":
		tm.Kind = TextThought
	case "PROGRESS":
		tm.Kind = TextProgress
	}

	if parts, ok := field(text, "parts"); ok {
		if list, ok := parts.([]any); ok {
			for _, p := range list {
				if s, ok := p.(string); ok {
					tm.Parts = append(tm.Parts, s)
				}
			}
		}
	}
	return tm
}

func normalizeData(data map[string]any) *DataMessage {
	dm := &DataMessage{
		Query:        mapField(data, "query"),
		GeneratedSQL: stringField(data, "generated_sql", "generatedSql"),
		BigQueryJob:  mapField(data, "big_query_job", "bigQueryJob"),
	}

	if result := mapField(data, "result"); result != nil {
		if rows, ok := field(result, "data"); ok {
			dm.HasResult = true
			// A present-but-empty result is a zero-row answer, not a
			// missing one, so Rows stays non-nil.
			dm.Rows = []map[string]any{}
			if list, ok := rows.([]any); ok {
				for _, r := range list {
					if row, ok := r.(map[string]any); ok {
						dm.Rows = append(dm.Rows, row)
					}
				}
			}
		}
	}
	return dm
}
