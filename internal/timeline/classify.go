package timeline

import (
	"encoding/json"
	"strings"

	"github.com/spboyer/gdabench/internal/trace"
)

// Event titles. Grouping keys off these, so they are fixed strings rather
// than free-form text.
const (
	TitleThought  = "Agent Thought"
	TitleProgress = "Progress Update"
	TitleFinal    = "Final Response"
	TitleSchema   = "Schema Lookup"
	TitleData     = "Data Query"
	TitleChart    = "Chart Generation"
	TitleAnalysis = "Advanced Analysis"
	TitleError    = "Error"
	TitleUnknown  = "Unknown Event"
)

// classify maps a normalized message to its display shape. Unknown shapes map
// to a generic event carrying the raw JSON; classification never fails.
func classify(msg *trace.Message) (icon, title, content, contentType string) {
	switch {
	case msg.Text != nil:
		body := strings.Join(msg.Text.Parts, " ")
		switch msg.Text.Kind {
		case trace.TextThought:
			return "💭", TitleThought, body, "text"
		case trace.TextProgress:
			return "⏳", TitleProgress, body, "text"
		default:
			return "💬", TitleFinal, body, "text"
		}
	case msg.Schema != nil:
		return "🗂️", TitleSchema, compactJSON(msg.Schema.Query), "json"
	case msg.Data != nil:
		if msg.Data.GeneratedSQL != "" {
			return "🛢️", TitleData, msg.Data.GeneratedSQL, "sql"
		}
		return "🛢️", TitleData, compactJSON(msg.Data.Query), "json"
	case msg.Chart != nil:
		return "📊", TitleChart, compactJSON(msg.Chart.VegaConfig), "json"
	case msg.Analysis != nil:
		return "🧪", TitleAnalysis, compactJSON(msg.Analysis.ProgressEvent), "json"
	case msg.Error != nil:
		return "❌", TitleError, msg.Error.Text, "text"
	default:
		return "❓", TitleUnknown, compactJSON(msg.Raw), "json"
	}
}

func compactJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
