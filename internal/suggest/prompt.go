package suggest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spboyer/gdabench/internal/models"
)

const assertTypeDocs = `Available assert types:
- TEXT_CONTAINS: the agent's final response text contains the substring in "value" (case-sensitive)
- QUERY_CONTAINS: the SQL generated during the trial contains the substring in "value" (case-insensitive)
- DATA_CHECK_ROW_COUNT: the last data result has exactly "value" rows
- DATA_CHECK_ROW: some row of the last data result matches every column in "columns"
- CHART_CHECK_TYPE: the last generated chart uses the mark type in "value" (e.g. bar, line)
- AI_JUDGE: a model judges the trace against the free-text criterion in "value"`

const suggestInstructions = `You are reviewing one successful run of a conversational data-analytics agent.
Propose up to %d assertions that would catch a future regression of this behavior.

Rules:
- Only use the assert types listed above.
- Prefer checks anchored in the data: row counts, specific cell values, SQL fragments.
- Do not propose assertions equivalent to the existing ones listed below.
- Keep substring values short and unlikely to change between phrasings.
- Every suggestion needs a one-sentence rationale.

Respond with JSON: {"suggestions": [{"type": ..., "value": ..., "columns": ..., "rationale": ...}]}`

func buildPrompt(trial *models.Trial, maxSuggestions int) string {
	var b strings.Builder

	b.WriteString(assertTypeDocs)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, suggestInstructions, maxSuggestions)

	fmt.Fprintf(&b, "\n\nQuestion:\n%s\n", trial.Question)

	if len(trial.Asserts) > 0 {
		b.WriteString("\nExisting assertions:\n")
		for i := range trial.Asserts {
			fmt.Fprintf(&b, "- %s\n", trial.Asserts[i].Describe())
		}
	}

	b.WriteString("\nTrace:\n")
	if raw, err := json.MarshalIndent(trial.TraceResults, "", "  "); err == nil {
		b.Write(raw)
	}

	return b.String()
}
