package asserts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spboyer/gdabench/internal/llm"
	"github.com/spboyer/gdabench/internal/models"
)

// checkAIJudge delegates the verdict to the LLM client. It is the only
// checker that performs an external call, so it is the only one with explicit
// error recovery: any failure from the client becomes a failed result, never
// a propagated error.
func (e *Engine) checkAIJudge(ctx context.Context, in *Input, a models.Assertion) models.AssertionResult {
	if e.llm == nil {
		return fail(a, "No LLM client configured for AI_JUDGE assertions.")
	}
	if in.Question == "" {
		return fail(a, "No question available for AI_JUDGE evaluation.")
	}
	criterion := a.Value.String()
	if criterion == "" {
		return fail(a, "Assert value is empty.")
	}

	prompt := buildJudgePrompt(in.Question, in.RawTrace, criterion)

	var verdict llm.Verdict
	if err := e.llm.GenerateStructured(ctx, prompt, &verdict); err != nil {
		e.logger.Warn("AI judge call failed", "error", err)
		return failErr(a, fmt.Sprintf("AI judge call failed: %v", err), err)
	}

	if verdict.Verdict {
		return pass(a, verdict.Explanation)
	}
	return fail(a, verdict.Explanation)
}

func buildJudgePrompt(question string, rawTrace []map[string]any, criterion string) string {
	traceJSON, err := json.MarshalIndent(rawTrace, "", "  ")
	if err != nil {
		traceJSON = []byte("[]")
	}

	var sb strings.Builder
	sb.WriteString("You are evaluating the response of a data-analytics agent.\n\n")
	sb.WriteString("## User question\n")
	sb.WriteString(question)
	sb.WriteString("\n\n## Full response trace (JSON)\n```json\n")
	sb.Write(traceJSON)
	sb.WriteString("\n```\n\n## Criterion\n")
	sb.WriteString(criterion)
	sb.WriteString("\n\nDecide whether the agent's response satisfies the criterion. ")
	sb.WriteString("Reply with a JSON object containing a boolean `verdict` and a short `explanation`.\n")
	return sb.String()
}
