package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spboyer/gdabench/internal/compare"
	"github.com/spboyer/gdabench/internal/models"
)

var numPrinter = message.NewPrinter(language.English)

// terminalWidth returns the current terminal width, or a sane default when
// stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// truncate shortens s to maxLen runes, replacing the last rune with "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *s)
}

func trialStatusIcon(status models.TrialStatus) string {
	switch status {
	case models.TrialCompleted:
		return "✅"
	case models.TrialFailed:
		return "❌"
	case models.TrialCancelled:
		return "⏹"
	default:
		return "⏳"
	}
}

// printRunReport writes the per-trial table and the aggregate summary for one run.
func printRunReport(w io.Writer, run *models.Run, trials []models.Trial, agg models.RunAggregate) {
	qWidth := terminalWidth() - 40
	if qWidth < 24 {
		qWidth = 24
	}

	fmt.Fprintln(w, strings.Repeat("-", 70))                                                      //nolint:errcheck
	fmt.Fprintf(w, "  %s  %s  %s  %s\n", padRight("", 2), padRight("Question", qWidth), padRight("Score", 7), "Duration") //nolint:errcheck
	for _, t := range trials {
		fmt.Fprintf(w, "  %s  %s  %s  %s\n", //nolint:errcheck
			trialStatusIcon(t.Status),
			padRight(truncate(t.Question, qWidth), qWidth),
			padRight(formatScore(t.Score()), 7),
			formatDuration(t.DurationMS))
		if t.Status == models.TrialFailed && t.ErrorMessage != "" {
			fmt.Fprintf(w, "       %s\n", truncate(t.ErrorMessage, qWidth+16)) //nolint:errcheck
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 70)) //nolint:errcheck

	fmt.Fprintf(w, "  Run %s  [%s]\n", run.ID, run.Status)                                       //nolint:errcheck
	numPrinter.Fprintf(w, "  Trials: %d total, %d completed, %d failed", agg.Total, agg.Completed, agg.Failed) //nolint:errcheck
	if agg.Pending > 0 {
		numPrinter.Fprintf(w, ", %d pending", agg.Pending) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck
	if agg.Accuracy != nil {
		fmt.Fprintf(w, "  Accuracy: %.1f%%\n", *agg.Accuracy*100) //nolint:errcheck
	}
	if agg.AvgDurationMS > 0 {
		fmt.Fprintf(w, "  Avg duration: %s\n", formatDuration(agg.AvgDurationMS)) //nolint:errcheck
	}
}

// printRunsTable writes the run-history listing.
func printRunsTable(w io.Writer, rows []runRow) {
	const (
		colID       = 14
		colAgent    = 16
		colStatus   = 10
		colTrials   = 8
		colAccuracy = 9
	)

	fmt.Fprintf(w, "  %s  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Run", colID),
		padRight("Agent", colAgent),
		padRight("Status", colStatus),
		padRight("Trials", colTrials),
		padRight("Accuracy", colAccuracy),
		"Created")
	for _, r := range rows {
		accuracy := "-"
		if r.agg.Accuracy != nil {
			accuracy = fmt.Sprintf("%.1f%%", *r.agg.Accuracy*100)
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(truncate(r.run.ID, colID), colID),
			padRight(truncate(r.run.AgentID, colAgent), colAgent),
			padRight(string(r.run.Status), colStatus),
			padRight(fmt.Sprintf("%d/%d", r.agg.Completed, r.agg.Total), colTrials),
			padRight(accuracy, colAccuracy),
			r.run.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
}

func classificationIcon(c compare.Classification) string {
	switch c {
	case compare.Regression:
		return "🔻"
	case compare.Improved:
		return "🔺"
	case compare.Error:
		return "⚠️"
	case compare.New:
		return "➕"
	case compare.Removed:
		return "➖"
	default:
		return "  "
	}
}

// printCompareReport writes the case table and aggregate deltas of a run comparison.
func printCompareReport(w io.Writer, r *compare.Result) {
	qWidth := terminalWidth() - 50
	if qWidth < 24 {
		qWidth = 24
	}

	fmt.Fprintln(w, strings.Repeat("=", 70)) //nolint:errcheck
	fmt.Fprintf(w, " COMPARISON  base=%s  challenger=%s\n", r.BaseRunID, r.ChallengerRunID) //nolint:errcheck
	fmt.Fprintln(w, strings.Repeat("=", 70)) //nolint:errcheck

	fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("", 2),
		padRight("Question", qWidth),
		padRight("Base", 6),
		padRight("Chal", 6),
		"Delta")
	for _, c := range r.Cases {
		delta := "-"
		if c.ScoreDelta != nil {
			delta = fmt.Sprintf("%+.2f", *c.ScoreDelta)
		}
		fmt.Fprintf(w, "  %s  %s  %s  %s  %s  %s\n", //nolint:errcheck
			classificationIcon(c.Classification),
			padRight(truncate(c.Question, qWidth), qWidth),
			padRight(formatScore(c.BaseScore), 6),
			padRight(formatScore(c.ChallengerScore), 6),
			padRight(delta, 7),
			c.Classification)
	}
	fmt.Fprintln(w, strings.Repeat("-", 70)) //nolint:errcheck

	if r.AccuracyDelta != nil {
		fmt.Fprintf(w, "  Accuracy delta: %+.1f%%\n", *r.AccuracyDelta*100) //nolint:errcheck
	}
	if ci := r.ScoreDeltaCI; ci != nil {
		significance := "not significant"
		if ci.Significant() {
			significance = "significant"
		}
		fmt.Fprintf(w, "  Score delta %.0f%% CI: [%+.2f, %+.2f] (%s)\n", //nolint:errcheck
			ci.ConfidenceLevel*100, ci.Lower, ci.Upper, significance)
	}
	fmt.Fprintf(w, "  Duration delta: %+dms avg\n", r.DurationDeltaAvgMS) //nolint:errcheck
	numPrinter.Fprintf(w, "  Regressions: %d, improvements: %d, errors: %d\n", //nolint:errcheck
		r.RegressionsCount, r.ImprovementsCount, r.ErrorsCount)
	if len(r.AssertTypeDeltas) > 0 {
		fmt.Fprintln(w, "  Per assertion type:") //nolint:errcheck
		kinds := make([]string, 0, len(r.AssertTypeDeltas))
		for k := range r.AssertTypeDeltas {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "    %s  %+.2f\n", padRight(k, 24), r.AssertTypeDeltas[models.AssertKind(k)]) //nolint:errcheck
		}
	}
}

// formatGitHubComment renders a run summary as a Markdown comment suitable
// for posting on a pull request.
func formatGitHubComment(run *models.Run, trials []models.Trial, agg models.RunAggregate) string {
	var b strings.Builder

	status := "✅"
	if agg.Failed > 0 {
		status = "❌"
	}
	fmt.Fprintf(&b, "## %s gdabench run `%s`\n\n", status, run.ID)
	fmt.Fprintf(&b, "| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Trials | %d |\n", agg.Total)
	fmt.Fprintf(&b, "| Completed | %d |\n", agg.Completed)
	fmt.Fprintf(&b, "| Failed | %d |\n", agg.Failed)
	if agg.Accuracy != nil {
		fmt.Fprintf(&b, "| Accuracy | %.1f%% |\n", *agg.Accuracy*100)
	}
	fmt.Fprintf(&b, "| Avg duration | %s |\n", formatDuration(agg.AvgDurationMS))

	b.WriteString("\n<details>\n<summary>Per-trial results</summary>\n\n")
	b.WriteString("| | Question | Score | Duration |\n|---|----------|-------|----------|\n")
	for _, t := range trials {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			trialStatusIcon(t.Status),
			strings.ReplaceAll(t.Question, "|", "\\|"),
			formatScore(t.Score()),
			formatDuration(t.DurationMS))
	}
	b.WriteString("\n</details>\n")

	return b.String()
}
