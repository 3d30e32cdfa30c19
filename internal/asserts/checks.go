package asserts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spboyer/gdabench/internal/models"
	"github.com/spboyer/gdabench/internal/trace"
)

func checkTextContains(in *Input, a models.Assertion) models.AssertionResult {
	needle := a.Value.String()
	if needle == "" {
		return fail(a, "Assert value is empty.")
	}

	text := trace.FinalText(in.Messages)
	if strings.Contains(text, needle) {
		return pass(a, fmt.Sprintf("Response text contains %q.", needle))
	}
	return fail(a, fmt.Sprintf("Response text does not contain %q.", needle))
}

func checkQueryContains(in *Input, a models.Assertion) models.AssertionResult {
	needle := a.Value.String()
	if needle == "" {
		return fail(a, "Assert value is empty.")
	}

	query := trace.QueryText(in.Messages)
	if strings.Contains(strings.ToLower(query), strings.ToLower(needle)) {
		return pass(a, fmt.Sprintf("Generated query contains %q.", needle))
	}
	return fail(a, fmt.Sprintf("Generated query does not contain %q.", needle))
}

func checkDurationMax(in *Input, a models.Assertion) models.AssertionResult {
	maxMS, err := a.Value.Float64()
	if err != nil {
		return failErr(a, fmt.Sprintf("Assert value %q is not a number.", a.Value), err)
	}

	actual := float64(in.TotalDurationMS)
	if actual <= maxMS {
		return pass(a, fmt.Sprintf("Duration %.0fms is within the %.0fms limit.", actual, maxMS))
	}
	return fail(a, fmt.Sprintf("Duration %.0fms exceeds the %.0fms limit.", actual, maxMS))
}

func checkDataRowCount(in *Input, a models.Assertion) models.AssertionResult {
	rows := trace.LastDataRows(in.Messages)
	if rows == nil {
		return fail(a, "No data result found in trace.")
	}

	want, err := a.Value.Int()
	if err != nil {
		return failErr(a, fmt.Sprintf("Assert value %q is not an integer.", a.Value), err)
	}

	if len(rows) == want {
		return pass(a, fmt.Sprintf("Data result has %d rows.", len(rows)))
	}
	return fail(a, fmt.Sprintf("Expected %d rows, got %d.", want, len(rows)))
}

func checkDataRow(in *Input, a models.Assertion) models.AssertionResult {
	if len(a.Columns) == 0 {
		return fail(a, "Assert columns are empty.")
	}

	rows := trace.LastDataRows(in.Messages)
	if rows == nil {
		return fail(a, "No data result found in trace.")
	}

	for _, row := range rows {
		if rowMatches(row, a.Columns) {
			return pass(a, fmt.Sprintf("Found a row matching all %d column constraints.", len(a.Columns)))
		}
	}
	return fail(a, fmt.Sprintf("No row matches all column constraints in %d result rows.", len(rows)))
}

func rowMatches(row map[string]any, columns map[string]any) bool {
	for key, expected := range columns {
		actual, ok := row[key]
		if !ok || !valuesMatch(expected, actual) {
			return false
		}
	}
	return true
}

// valuesMatch compares two cell values loosely: stringified equality first,
// then a float-cast comparison so "5", 5, and 5.0 all agree.
func valuesMatch(expected, actual any) bool {
	es := fmt.Sprintf("%v", expected)
	as := fmt.Sprintf("%v", actual)
	if es == as {
		return true
	}

	ef, err1 := strconv.ParseFloat(strings.TrimSpace(es), 64)
	af, err2 := strconv.ParseFloat(strings.TrimSpace(as), 64)
	return err1 == nil && err2 == nil && ef == af
}

func checkChartType(in *Input, a models.Assertion) models.AssertionResult {
	mark := trace.LastChartType(in.Messages)
	if mark == "" {
		return fail(a, "No chart result found.")
	}

	want := a.Value.String()
	if mark == want {
		return pass(a, fmt.Sprintf("Chart type is %q.", mark))
	}
	return fail(a, fmt.Sprintf("Expected chart type %q, got %q.", want, mark))
}
