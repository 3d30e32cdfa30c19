// Package dataset imports benchmark examples from CSV files, so question
// banks maintained in spreadsheets can be loaded as suites.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/spboyer/gdabench/internal/models"
)

// Row maps column name to cell value for one CSV data row.
type Row map[string]string

// Recognized columns. question is required; each assertion column is
// optional and empty cells are skipped.
const (
	colID            = "id"
	colQuestion      = "question"
	colTextContains  = "text_contains"
	colQueryContains = "query_contains"
	colRowCount      = "row_count"
	colChartType     = "chart_type"
	colMaxDurationMS = "max_duration_ms"
	colJudge         = "judge"
)

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers (column names).
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	// Ragged records are reported with our own 1-based row numbering below.
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[strings.TrimSpace(h)] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// SuiteFromCSV loads a CSV question bank into a suite. Each data row becomes
// one example; assertion columns map to typed assertions with weight 1
// (max_duration_ms becomes a weight-0 diagnostic check).
func SuiteFromCSV(path, suiteID, suiteName string) (*models.Suite, error) {
	rows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv: %s has no data rows", path)
	}
	if suiteID == "" {
		return nil, fmt.Errorf("csv: suite id is required")
	}
	if suiteName == "" {
		suiteName = suiteID
	}

	suite := &models.Suite{
		ID:   suiteID,
		Name: suiteName,
	}
	for i, row := range rows {
		example, err := exampleFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: %w", i+2, err)
		}
		suite.Examples = append(suite.Examples, *example)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

func exampleFromRow(row Row) (*models.Example, error) {
	question := strings.TrimSpace(row[colQuestion])
	if question == "" {
		return nil, fmt.Errorf("missing question")
	}

	example := &models.Example{
		ID:       strings.TrimSpace(row[colID]),
		Question: question,
	}
	if example.ID == "" {
		example.ID = uuid.NewString()
	}

	scalar := []struct {
		col  string
		kind models.AssertKind
	}{
		{colTextContains, models.AssertTextContains},
		{colQueryContains, models.AssertQueryContains},
		{colRowCount, models.AssertDataRowCount},
		{colChartType, models.AssertChartType},
		{colJudge, models.AssertAIJudge},
	}
	for _, s := range scalar {
		if v := strings.TrimSpace(row[s.col]); v != "" {
			example.Asserts = append(example.Asserts, models.Assertion{
				Kind:   s.kind,
				Value:  models.FlexValue(v),
				Weight: 1,
			})
		}
	}
	if v := strings.TrimSpace(row[colMaxDurationMS]); v != "" {
		example.Asserts = append(example.Asserts, models.Assertion{
			Kind:  models.AssertDurationMaxMS,
			Value: models.FlexValue(v),
		})
	}
	return example, nil
}
