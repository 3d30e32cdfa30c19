package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSuiteYAML = `id: quarterly-kpis
name: Quarterly KPIs
description: Core revenue questions.
examples:
  - id: ex-revenue
    question: What was total revenue last quarter?
    asserts:
      - type: TEXT_CONTAINS
        value: revenue
        weight: 1
      - type: DURATION_MAX_MS
        value: 30000
        weight: 0
  - id: ex-regions
    question: Which region sold the most?
    asserts:
      - type: QUERY_CONTAINS
        value: "group by region"
        weight: 1
`

func writeSuiteFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSuiteFile(t *testing.T) {
	suite, err := LoadSuiteFile(writeSuiteFile(t, sampleSuiteYAML))
	require.NoError(t, err)

	assert.Equal(t, "quarterly-kpis", suite.ID)
	assert.Equal(t, "Quarterly KPIs", suite.Name)
	require.Len(t, suite.Examples, 2)
	require.Len(t, suite.Examples[0].Asserts, 2)
	assert.Equal(t, AssertTextContains, suite.Examples[0].Asserts[0].Kind)
	assert.Equal(t, FlexValue("30000"), suite.Examples[0].Asserts[1].Value)
}

func TestLoadSuiteFileRejectsUnknownAssertType(t *testing.T) {
	_, err := LoadSuiteFile(writeSuiteFile(t, `id: s
name: S
examples:
  - question: q
    asserts:
      - type: NO_SUCH_CHECK
        weight: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestLoadSuiteFileRejectsMissingQuestion(t *testing.T) {
	_, err := LoadSuiteFile(writeSuiteFile(t, `id: s
name: S
examples:
  - id: ex-1
    asserts:
      - type: TEXT_CONTAINS
        value: x
        weight: 1
`))
	require.Error(t, err)
}

func TestLoadSuiteFileMissing(t *testing.T) {
	_, err := LoadSuiteFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSuiteValidate(t *testing.T) {
	tests := []struct {
		name    string
		suite   Suite
		wantErr string
	}{
		{
			"valid",
			Suite{Name: "S", Examples: []Example{{ID: "a", Question: "q"}}},
			"",
		},
		{
			"missing name",
			Suite{Examples: []Example{{Question: "q"}}},
			"must have a name",
		},
		{
			"duplicate example id",
			Suite{Name: "S", Examples: []Example{{ID: "a", Question: "q1"}, {ID: "a", Question: "q2"}}},
			`duplicate example id "a"`,
		},
		{
			"negative weight",
			Suite{Name: "S", Examples: []Example{{Question: "q", Asserts: []Assertion{{Kind: AssertTextContains, Weight: -1}}}}},
			"weight must be >= 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.suite.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSnapshotFreezesExamples(t *testing.T) {
	suite, err := LoadSuiteFile(writeSuiteFile(t, sampleSuiteYAML))
	require.NoError(t, err)

	snap := suite.Snapshot()
	assert.Equal(t, "quarterly-kpis", snap.OriginalSuiteID)
	assert.Equal(t, suite.Name, snap.Name)
	require.Len(t, snap.Examples, 2)
	assert.Equal(t, "ex-revenue", snap.Examples[0].OriginalExampleID)
	assert.Equal(t, suite.Examples[0].Question, snap.Examples[0].Question)

	// Mutating the suite after the snapshot must not leak into it.
	suite.Examples[0].Asserts[0].Value = "changed"
	assert.Equal(t, FlexValue("revenue"), snap.Examples[0].Asserts[0].Value)
}
