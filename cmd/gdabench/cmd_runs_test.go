package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsCommandEmpty(t *testing.T) {
	useTempDB(t)

	var buf bytes.Buffer
	cmd := newRunsCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No runs yet")
}

func TestRunsCommandListsRuns(t *testing.T) {
	useTempDB(t)
	seedScoredRun(t, "run-a", 1)
	seedScoredRun(t, "run-b", 0.5)

	var buf bytes.Buffer
	cmd := newRunsCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "agent-1")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "50.0%")
}

func TestRunsCommandHonorsLimit(t *testing.T) {
	useTempDB(t)
	seedScoredRun(t, "run-old", 1)
	seedScoredRun(t, "run-new", 1)

	var buf bytes.Buffer
	cmd := newRunsCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--limit", "1"})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.NotContains(t, out, "run-old")
	assert.Contains(t, out, "run-new")
}