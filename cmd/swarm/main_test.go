package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-swarm/pkg/action"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSeedThenDecide(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "--config=", "--data-dir", dir, "kb", "seed", "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	_, err = execute(t, "--config=", "--data-dir", dir, "kb", "seed", "--force=false")
	assert.Error(t, err, "seeding twice needs --force")

	out, err = execute(t, "--config=", "--data-dir", dir, "kb", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "clear")

	out, err = execute(t, "--config=", "--data-dir", dir, "decide",
		"--front", "200", "--left", "50", "--right", "300", "--json")
	require.NoError(t, err)

	var d action.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, action.TurnRight, d.Action)
	assert.Equal(t, action.SourceSafety, d.Source)
}

func TestResetNeedsConfirmation(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "--config=", "--data-dir", dir, "reset", "--yes=false")
	assert.Error(t, err)

	out, err := execute(t, "--config=", "--data-dir", dir, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")
}

func TestInspectEmptyState(t *testing.T) {
	out, err := execute(t, "--config=", "--data-dir", t.TempDir(), "inspect", "--json=false")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "No learned state"), out)
}
