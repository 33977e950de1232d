package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifosched/internal/store"
)

func TestSimulateCommandRequiresDB(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "demo", fmt.Sprintf(passingScenario, "demo"))

	_, err := execute(t, testRootOptions(), "simulate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestSimulateCommandRecordsRun(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "demo", fmt.Sprintf(passingScenario, "demo"))
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, testRootOptions(), "--format", "json", "simulate", path, "--db", db)
	require.NoError(t, err, out)

	resp := decodeResponse[SimulateResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-run-0001", resp.Data.RunID)
	assert.Equal(t, "demo", resp.Data.Scenario)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, 5, resp.Data.Events)
	assert.Equal(t, []string{"sr", "aw"}, resp.Data.Dispatched)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.GetRun(context.Background(), "test-run-0001")
	require.NoError(t, err)
	assert.Equal(t, store.KindScenario, run.Kind)
	assert.Equal(t, "demo", run.Name)
	assert.Equal(t, resp.Data.TraceDigest, run.TraceDigest)
	assert.Zero(t, run.Tick())
}

func TestSimulateCommandFailingScenarioIsStillRecorded(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "bad", fmt.Sprintf(failingScenario, "bad"))
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, testRootOptions(), "simulate", path, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ bad recorded as run test-run-0001")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].EventCount)
}

func TestSimulateCommandMissingScenario(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, testRootOptions(), "simulate", filepath.Join(dir, "nope.yaml"), "--db", filepath.Join(dir, "runs.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}
