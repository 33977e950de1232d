package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, testRootOptions(), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, testRootOptions(), "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, testRootOptions(), "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, testRootOptions(), "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := execute(t, testRootOptions(), "--format", "json", "test", harnessScenarios)
	require.NoError(t, err, out)

	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 6, resp.Data.Total)
	assert.Equal(t, 6, resp.Data.Passed)
	for _, s := range resp.Data.Scenarios {
		assert.True(t, s.Pass, "%s: %v", s.Name, s.Errors)
		assert.Equal(t, "match", s.Golden, s.Name)
		assert.Len(t, s.Digest, 64, s.Name)
	}
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, testRootOptions(), "test", harnessScenarios, "--filter", "write_*")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ write_starvation")
	assert.Contains(t, out, "✓ write_preference_fallback")
	assert.NotContains(t, out, "sync_preferred")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := execute(t, testRootOptions(), "test", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "good", fmt.Sprintf(passingScenario, "good"))
	writeScenario(t, dir, "bad", fmt.Sprintf(failingScenario, "bad"))

	out, err := execute(t, testRootOptions(), "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ good")
	assert.Contains(t, out, "✗ bad")
	assert.Contains(t, out, `step 1 (dispatch): expected "other", got "sr"`)
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad", fmt.Sprintf(failingScenario, "bad"))

	out, err := execute(t, testRootOptions(), "--format", "json", "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)

	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommandInvalidScenarioFile(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken", "name: broken\nsteps: [")

	out, err := execute(t, testRootOptions(), "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandUpdateAndCompareGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "golden_demo", fmt.Sprintf(passingScenario, "golden_demo"))
	scenarios := filepath.Join(dir, "scenarios")

	out, err := execute(t, testRootOptions(), "--format", "json", "test", scenarios)
	require.NoError(t, err)
	assert.Equal(t, "missing", decodeResponse[TestResult](t, out).Data.Scenarios[0].Golden)

	out, err = execute(t, testRootOptions(), "test", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")
	assert.FileExists(t, filepath.Join(dir, "golden", "golden_demo.golden"))

	out, err = execute(t, testRootOptions(), "--format", "json", "test", scenarios)
	require.NoError(t, err)
	assert.Equal(t, "match", decodeResponse[TestResult](t, out).Data.Scenarios[0].Golden)

	// A scenario whose trace changes no longer matches its golden file.
	changed := `name: golden_demo
description: "Single sync read"
steps:
  - { op: enqueue, item: sr, class: sync, dir: read, at: 0 }
  - { op: dispatch, expect: sr }
  - { op: close }
`
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "golden_demo.yaml"), []byte(changed), 0644))

	out, err = execute(t, testRootOptions(), "test", scenarios)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}
