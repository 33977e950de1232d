package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fifosched/internal/trace"
)

// GoldenDir is the fixture directory used by RunWithGolden, relative to the
// test's package directory.
const GoldenDir = "testdata/golden"

// GoldenBytes renders a result's trace in golden file form.
func GoldenBytes(result *Result) ([]byte, error) {
	return trace.MarshalLines(result.Trace)
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenPath returns the golden file for a scenario file: scenarios live
// in <dir>/scenarios and goldens in the sibling <dir>/golden.
func GoldenPath(scenarioFile, name string) string {
	root := filepath.Dir(filepath.Dir(scenarioFile))
	return filepath.Join(root, "golden", name+".golden")
}

// CompareGolden reports whether result matches the golden file at path.
// A missing file is reported with os.ErrNotExist.
func CompareGolden(path string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	got, err := GoldenBytes(result)
	if err != nil {
		return false, fmt.Errorf("failed to render trace: %w", err)
	}
	return bytes.Equal(want, got), nil
}

// WriteGolden writes result's trace to path, creating parent directories.
func WriteGolden(path string, result *Result) error {
	data, err := GoldenBytes(result)
	if err != nil {
		return fmt.Errorf("failed to render trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
