package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fifosched/internal/store"
	"github.com/roach88/fifosched/internal/testutil"
)

// response is CLIResponse with a typed payload.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

// testRootOptions gives every store opened by a test sequential run IDs
// starting at test-run-0001.
func testRootOptions() *RootOptions {
	return &RootOptions{
		StoreOptions: []store.Option{store.WithIDGenerator(testutil.NewSequentialIDs(""))},
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var r response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &r), "output: %s", out)
	return r
}

// writeScenario writes a scenario file into dir/scenarios and returns its
// path.
func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	scenarios := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	path := filepath.Join(scenarios, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const passingScenario = `name: %s
description: "Sync read first, then the async write"
steps:
  - { op: enqueue, item: sr, class: sync, dir: read, at: 0 }
  - { op: enqueue, item: aw, class: async, dir: write }
  - { op: dispatch, at: 2, expect: sr, path: normal }
  - { op: dispatch, expect: aw }
  - { op: close }
assertions:
  - { type: dispatch_order, items: [sr, aw] }
`

const failingScenario = `name: %s
description: "Expects the wrong item"
steps:
  - { op: enqueue, item: sr, class: sync, dir: read }
  - { op: dispatch, expect: other }
`

// harnessScenarios is the scenario set shipped with the harness tests.
const harnessScenarios = "../harness/testdata/scenarios"
