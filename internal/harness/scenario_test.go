package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifosched/internal/sched"
)

func TestParseScenario_Full(t *testing.T) {
	data := []byte(`
name: full
description: "Exercises every field"
config:
  sync_read_expire: 4
  fifo_batch: 2
steps:
  - { op: enqueue, item: r1, class: sync, dir: read, at: 5 }
  - { op: dispatch, advance: 1, expect: r1, path: normal }
  - { op: merge, survivor: a, absorbed: b, expect: kept }
  - { op: former, item: x, violation: NOT_QUEUED }
  - { op: close }
assertions:
  - { type: dispatch_order, items: [r1] }
  - { type: dispatch_count, count: 1 }
  - { type: queue_len, class: sync, dir: read, count: 0 }
  - { type: queue, class: async, dir: write, items: [] }
  - { type: counters, batched: 1 }
`)
	s, err := ParseScenario(data)
	require.NoError(t, err)

	assert.Equal(t, "full", s.Name)
	require.Len(t, s.Steps, 5)
	require.NotNil(t, s.Steps[0].At)
	assert.Equal(t, int64(5), *s.Steps[0].At)
	assert.Equal(t, int64(1), s.Steps[1].Advance)
	require.NotNil(t, s.Steps[1].Expect)
	assert.Equal(t, "r1", *s.Steps[1].Expect)
	assert.Equal(t, "NOT_QUEUED", s.Steps[3].Violation)

	require.Len(t, s.Assertions, 5)
	assert.NotNil(t, s.Assertions[3].Items)
	assert.Empty(t, s.Assertions[3].Items)

	cfg := s.Config.Apply(sched.DefaultConfig())
	assert.Equal(t, sched.Tick(4), cfg.SyncReadExpire)
	assert.Equal(t, 2, cfg.FIFOBatch)
	assert.Equal(t, sched.DefaultConfig().AsyncWriteExpire, cfg.AsyncWriteExpire)
}

func TestParseScenario_EmptyExpectIsSet(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: x
description: d
steps:
  - { op: dispatch, expect: "" }
`))
	require.NoError(t, err)
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, "", *s.Steps[0].Expect)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: x\ndescription: d\nstep: []\n", "field step not found"},
		{"missing name", "description: d\nsteps: [{op: close}]\n", "name is required"},
		{"missing description", "name: x\nsteps: [{op: close}]\n", "description is required"},
		{"no steps", "name: x\ndescription: d\nsteps: []\n", "steps list is required"},
		{"unknown op", "name: x\ndescription: d\nsteps: [{op: explode}]\n", `unknown op "explode"`},
		{"enqueue without item", "name: x\ndescription: d\nsteps: [{op: enqueue, class: sync, dir: read}]\n", "enqueue requires item"},
		{"bad class", "name: x\ndescription: d\nsteps: [{op: enqueue, item: a, class: urgent, dir: read}]\n", "unknown class"},
		{"bad dir", "name: x\ndescription: d\nsteps: [{op: enqueue, item: a, class: sync, dir: up}]\n", "unknown direction"},
		{"enqueue expect", "name: x\ndescription: d\nsteps: [{op: enqueue, item: a, class: sync, dir: read, expect: a}]\n", "does not take expect"},
		{"merge missing absorbed", "name: x\ndescription: d\nsteps: [{op: merge, survivor: a}]\n", "merge requires survivor and absorbed"},
		{"merge bad expect", "name: x\ndescription: d\nsteps: [{op: merge, survivor: a, absorbed: b, expect: yes}]\n", "merge expect must be"},
		{"former without item", "name: x\ndescription: d\nsteps: [{op: former}]\n", "former requires item"},
		{"path on merge", "name: x\ndescription: d\nsteps: [{op: merge, survivor: a, absorbed: b, path: normal}]\n", "path is only valid on dispatch"},
		{"bad path", "name: x\ndescription: d\nsteps: [{op: dispatch, path: fast}]\n", "path must be normal or expired"},
		{"negative advance", "name: x\ndescription: d\nsteps: [{op: dispatch, advance: -1}]\n", "advance must not be negative"},
		{"unknown violation", "name: x\ndescription: d\nsteps: [{op: close, violation: OOPS}]\n", `unknown violation "OOPS"`},
		{"negative config", "name: x\ndescription: d\nconfig: {fifo_batch: -1}\nsteps: [{op: close}]\n", "fifo_batch must be non-negative"},
		{"assertion without type", "name: x\ndescription: d\nsteps: [{op: close}]\nassertions: [{count: 1}]\n", "type is required"},
		{"unknown assertion", "name: x\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: vibes}]\n", `unknown type "vibes"`},
		{"order without items", "name: x\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: dispatch_order}]\n", "requires items"},
		{"count without count", "name: x\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: dispatch_count}]\n", "requires count"},
		{"queue_len bad class", "name: x\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: queue_len, class: x, dir: read, count: 0}]\n", "unknown class"},
		{"counters empty", "name: x\ndescription: d\nsteps: [{op: close}]\nassertions: [{type: counters}]\n", "requires batched or starved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ndescription: d\nsteps: [{op: close}]\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "x", s.Name)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		s, err := LoadScenario(f)
		require.NoError(t, err, f)
		base := filepath.Base(f)
		assert.Equal(t, base[:len(base)-len(".yaml")], s.Name, "scenario name must match its file name")
	}
}

func TestConfigOverrides_NilKeepsBase(t *testing.T) {
	var o *ConfigOverrides
	assert.Equal(t, sched.DefaultConfig(), o.Apply(sched.DefaultConfig()))
}
