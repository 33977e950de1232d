package harness

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifosched/internal/logx"
	"github.com/roach88/fifosched/internal/trace"
)

func ptr[T any](v T) *T { return &v }

func TestRun_ExampleScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "example",
		Description: "sync read preferred over expired async write",
		Steps: []Step{
			{Op: "enqueue", Item: "sr", Class: "sync", Dir: "read", At: ptr(int64(0))},
			{Op: "enqueue", Item: "aw", Class: "async", Dir: "write"},
			{Op: "dispatch", At: ptr(int64(2)), Expect: ptr("sr")},
			{Op: "dispatch", Expect: ptr("aw")},
		},
		Assertions: []Assertion{
			{Type: AssertDispatchOrder, Items: []string{"sr", "aw"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Trace, 4)
	assert.Equal(t, []string{"sr", "aw"}, result.Dispatched())
	assert.Len(t, result.Digest, 64)
	assert.Equal(t, 2, result.Stats.Batched)
	assert.Equal(t, 0, result.Stats.Starved)
	assert.Empty(t, result.Queues["async/write"])
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "wrong expectations",
		Steps: []Step{
			{Op: "enqueue", Item: "r1", Class: "sync", Dir: "read"},
			{Op: "dispatch", Expect: ptr("w9"), Path: "expired"},
			{Op: "dispatch", Expect: ptr("r1")},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], `step 1 (dispatch): expected "w9", got "r1"`)
	assert.Contains(t, result.Errors[1], "expected path expired, got \"normal\"")
	assert.Contains(t, result.Errors[2], `step 2 (dispatch): expected "r1", got nothing`)
}

func TestRun_Violations(t *testing.T) {
	scenario := &Scenario{
		Name:        "violations",
		Description: "expected and unexpected violations",
		Steps: []Step{
			{Op: "enqueue", Item: "r1", Class: "sync", Dir: "read"},
			{Op: "enqueue", Item: "r1", Class: "sync", Dir: "read", Violation: "DOUBLE_ENQUEUE"},
			{Op: "latter", Item: "ghost"},
			{Op: "latter", Item: "r1", Violation: "NOT_QUEUED"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "step 2 (latter): unexpected contract violation NOT_QUEUED")
	assert.Contains(t, result.Errors[1], "step 3 (latter): expected violation NOT_QUEUED, got none")

	assert.Equal(t, "DOUBLE_ENQUEUE", result.Trace[1].Violation)
	assert.Equal(t, "NOT_QUEUED", result.Trace[2].Violation)
	assert.Empty(t, result.Trace[3].Violation)
}

func TestRun_ClockMustNotGoBackwards(t *testing.T) {
	scenario := &Scenario{
		Name:        "backwards",
		Description: "at before current tick",
		Steps: []Step{
			{Op: "dispatch", At: ptr(int64(5))},
			{Op: "dispatch", At: ptr(int64(4))},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1: at 4 is before the current tick 5")
}

func TestRun_AdvanceAccumulates(t *testing.T) {
	scenario := &Scenario{
		Name:        "advance",
		Description: "advance moves the clock forward",
		Steps: []Step{
			{Op: "enqueue", Item: "a", Class: "async", Dir: "read", Advance: 2},
			{Op: "enqueue", Item: "b", Class: "async", Dir: "read", Advance: 3},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Trace[0].At)
	assert.Equal(t, int64(4), result.Trace[0].Deadline)
	assert.Equal(t, int64(5), result.Trace[1].At)
	assert.Equal(t, []string{"a", "b"}, result.Queues["async/read"])
}

func TestRun_ConfigOverrides(t *testing.T) {
	scenario := &Scenario{
		Name:        "overrides",
		Description: "expire interval override",
		Config:      &ConfigOverrides{AsyncWriteExpire: ptr(int64(10))},
		Steps: []Step{
			{Op: "enqueue", Item: "w", Class: "async", Dir: "write"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Trace[0].Deadline)
}

func TestRun_IsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/expired_async_write.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_TraceReplays(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/contract_violations.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	replayed, err := trace.Replay(result.Config, result.Trace)
	require.NoError(t, err)
	assert.Equal(t, -1, trace.Diverge(result.Trace, replayed))
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	s := &Scenario{
		Name:        "logged",
		Description: "debug logging",
		Steps:       []Step{{Op: "close"}},
	}

	_, err := Run(s, WithLogger(logx.New(&buf, "debug")))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"op":"close"`)
	assert.Contains(t, buf.String(), "scenario finished")
}
