package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fifosched/internal/sched"
)

func TestParse_EmptyUsesDefaults(t *testing.T) {
	f, err := Parse("empty.cue", nil)
	require.NoError(t, err)

	assert.Equal(t, time.Second, f.Tick)
	assert.Equal(t, sched.DefaultConfig(), f.Scheduler)
	assert.Equal(t, Default(), f)
}

func TestParse_ConvertsDurationsToTicks(t *testing.T) {
	src := `
tick: "10ms"
expire: {
	sync_read:   "500ms"
	sync_write:  "1s"
	async_read:  "2s"
	async_write: "5s"
}
fifo_batch: 4
writes_starved: 2
`
	f, err := Parse("tunables.cue", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Millisecond, f.Tick)
	assert.Equal(t, sched.Config{
		SyncReadExpire:   50,
		SyncWriteExpire:  100,
		AsyncReadExpire:  200,
		AsyncWriteExpire: 500,
		FIFOBatch:        4,
		WritesStarved:    2,
	}, f.Scheduler)
}

func TestParse_PartialOverride(t *testing.T) {
	f, err := Parse("tunables.cue", []byte(`expire: async_write: "4s"`))
	require.NoError(t, err)

	want := sched.DefaultConfig()
	want.AsyncWriteExpire = 4
	assert.Equal(t, want, f.Scheduler)
}

func TestParse_RoundsDown(t *testing.T) {
	f, err := Parse("tunables.cue", []byte(`
tick: "10ms"
expire: sync_read: "15ms"
`))
	require.NoError(t, err)
	assert.Equal(t, sched.Tick(1), f.Scheduler.SyncReadExpire)
}

func TestParse_ZeroIntervalsAllowed(t *testing.T) {
	f, err := Parse("tunables.cue", []byte(`
expire: { sync_read: "0s", sync_write: "0s", async_read: "0s", async_write: "0s" }
fifo_batch: 0
writes_starved: 0
`))
	require.NoError(t, err)
	assert.Equal(t, sched.Config{}, f.Scheduler)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `tick: "1s`, ErrCodeSyntax},
		{"negative batch", `fifo_batch: -1`, ErrCodeSchema},
		{"negative starved", `writes_starved: -3`, ErrCodeSchema},
		{"unknown field", `fifo_btach: 2`, ErrCodeSchema},
		{"wrong type", `fifo_batch: "two"`, ErrCodeSchema},
		{"bad duration", `expire: sync_read: "soon"`, ErrCodeDuration},
		{"negative duration", `expire: async_read: "-1s"`, ErrCodeDuration},
		{"zero tick", `tick: "0s"`, ErrCodeDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, IsLoadError(err, tt.code), "got %v", err)
		})
	}
}

func TestParse_ErrorCarriesPosition(t *testing.T) {
	_, err := Parse("bad.cue", []byte("tick: \"1s\"\nexpire: sync_read: \"soon\"\n"))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.True(t, le.Pos.IsValid())
	assert.Equal(t, 2, le.Pos.Line())
	assert.Contains(t, err.Error(), "bad.cue:2:")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fifosched.cue")
	require.NoError(t, os.WriteFile(path, []byte(`fifo_batch: 8`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Scheduler.FIFOBatch)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeRead))
}

func TestDigest(t *testing.T) {
	a, err := Parse("a.cue", []byte(`tick: "1s"`))
	require.NoError(t, err)
	b, err := Parse("b.cue", nil)
	require.NoError(t, err)
	c, err := Parse("c.cue", []byte(`fifo_batch: 2`))
	require.NoError(t, err)

	assert.Equal(t, a.Digest(), b.Digest(), "explicit defaults resolve identically")
	assert.NotEqual(t, a.Digest(), c.Digest())
	assert.Len(t, a.Digest(), 64)
}

func TestFields(t *testing.T) {
	assert.Equal(t, map[string]any{
		"tick":               "1s",
		"sync_read_expire":   int64(1),
		"sync_write_expire":  int64(1),
		"async_read_expire":  int64(2),
		"async_write_expire": int64(2),
		"fifo_batch":         1,
		"writes_starved":     1,
	}, Default().Fields())
}
