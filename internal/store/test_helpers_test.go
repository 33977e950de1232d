package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/fifosched/internal/config"
	"github.com/roach88/fifosched/internal/sched"
	"github.com/roach88/fifosched/internal/testutil"
	"github.com/roach88/fifosched/internal/trace"
)

// createTestStore creates a new store in a temp directory with sequential
// run IDs (test-run-0001, test-run-0002, ...).
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDs("")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun returns a scenario run with default tunables.
func createTestRun(name string) Run {
	return Run{
		Kind:   KindScenario,
		Name:   name,
		Config: config.File{Scheduler: sched.DefaultConfig()},
	}
}

// createTestTrace records a short scheduler session: two enqueues, two
// dispatches and an empty dispatch.
func createTestTrace(t *testing.T) []trace.Event {
	t.Helper()
	s, err := trace.NewSession(sched.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}
	reqs := []trace.Event{
		{Op: trace.OpEnqueue, Item: "w1", Class: "async", Dir: "write", At: 0},
		{Op: trace.OpEnqueue, Item: "r1", Class: "sync", Dir: "read", At: 1},
		{Op: trace.OpDispatch, At: 4},
		{Op: trace.OpDispatch, At: 4},
		{Op: trace.OpDispatch, At: 5},
	}
	for _, r := range reqs {
		if _, err := s.Apply(r); err != nil {
			t.Fatalf("Apply(%s) failed: %v", r.Op, err)
		}
	}
	return s.Recorder.Events()
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to query indexes: %v", err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
