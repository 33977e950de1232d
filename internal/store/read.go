package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/fifosched/internal/trace"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `seq, id, kind, name, tick_ns, config, config_digest, trace_digest, event_count`

// GetRun retrieves a single run by ID.
// Returns ErrRunNotFound if there is none.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// LatestRun returns the most recently created run.
// Returns ErrRunNotFound if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

// ListRuns returns every run in creation order.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns a run's trace ordered by seq.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]trace.Event, error) {
	return s.readEvents(ctx, `
		SELECT data FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadDispatches returns only the dispatch events of a run, ordered by seq.
func (s *Store) ReadDispatches(ctx context.Context, runID string) ([]trace.Event, error) {
	return s.readEvents(ctx, `
		SELECT data FROM events
		WHERE run_id = ? AND op = ?
		ORDER BY seq ASC
	`, runID, string(trace.OpDispatch))
}

func (s *Store) readEvents(ctx context.Context, query string, args ...any) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := trace.UnmarshalEvent([]byte(data))
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var kind, cfgJSON string
	var tickNS int64

	if err := row.Scan(
		&r.Seq, &r.ID, &kind, &r.Name, &tickNS, &cfgJSON,
		&r.ConfigDigest, &r.TraceDigest, &r.EventCount,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	r.Kind = Kind(kind)
	r.Config.Tick = time.Duration(tickNS)
	if err := json.Unmarshal([]byte(cfgJSON), &r.Config.Scheduler); err != nil {
		return Run{}, fmt.Errorf("decode run %s config: %w", r.ID, err)
	}
	return r, nil
}
