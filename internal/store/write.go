package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/fifosched/internal/trace"
)

// CreateRun inserts a new run and returns it with ID, ConfigDigest and Seq
// filled in. A run with an empty ID gets one from the store's generator.
func (s *Store) CreateRun(ctx context.Context, r Run) (Run, error) {
	if err := r.validate(); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	if r.ID == "" {
		r.ID = s.ids.Generate()
	}
	r.ConfigDigest = r.Config.Digest()
	r.TraceDigest = ""
	r.EventCount = 0

	cfgJSON, err := json.Marshal(r.Config.Scheduler)
	if err != nil {
		return Run{}, fmt.Errorf("create run: marshal config: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, name, tick_ns, config, config_digest)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		string(r.Kind),
		r.Name,
		int64(r.Config.Tick),
		string(cfgJSON),
		r.ConfigDigest,
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	r.Seq, err = result.LastInsertId()
	if err != nil {
		return Run{}, fmt.Errorf("create run: get seq: %w", err)
	}
	return r, nil
}

// AppendEvents stores events for a run in one transaction.
//
// Each event is stored as its canonical JSON. Uses ON CONFLICT(run_id, seq)
// DO NOTHING for idempotency - an event already stored is silently skipped.
// Appending to a finished run is an error.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) AppendEvents(ctx context.Context, runID string, events []trace.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var digest string
	if err := tx.QueryRowContext(ctx, `SELECT trace_digest FROM runs WHERE id = ?`, runID).Scan(&digest); err != nil {
		return fmt.Errorf("append events: run %s: %w", runID, err)
	}
	if digest != "" {
		return fmt.Errorf("append events: run %s is finished", runID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, op, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if e.Seq <= 0 {
			return fmt.Errorf("append events: event seq must be positive, got %d", e.Seq)
		}
		data, err := trace.MarshalEvent(e)
		if err != nil {
			return fmt.Errorf("append events: event %d: %w", e.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, e.Seq, string(e.Op), string(data)); err != nil {
			return fmt.Errorf("append events: event %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}

// FinishRun seals a run: it digests the stored trace and records the digest
// and event count. Returns the updated run.
//
// Finishing a run twice recomputes the same digest.
func (s *Store) FinishRun(ctx context.Context, runID string) (Run, error) {
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return Run{}, fmt.Errorf("finish run: %w", err)
	}
	digest, err := trace.Digest(events)
	if err != nil {
		return Run{}, fmt.Errorf("finish run: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE runs SET trace_digest = ?, event_count = ? WHERE id = ?
	`, digest, len(events), runID); err != nil {
		return Run{}, fmt.Errorf("finish run: %w", err)
	}

	return s.GetRun(ctx, runID)
}

// RecordRun creates a run, appends its trace and finishes it.
func (s *Store) RecordRun(ctx context.Context, r Run, events []trace.Event) (Run, error) {
	r, err := s.CreateRun(ctx, r)
	if err != nil {
		return Run{}, err
	}
	if err := s.AppendEvents(ctx, r.ID, events); err != nil {
		return Run{}, err
	}
	return s.FinishRun(ctx, r.ID)
}
