package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fifosched/internal/store"
	"github.com/roach88/fifosched/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Events        int    `json:"events"`
	Dispatched    int    `json:"dispatched"`
	Deterministic bool   `json:"deterministic"`

	// DivergedAt is the seq of the first differing event, zero when the
	// replay matched.
	DivergedAt int64  `json:"diverged_at,omitempty"`
	Expected   string `json:"expected,omitempty"`
	Got        string `json:"got,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded runs and verify determinism",
		Long: `Replay recorded runs against a fresh engine and verify determinism.

Each run's requests are re-issued in order with the tunables the run was
recorded with. The reproduced trace must match the stored one event for
event, and its digest must match the digest sealed when the run finished.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  fifosched replay --db ./runs.db
  fifosched replay --db ./runs.db --run 0192f1c4-...
  fifosched replay --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := opts.openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := findRun(ctx, st, opts.RunID)
		if err != nil {
			return err
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
		return nil
	}

	for _, run := range runs {
		runResult, err := replayRun(ctx, st, run)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayRun re-issues a stored run and compares the reproduced trace with
// the stored events and sealed digest.
func replayRun(ctx context.Context, st *store.Store, run store.Run) (ReplayRunResult, error) {
	stored, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	res := ReplayRunResult{
		RunID:  run.ID,
		Kind:   string(run.Kind),
		Name:   run.Name,
		Events: len(stored),
	}
	for _, e := range stored {
		if e.Dispatched() {
			res.Dispatched++
		}
	}

	got, err := trace.Replay(run.Config.Scheduler, stored)
	if err != nil {
		return ReplayRunResult{}, err
	}

	if i := trace.Diverge(stored, got); i >= 0 {
		res.DivergedAt = int64(i + 1)
		res.Expected = eventText(stored, i)
		res.Got = eventText(got, i)
		return res, nil
	}

	if run.Finished() {
		digest, err := trace.Digest(got)
		if err != nil {
			return ReplayRunResult{}, err
		}
		if digest != run.TraceDigest {
			res.Expected = "digest " + run.TraceDigest
			res.Got = "digest " + digest
			return res, nil
		}
	}

	res.Deterministic = true
	return res, nil
}

// eventText renders events[i] for a divergence report.
func eventText(events []trace.Event, i int) string {
	if i >= len(events) {
		return "(end of trace)"
	}
	b, err := trace.MarshalEvent(events[i])
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeResponse(cmd, response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s (%s %s)\n", status, run.RunID, run.Kind, run.Name)
		fmt.Fprintf(w, "  Events: %d, %d dispatched\n", run.Events, run.Dispatched)

		if !run.Deterministic {
			if run.DivergedAt > 0 {
				fmt.Fprintf(w, "  Diverged at event %d\n", run.DivergedAt)
			}
			fmt.Fprintf(w, "    expected: %s\n", run.Expected)
			fmt.Fprintf(w, "    got:      %s\n", run.Got)
		} else if verbose {
			fmt.Fprintln(w, "  Replayed event for event")
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
