package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fifosched/internal/store"
	"github.com/roach88/fifosched/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	RunID      string // optional - defaults to the latest run
	Dispatches bool   // only show dispatch events
}

// RunSummary describes a stored run.
type RunSummary struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	Tick         string `json:"tick"`
	ConfigDigest string `json:"config_digest"`
	TraceDigest  string `json:"trace_digest"`
	Events       int    `json:"events"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	Enqueued   int `json:"enqueued"`
	Dispatched int `json:"dispatched"`
	Expired    int `json:"expired"`
	Empty      int `json:"empty"`
	Merged     int `json:"merged"`
	Violations int `json:"violations"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      RunSummary    `json:"run"`
	Timeline []trace.Event `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded timeline of a run",
		Long: `Show the recorded timeline of a run: every engine call in order with
its tick, outcome and the batch and starvation counters after each
dispatch.

Examples:
  fifosched trace --db ./runs.db
  fifosched trace --db ./runs.db --run 0192f1c4-...
  fifosched trace --db ./runs.db --dispatches --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to show (default: latest)")
	cmd.Flags().BoolVar(&opts.Dispatches, "dispatches", false, "only show dispatch events")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := opts.openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := findRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Run:      summarize(run),
		Timeline: events,
		Stats:    traceStats(events),
	}
	if opts.Dispatches {
		result.Timeline, err = st.ReadDispatches(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
	}

	if opts.Format == "json" {
		return writeResponse(cmd, CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(cmd.OutOrStdout(), result)
}

// findRun resolves --run, falling back to the latest run.
func findRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	var run store.Run
	var err error
	if id == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.GetRun(ctx, id)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if id == "" {
			return store.Run{}, NewExitError(ExitCommandError, "no runs recorded")
		}
		return store.Run{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}

func summarize(r store.Run) RunSummary {
	tick := "abstract"
	if r.Tick() > 0 {
		tick = r.Tick().String()
	}
	return RunSummary{
		ID:           r.ID,
		Kind:         string(r.Kind),
		Name:         r.Name,
		Tick:         tick,
		ConfigDigest: r.ConfigDigest,
		TraceDigest:  r.TraceDigest,
		Events:       r.EventCount,
	}
}

func traceStats(events []trace.Event) TraceStats {
	var s TraceStats
	for _, e := range events {
		switch {
		case e.Violation != "":
			s.Violations++
		case e.Op == trace.OpEnqueue:
			s.Enqueued++
		case e.Dispatched():
			s.Dispatched++
			if e.Path == "expired" {
				s.Expired++
			}
		case e.Op == trace.OpDispatch:
			s.Empty++
		case e.Op == trace.OpMerge:
			s.Merged++
		}
	}
	return s
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult) error {
	r := result.Run
	fmt.Fprintf(w, "Trace for run: %s (%s %s)\n", r.ID, r.Kind, r.Name)
	fmt.Fprintf(w, "Tick: %s\n", r.Tick)
	fmt.Fprintf(w, "Digest: %s\n", r.TraceDigest)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  %s\n", formatEvent(e))
	}
	fmt.Fprintln(w)

	s := result.Stats
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Enqueued:   %d\n", s.Enqueued)
	fmt.Fprintf(w, "  Dispatched: %d (%d expired)\n", s.Dispatched, s.Expired)
	fmt.Fprintf(w, "  Empty:      %d\n", s.Empty)
	fmt.Fprintf(w, "  Merged:     %d\n", s.Merged)
	fmt.Fprintf(w, "  Violations: %d\n", s.Violations)
	return nil
}

// formatEvent renders one event as a timeline line.
func formatEvent(e trace.Event) string {
	prefix := fmt.Sprintf("[%d]", e.Seq)
	if e.Violation != "" {
		return fmt.Sprintf("%s %s %s !! %s", prefix, e.Op, e.Item, e.Violation)
	}

	switch e.Op {
	case trace.OpEnqueue:
		return fmt.Sprintf("%s t=%d ENQ  %s %s/%s deadline=%d", prefix, e.At, e.Item, e.Class, e.Dir, e.Deadline)
	case trace.OpDispatch:
		if e.Result == "" {
			return fmt.Sprintf("%s t=%d DISP (empty) batched=%d starved=%d", prefix, e.At, e.Batched, e.Starved)
		}
		return fmt.Sprintf("%s t=%d DISP %s [%s] batched=%d starved=%d", prefix, e.At, e.Result, e.Path, e.Batched, e.Starved)
	case trace.OpMerge:
		return fmt.Sprintf("%s MERGE %s <- %s (%s)", prefix, e.Item, e.Other, e.Result)
	case trace.OpFormer, trace.OpLatter:
		n := e.Result
		if n == "" {
			n = "(none)"
		}
		return fmt.Sprintf("%s %s %s = %s", prefix, e.Op, e.Item, n)
	default:
		return fmt.Sprintf("%s %s", prefix, e.Op)
	}
}
