package cli

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fifosched/internal/config"
	"github.com/roach88/fifosched/internal/host"
	"github.com/roach88/fifosched/internal/logx"
	"github.com/roach88/fifosched/internal/sched"
	"github.com/roach88/fifosched/internal/store"
	"github.com/roach88/fifosched/internal/trace"
)

// DriveOptions holds flags for the drive command.
type DriveOptions struct {
	*RootOptions
	Config   string
	Database string
	Items    int
	Seed     uint64
	Rate     float64
	Burst    int
	Gap      time.Duration

	SyncRatio  float64
	WriteRatio float64
	MergeRatio float64
}

// DriveResult summarizes a drive session.
type DriveResult struct {
	RunID        string        `json:"run_id,omitempty"`
	Items        int           `json:"items"`
	Submitted    int           `json:"submitted"`
	Absorbed     int           `json:"absorbed"`
	Delivered    int           `json:"delivered"`
	Normal       int           `json:"normal"`
	Expired      int           `json:"expired"`
	Events       int           `json:"events"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	ConfigDigest string        `json:"config_digest"`
	TraceDigest  string        `json:"trace_digest"`
}

// NewDriveCommand creates the drive command.
func NewDriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Drive the engine with a synthetic wall-clock workload",
		Long: `Drive a live dispatcher with a generated request stream.

Requests are submitted from one goroutine while another releases them to
a counting sink, optionally paced by a token bucket. Ticks come from the
wall clock at the resolution set in the tunables file. The session's trace
can be recorded and later checked with the replay command.

Exit codes:
  0 - Every surviving request was delivered exactly once
  1 - Delivery count mismatch
  2 - Command error (bad tunables, database error, etc.)

Examples:
  fifosched drive --items 500
  fifosched drive --config ./tunables.cue --items 1000 --rate 200 --db ./runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrive(opts, cmd)
		},
	}

	w := host.DefaultWorkload(0, 1)
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE tunables file (default: built-in tunables)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session in this SQLite database")
	cmd.Flags().IntVar(&opts.Items, "items", 100, "number of requests to submit")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", w.Seed, "workload seed")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "dispatches per second (0 = unpaced)")
	cmd.Flags().IntVar(&opts.Burst, "burst", 1, "dispatch burst size")
	cmd.Flags().DurationVar(&opts.Gap, "gap", 0, "delay between submissions")
	cmd.Flags().Float64Var(&opts.SyncRatio, "sync-ratio", w.SyncRatio, "share of sync requests")
	cmd.Flags().Float64Var(&opts.WriteRatio, "write-ratio", w.WriteRatio, "share of write requests")
	cmd.Flags().Float64Var(&opts.MergeRatio, "merge-ratio", w.MergeRatio, "share of requests that absorb an earlier one")

	return cmd
}

func runDrive(opts *DriveOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Items < 0 {
		return NewExitError(ExitCommandError, "--items must not be negative")
	}

	file := config.Default()
	if opts.Config != "" {
		var err error
		if file, err = config.Load(opts.Config); err != nil {
			return WrapExitError(ExitCommandError, "failed to load tunables", err)
		}
	}

	log := opts.logger(cmd.ErrOrStderr())
	rec := trace.NewRecorder[string]()
	d, err := host.New(file.Scheduler, host.NewWallClock(file.Tick),
		host.WithRecorder(rec),
		host.WithLogger[string](log),
		host.WithRate[string](opts.Rate, opts.Burst),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start dispatcher", err)
	}

	reqs := host.Generate(host.Workload{
		Items:      opts.Items,
		Seed:       opts.Seed,
		SyncRatio:  opts.SyncRatio,
		WriteRatio: opts.WriteRatio,
		MergeRatio: opts.MergeRatio,
	})

	var delivered atomic.Int64
	seen := make(map[string]bool, len(reqs))
	var seenMu sync.Mutex
	var duplicate string
	sink := host.SinkFunc[string](func(_ context.Context, item sched.Item[string]) error {
		seenMu.Lock()
		defer seenMu.Unlock()
		if seen[item.ID] {
			duplicate = item.ID
			return fmt.Errorf("delivered twice")
		}
		seen[item.ID] = true
		delivered.Add(1)
		return nil
	})

	start := time.Now()
	var (
		feed    host.FeedResult
		feedErr error
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		feed, feedErr = host.Feed(ctx, d, reqs, opts.Gap)
	}()

	runErr := d.Run(ctx, sink)
	wg.Wait()
	elapsed := time.Since(start)

	switch {
	case feedErr != nil:
		return WrapExitError(ExitCommandError, "workload failed", feedErr)
	case duplicate != "":
		return NewExitError(ExitFailure, fmt.Sprintf("request %s delivered twice", duplicate))
	case runErr != nil:
		return WrapExitError(ExitCommandError, "dispatch loop failed", runErr)
	case ctx.Err() != nil:
		return WrapExitError(ExitCommandError, "drive interrupted", ctx.Err())
	}

	if err := d.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to tear down dispatcher", err)
	}

	events := rec.Events()
	digest, err := trace.Digest(events)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest trace", err)
	}

	counters := d.Counters()
	result := DriveResult{
		Items:        len(reqs),
		Submitted:    feed.Submitted,
		Absorbed:     feed.Absorbed,
		Delivered:    int(delivered.Load()),
		Normal:       counters.Normal,
		Expired:      counters.Expired,
		Events:       len(events),
		Elapsed:      elapsed,
		ConfigDigest: file.Digest(),
		TraceDigest:  digest,
	}

	if opts.Database != "" {
		st, err := opts.openStore(opts.Database)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.RecordRun(ctx, store.Run{
			Kind:   store.KindDrive,
			Name:   fmt.Sprintf("drive-%d-seed-%d", len(reqs), opts.Seed),
			Config: file,
		}, events)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		result.RunID = run.ID
	}

	log.Info("drive finished",
		logx.Int("delivered", result.Delivered),
		logx.Int("expired", result.Expired),
		logx.Duration("elapsed", elapsed),
		logx.String("trace_digest", digest),
	)

	mismatch := result.Delivered != feed.Expected()
	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if mismatch {
			response.Status = "error"
			response.Error = &CLIError{Code: "E_DELIVERY", Message: "delivery count mismatch"}
		}
		if err := writeResponse(cmd, response); err != nil {
			return err
		}
	} else {
		outputDriveText(cmd, result)
	}

	if mismatch {
		return NewExitError(ExitFailure, fmt.Sprintf("delivered %d of %d requests", result.Delivered, feed.Expected()))
	}
	return nil
}

func outputDriveText(cmd *cobra.Command, r DriveResult) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Drive: %d request(s) in %s\n", r.Items, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Submitted: %d (%d absorbed by merge)\n", r.Submitted, r.Absorbed)
	fmt.Fprintf(w, "  Delivered: %d (%d normal, %d expired)\n", r.Delivered, r.Normal, r.Expired)
	fmt.Fprintf(w, "  Events:    %d\n", r.Events)
	fmt.Fprintf(w, "  Digest:    %s\n", r.TraceDigest)
	if r.RunID != "" {
		fmt.Fprintf(w, "  Run:       %s\n", r.RunID)
	}
}
