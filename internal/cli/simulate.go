package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fifosched/internal/config"
	"github.com/roach88/fifosched/internal/harness"
	"github.com/roach88/fifosched/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database string
}

// SimulateResult describes a recorded scenario run.
type SimulateResult struct {
	RunID       string   `json:"run_id"`
	Scenario    string   `json:"scenario"`
	Pass        bool     `json:"pass"`
	Events      int      `json:"events"`
	Dispatched  []string `json:"dispatched"`
	TraceDigest string   `json:"trace_digest"`
	Errors      []string `json:"errors,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run one scenario and record its trace",
		Long: `Run a single scenario and store its trace as a run in the database.

The run is recorded even when the scenario fails, so the trace can be
inspected with the trace command.

Exit codes:
  0 - Scenario passed and was recorded
  1 - Scenario failed (still recorded)
  2 - Command error (invalid scenario, database error, etc.)

Examples:
  fifosched simulate ./scenarios/write_starvation.yaml --db ./runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSimulate(opts *SimulateOptions, scenarioFile string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	log := opts.logger(cmd.ErrOrStderr())
	result, err := harness.Run(scenario, harness.WithLogger(log))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	st, err := opts.openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.RecordRun(cmd.Context(), store.Run{
		Kind:   store.KindScenario,
		Name:   scenario.Name,
		Config: config.File{Scheduler: result.Config},
	}, result.Trace)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}
	if run.TraceDigest != result.Digest {
		return NewExitError(ExitFailure, fmt.Sprintf("stored trace digest %s does not match %s", run.TraceDigest, result.Digest))
	}

	out := SimulateResult{
		RunID:       run.ID,
		Scenario:    scenario.Name,
		Pass:        result.Pass,
		Events:      run.EventCount,
		Dispatched:  result.Dispatched(),
		TraceDigest: run.TraceDigest,
		Errors:      result.Errors,
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: out}
		if !out.Pass {
			response.Status = "error"
			response.Error = &CLIError{Code: "E_TEST_FAILED", Message: "scenario failed"}
		}
		if err := writeResponse(cmd, response); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		mark := "✓"
		if !out.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s recorded as run %s\n", mark, out.Scenario, out.RunID)
		fmt.Fprintf(w, "  Events:     %d\n", out.Events)
		fmt.Fprintf(w, "  Dispatched: %v\n", out.Dispatched)
		fmt.Fprintf(w, "  Digest:     %s\n", out.TraceDigest)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !out.Pass {
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}
