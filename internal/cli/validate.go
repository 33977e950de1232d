package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fifosched/internal/config"
)

// ValidationError is one problem found in a tunables file.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Config map[string]any    `json:"config,omitempty"`
	Digest string            `json:"digest,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Validate a tunables file",
		Long: `Validate a CUE tunables file against the config schema and print the
resolved, tick-denominated tunables and their digest.

Exit codes:
  0 - Tunables are valid
  1 - Tunables are invalid
  2 - Command error (file not readable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Loading tunables from %s", path)
	file, err := config.Load(path)
	if err != nil {
		var le *config.LoadError
		if !errors.As(err, &le) {
			return outputValidateError(formatter, "E_CONFIG", err.Error())
		}
		if le.Code == config.ErrCodeRead {
			return outputValidateError(formatter, le.Code, le.Message)
		}
		verr := ValidationError{Code: le.Code, Message: le.Message}
		if le.Pos.IsValid() {
			verr.Line = le.Pos.Line()
			verr.Column = le.Pos.Column()
		}
		return outputValidationErrors(formatter, []ValidationError{verr})
	}

	return outputValidateSuccess(formatter, file)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, file config.File) error {
	result := ValidationResult{
		Valid:  true,
		Config: file.Fields(),
		Digest: file.Digest(),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	c := file.Scheduler
	fmt.Fprintln(w, "✓ Tunables valid")
	fmt.Fprintf(w, "  tick:               %s\n", file.Tick)
	fmt.Fprintf(w, "  sync_read_expire:   %d ticks\n", c.SyncReadExpire)
	fmt.Fprintf(w, "  sync_write_expire:  %d ticks\n", c.SyncWriteExpire)
	fmt.Fprintf(w, "  async_read_expire:  %d ticks\n", c.AsyncReadExpire)
	fmt.Fprintf(w, "  async_write_expire: %d ticks\n", c.AsyncWriteExpire)
	fmt.Fprintf(w, "  fifo_batch:         %d\n", c.FIFOBatch)
	fmt.Fprintf(w, "  writes_starved:     %d\n", c.WritesStarved)
	fmt.Fprintf(w, "  digest:             %s\n", result.Digest)
	return nil
}

// outputValidateError outputs an error that stopped validation.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs validation failures.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.Respond(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}
	return failure
}
