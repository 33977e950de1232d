package harness

import (
	"fmt"

	"github.com/roach88/fifosched/internal/logx"
	"github.com/roach88/fifosched/internal/sched"
	"github.com/roach88/fifosched/internal/testutil"
	"github.com/roach88/fifosched/internal/trace"
)

// Harness is the scenario execution engine.
// It drives one fresh scheduler per run with a deterministic tick clock.
type Harness struct {
	session *trace.Session
	clock   *testutil.DeterministicClock
	logger  logx.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger logs each step at debug level.
func WithLogger(l logx.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine. Expected contract violations
// are caught per step; an unexpected violation fails the scenario but does
// not stop it. A non-nil error means the scenario could not be executed.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := scenario.Config.Apply(sched.DefaultConfig())
	session, err := trace.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		session: session,
		clock:   testutil.NewDeterministicClock(0),
		logger:  logx.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	result := NewResult()
	result.Config = cfg

	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, err
		}
	}

	result.Trace = session.Recorder.Events()
	digest, err := trace.Digest(result.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to digest trace: %w", err)
	}
	result.Digest = digest
	h.captureState(result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished",
		logx.String("scenario", scenario.Name),
		logx.Bool("pass", result.Pass),
		logx.Int("events", len(result.Trace)),
		logx.String("digest", digest),
	)
	return result, nil
}

// executeStep applies one step and checks its expectations.
func (h *Harness) executeStep(i int, step Step, result *Result) error {
	if step.At != nil {
		at := sched.Tick(*step.At)
		if at.Before(h.clock.Now()) {
			return fmt.Errorf("step %d: at %d is before the current tick %d", i, *step.At, h.clock.Now())
		}
		h.clock.Set(at)
	}
	h.clock.Advance(sched.Tick(step.Advance))

	req := step.request()
	req.At = int64(h.clock.Now())

	ev, err := h.session.Apply(req)
	if err != nil {
		return fmt.Errorf("step %d: %w", i, err)
	}

	label := fmt.Sprintf("step %d (%s)", i, step.Op)
	switch {
	case step.Violation != "" && ev.Violation != step.Violation:
		got := ev.Violation
		if got == "" {
			got = "none"
		}
		result.AddError(fmt.Sprintf("%s: expected violation %s, got %s", label, step.Violation, got))
	case step.Violation == "" && ev.Violation != "":
		result.AddError(fmt.Sprintf("%s: unexpected contract violation %s", label, ev.Violation))
	}

	if step.Expect != nil && ev.Violation == "" && ev.Result != *step.Expect {
		result.AddError(fmt.Sprintf("%s: expected %s, got %s", label, quoteOrEmpty(*step.Expect), quoteOrEmpty(ev.Result)))
	}
	if step.Path != "" && ev.Violation == "" && ev.Path != step.Path {
		result.AddError(fmt.Sprintf("%s: expected path %s, got %s", label, step.Path, quoteOrEmpty(ev.Path)))
	}

	h.logger.Debug("step",
		logx.Int("step", i),
		logx.String("op", step.Op),
		logx.Int64("at", req.At),
		logx.String("result", ev.Result),
		logx.String("violation", ev.Violation),
	)
	return nil
}

func (h *Harness) captureState(result *Result) {
	s := h.session.Sched
	result.Stats = s.Stats()
	for _, c := range sched.Classes {
		for _, d := range sched.Directions {
			result.Queues[QueueKey(c, d)] = s.Queue(c, d)
		}
	}
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "nothing"
	}
	return fmt.Sprintf("%q", s)
}
