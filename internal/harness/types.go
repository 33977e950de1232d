package harness

import (
	"github.com/roach88/fifosched/internal/sched"
	"github.com/roach88/fifosched/internal/trace"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []trace.Event `json:"trace"`

	// Digest is the canonical digest of Trace.
	Digest string `json:"digest"`

	// Config is the tunables the engine ran with.
	Config sched.Config `json:"config"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Stats and Queues are the final engine state.
	Stats  sched.Stats         `json:"stats"`
	Queues map[string][]string `json:"queues"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []trace.Event{},
		Errors: []string{},
		Queues: make(map[string][]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Dispatched returns the released items in order.
func (r *Result) Dispatched() []string {
	out := []string{}
	for _, e := range r.Trace {
		if e.Dispatched() {
			out = append(out, e.Result)
		}
	}
	return out
}

// QueueKey names a queue in Result.Queues, e.g. "sync/read".
func QueueKey(class sched.Class, dir sched.Direction) string {
	return class.String() + "/" + dir.String()
}
