package store

import (
	"fmt"
	"time"

	"github.com/roach88/fifosched/internal/config"
)

// Kind says what produced a run.
type Kind string

const (
	// KindScenario is a harness scenario run.
	KindScenario Kind = "scenario"
	// KindDrive is a host drive session.
	KindDrive Kind = "drive"
)

// Valid reports whether k is a known run kind.
func (k Kind) Valid() bool { return k == KindScenario || k == KindDrive }

// Run is one recorded trace and the tunables it ran with.
type Run struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Name string `json:"name"`

	// Config is the tick resolution and engine tunables. Scenario runs use
	// abstract ticks and carry a zero Tick.
	Config       config.File `json:"-"`
	ConfigDigest string      `json:"config_digest"`

	// TraceDigest and EventCount are set by FinishRun.
	TraceDigest string `json:"trace_digest,omitempty"`
	EventCount  int    `json:"event_count"`

	// Seq is the run's position in creation order.
	Seq int64 `json:"seq"`
}

// Finished reports whether FinishRun has sealed the run.
func (r Run) Finished() bool { return r.TraceDigest != "" }

// Tick returns the run's tick resolution, zero for abstract ticks.
func (r Run) Tick() time.Duration { return r.Config.Tick }

func (r Run) validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown run kind %q", r.Kind)
	}
	if r.Name == "" {
		return fmt.Errorf("run name is required")
	}
	if r.Config.Tick < 0 {
		return fmt.Errorf("tick must not be negative")
	}
	if err := r.Config.Scheduler.Validate(); err != nil {
		return err
	}
	return nil
}
