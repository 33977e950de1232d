package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fifosched/internal/sched"
	"github.com/roach88/fifosched/internal/trace"
)

// Scenario is a scripted run of the engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides individual tunables. Unset fields keep the defaults.
	Config *ConfigOverrides `yaml:"config,omitempty"`

	// Steps are the engine calls, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ConfigOverrides holds optional tunables, in ticks and dispatch counts.
type ConfigOverrides struct {
	SyncReadExpire   *int64 `yaml:"sync_read_expire,omitempty"`
	SyncWriteExpire  *int64 `yaml:"sync_write_expire,omitempty"`
	AsyncReadExpire  *int64 `yaml:"async_read_expire,omitempty"`
	AsyncWriteExpire *int64 `yaml:"async_write_expire,omitempty"`
	FIFOBatch        *int   `yaml:"fifo_batch,omitempty"`
	WritesStarved    *int   `yaml:"writes_starved,omitempty"`
}

// Apply returns base with the set overrides applied.
func (o *ConfigOverrides) Apply(base sched.Config) sched.Config {
	if o == nil {
		return base
	}
	setTick := func(dst *sched.Tick, v *int64) {
		if v != nil {
			*dst = sched.Tick(*v)
		}
	}
	setTick(&base.SyncReadExpire, o.SyncReadExpire)
	setTick(&base.SyncWriteExpire, o.SyncWriteExpire)
	setTick(&base.AsyncReadExpire, o.AsyncReadExpire)
	setTick(&base.AsyncWriteExpire, o.AsyncWriteExpire)
	if o.FIFOBatch != nil {
		base.FIFOBatch = *o.FIFOBatch
	}
	if o.WritesStarved != nil {
		base.WritesStarved = *o.WritesStarved
	}
	return base
}

// Step is one engine call.
type Step struct {
	// Op is the engine call: enqueue, dispatch, merge, former, latter, close.
	Op string `yaml:"op"`

	// Item is the id to enqueue or to query neighbours of.
	Item string `yaml:"item,omitempty"`

	// Class and Dir tag an enqueued item.
	Class string `yaml:"class,omitempty"`
	Dir   string `yaml:"dir,omitempty"`

	// At sets the clock before the step. Advance moves it forward.
	At      *int64 `yaml:"at,omitempty"`
	Advance int64  `yaml:"advance,omitempty"`

	// Survivor and Absorbed name the merge participants.
	Survivor string `yaml:"survivor,omitempty"`
	Absorbed string `yaml:"absorbed,omitempty"`

	// Expect is the expected result: the dispatched item, the neighbour,
	// or inherited/kept for a merge. An empty string expects nothing.
	Expect *string `yaml:"expect,omitempty"`

	// Path is the expected dispatch path: normal or expired.
	Path string `yaml:"path,omitempty"`

	// Violation is the contract violation code the step must raise.
	Violation string `yaml:"violation,omitempty"`
}

// request converts the step into a trace request. The tick is filled in
// by the runner.
func (s Step) request() trace.Event {
	e := trace.Event{Op: trace.Op(s.Op), Item: s.Item, Class: s.Class, Dir: s.Dir}
	if e.Op == trace.OpMerge {
		e.Item, e.Other = s.Survivor, s.Absorbed
	}
	return e
}

// Assertion validates the trace or the final engine state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Items is the expected id list (dispatch_order, queue).
	Items []string `yaml:"items,omitempty"`

	// Count is the expected number (dispatch_count, queue_len).
	Count *int `yaml:"count,omitempty"`

	// Class and Dir select a queue (queue_len, queue).
	Class string `yaml:"class,omitempty"`
	Dir   string `yaml:"dir,omitempty"`

	// Batched and Starved are the expected counters (counters).
	Batched *int `yaml:"batched,omitempty"`
	Starved *int `yaml:"starved,omitempty"`
}

// Assertion type constants.
const (
	AssertDispatchOrder = "dispatch_order"
	AssertDispatchCount = "dispatch_count"
	AssertQueueLen      = "queue_len"
	AssertQueue         = "queue"
	AssertCounters      = "counters"
)

var knownViolations = map[string]bool{
	string(sched.ErrCodeDoubleEnqueue):    true,
	string(sched.ErrCodeNotQueued):        true,
	string(sched.ErrCodeSelfMerge):        true,
	string(sched.ErrCodeNonEmptyTeardown): true,
	string(sched.ErrCodeClosed):           true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if err := s.Config.Apply(sched.DefaultConfig()).Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, step Step) error {
	op := trace.Op(step.Op)
	if !op.Valid() {
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	if step.Advance < 0 {
		return fmt.Errorf("steps[%d]: advance must not be negative", i)
	}
	if step.Violation != "" && !knownViolations[step.Violation] {
		return fmt.Errorf("steps[%d]: unknown violation %q", i, step.Violation)
	}

	switch op {
	case trace.OpEnqueue:
		if step.Item == "" {
			return fmt.Errorf("steps[%d]: enqueue requires item", i)
		}
		if _, err := sched.ParseClass(step.Class); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if _, err := sched.ParseDirection(step.Dir); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("steps[%d]: enqueue does not take expect", i)
		}
	case trace.OpMerge:
		if step.Survivor == "" || step.Absorbed == "" {
			return fmt.Errorf("steps[%d]: merge requires survivor and absorbed", i)
		}
		if step.Expect != nil && *step.Expect != trace.MergeInherited && *step.Expect != trace.MergeKept {
			return fmt.Errorf("steps[%d]: merge expect must be %s or %s", i, trace.MergeInherited, trace.MergeKept)
		}
	case trace.OpFormer, trace.OpLatter:
		if step.Item == "" {
			return fmt.Errorf("steps[%d]: %s requires item", i, op)
		}
	case trace.OpClose:
		if step.Expect != nil {
			return fmt.Errorf("steps[%d]: close does not take expect", i)
		}
	}

	if step.Path != "" {
		if op != trace.OpDispatch {
			return fmt.Errorf("steps[%d]: path is only valid on dispatch", i)
		}
		if step.Path != sched.PathNormal.String() && step.Path != sched.PathExpired.String() {
			return fmt.Errorf("steps[%d]: path must be normal or expired", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertDispatchOrder:
		if a.Items == nil {
			return fmt.Errorf("assertions[%d]: dispatch_order requires items", index)
		}
	case AssertDispatchCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: dispatch_count requires count", index)
		}
	case AssertQueueLen, AssertQueue:
		if _, err := sched.ParseClass(a.Class); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if _, err := sched.ParseDirection(a.Dir); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Type == AssertQueueLen && a.Count == nil {
			return fmt.Errorf("assertions[%d]: queue_len requires count", index)
		}
		if a.Type == AssertQueue && a.Items == nil {
			return fmt.Errorf("assertions[%d]: queue requires items", index)
		}
	case AssertCounters:
		if a.Batched == nil && a.Starved == nil {
			return fmt.Errorf("assertions[%d]: counters requires batched or starved", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
