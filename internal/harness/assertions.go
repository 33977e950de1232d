package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fifosched/internal/sched"
	"github.com/roach88/fifosched/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Trace    []trace.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nDispatches:\n")
	for _, event := range e.Trace {
		if event.Dispatched() {
			fmt.Fprintf(&buf, "  [%d] t=%d %s (%s)\n", event.Seq, event.At, event.Result, event.Path)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertDispatchOrder:
		return assertDispatchOrder(result, a)
	case AssertDispatchCount:
		return assertDispatchCount(result, a)
	case AssertQueueLen:
		return assertQueueLen(result, a)
	case AssertQueue:
		return assertQueue(result, a)
	case AssertCounters:
		return assertCounters(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertDispatchOrder checks the released items are exactly the list given.
func assertDispatchOrder(result *Result, a Assertion) error {
	got := result.Dispatched()
	if slices.Equal(got, a.Items) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDispatchOrder,
		Expected: fmt.Sprintf("%v", a.Items),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

func assertDispatchCount(result *Result, a Assertion) error {
	got := len(result.Dispatched())
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDispatchCount,
		Expected: fmt.Sprintf("%d dispatches", *a.Count),
		Actual:   fmt.Sprintf("%d dispatches", got),
		Trace:    result.Trace,
	}
}

func assertQueueLen(result *Result, a Assertion) error {
	key, err := queueKeyOf(a)
	if err != nil {
		return err
	}
	got := len(result.Queues[key])
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertQueueLen,
		Expected: fmt.Sprintf("%s holds %d", key, *a.Count),
		Actual:   fmt.Sprintf("%s holds %d %v", key, got, result.Queues[key]),
		Trace:    result.Trace,
	}
}

func assertQueue(result *Result, a Assertion) error {
	key, err := queueKeyOf(a)
	if err != nil {
		return err
	}
	got := result.Queues[key]
	if slices.Equal(got, a.Items) || (len(got) == 0 && len(a.Items) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertQueue,
		Expected: fmt.Sprintf("%s = %v", key, a.Items),
		Actual:   fmt.Sprintf("%s = %v", key, got),
		Trace:    result.Trace,
	}
}

func assertCounters(result *Result, a Assertion) error {
	var want, got []string
	if a.Batched != nil {
		want = append(want, fmt.Sprintf("batched=%d", *a.Batched))
		got = append(got, fmt.Sprintf("batched=%d", result.Stats.Batched))
	}
	if a.Starved != nil {
		want = append(want, fmt.Sprintf("starved=%d", *a.Starved))
		got = append(got, fmt.Sprintf("starved=%d", result.Stats.Starved))
	}
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCounters,
		Expected: strings.Join(want, " "),
		Actual:   strings.Join(got, " "),
		Trace:    result.Trace,
	}
}

func queueKeyOf(a Assertion) (string, error) {
	class, err := sched.ParseClass(a.Class)
	if err != nil {
		return "", err
	}
	dir, err := sched.ParseDirection(a.Dir)
	if err != nil {
		return "", err
	}
	return QueueKey(class, dir), nil
}
