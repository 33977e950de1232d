package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/roach88/fifosched/internal/logx"
	"github.com/roach88/fifosched/internal/sched"
	"github.com/roach88/fifosched/internal/trace"
)

var (
	// ErrClosed is returned by calls on a Dispatcher after Close.
	ErrClosed = errors.New("dispatcher closed")

	// ErrDraining is returned by Submit after Drain.
	ErrDraining = errors.New("dispatcher draining")

	// ErrDrained is returned by Next once a draining Dispatcher is empty.
	ErrDrained = errors.New("dispatcher drained")
)

// Sink receives released items.
type Sink[K comparable] interface {
	Deliver(ctx context.Context, item sched.Item[K]) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc[K comparable] func(ctx context.Context, item sched.Item[K]) error

// Deliver calls f.
func (f SinkFunc[K]) Deliver(ctx context.Context, item sched.Item[K]) error { return f(ctx, item) }

// Counters are the host-side totals.
type Counters struct {
	Submitted int `json:"submitted"`
	Merged    int `json:"merged"`
	Normal    int `json:"normal"`
	Expired   int `json:"expired"`
}

// Dispatched returns the number of released items.
func (c Counters) Dispatched() int { return c.Normal + c.Expired }

// Option configures a Dispatcher.
type Option[K comparable] func(*Dispatcher[K])

// WithRecorder records every engine call. The recorder is bound to the
// engine and stamped with the clock.
func WithRecorder[K comparable](rec *trace.Recorder[K]) Option[K] {
	return func(d *Dispatcher[K]) { d.rec = rec }
}

// WithLogger sets the logger used by Run.
func WithLogger[K comparable](l logx.Logger) Option[K] {
	return func(d *Dispatcher[K]) { d.log = l }
}

// WithRate paces Run to perSec dispatches per second with the given burst.
// A non-positive rate leaves Run unpaced.
func WithRate[K comparable](perSec float64, burst int) Option[K] {
	return func(d *Dispatcher[K]) {
		if perSec <= 0 {
			d.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// Dispatcher serializes access to one engine.
//
// Thread-safety: every method is safe for concurrent use.
type Dispatcher[K comparable] struct {
	mu       sync.Mutex
	s        *sched.Scheduler[K]
	clock    sched.Clock
	rec      *trace.Recorder[K]
	counters Counters
	lastPath sched.Path
	draining bool
	closed   bool

	notify  chan struct{}
	drained chan struct{} // closed by Drain
	done    chan struct{} // closed by Close

	limiter *rate.Limiter
	log     logx.Logger
}

// New builds a Dispatcher around a fresh engine.
func New[K comparable](cfg sched.Config, clock sched.Clock, opts ...Option[K]) (*Dispatcher[K], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tunables: %w", err)
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}

	d := &Dispatcher[K]{
		clock:   clock,
		notify:  make(chan struct{}, 1),
		drained: make(chan struct{}),
		done:    make(chan struct{}),
		log:     logx.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.s = sched.New(cfg, sched.WithObserver[K](d))
	if d.rec != nil {
		d.rec.Bind(d.s)
	}
	return d, nil
}

// Submit enqueues id and wakes a waiting Next.
func (d *Dispatcher[K]) Submit(id K, class sched.Class, dir sched.Direction) (item sched.Item[K], err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return sched.Item[K]{}, err
	}
	if d.draining {
		return sched.Item[K]{}, ErrDraining
	}

	now := d.stamp()
	req := trace.Event{Op: trace.OpEnqueue, Item: fmt.Sprint(id), Class: class.String(), Dir: dir.String(), At: int64(now)}
	err = d.guard(req, func() { item = d.s.Enqueue(id, class, dir, now) })
	if err != nil {
		return sched.Item[K]{}, err
	}

	select {
	case d.notify <- struct{}{}:
	default:
	}
	return item, nil
}

// Merge coalesces absorbed into survivor. It reports whether absorbed was
// queued and has been removed.
func (d *Dispatcher[K]) Merge(survivor, absorbed K) (removed bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return false, err
	}

	removed = d.s.Contains(absorbed)
	req := trace.Event{Op: trace.OpMerge, Item: fmt.Sprint(survivor), Other: fmt.Sprint(absorbed)}
	if err := d.guard(req, func() { d.s.Merge(survivor, absorbed) }); err != nil {
		return false, err
	}
	return removed, nil
}

// FormerNeighbor returns the item queued directly in front of id.
func (d *Dispatcher[K]) FormerNeighbor(id K) (K, bool, error) {
	return d.neighbor(trace.OpFormer, id, d.s.FormerNeighbor)
}

// LatterNeighbor returns the item queued directly behind id.
func (d *Dispatcher[K]) LatterNeighbor(id K) (K, bool, error) {
	return d.neighbor(trace.OpLatter, id, d.s.LatterNeighbor)
}

func (d *Dispatcher[K]) neighbor(op trace.Op, id K, fn func(K) (K, bool)) (n K, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return n, false, err
	}

	req := trace.Event{Op: op, Item: fmt.Sprint(id)}
	err = d.guard(req, func() {
		n, ok = fn(id)
		if d.rec != nil {
			d.rec.Neighbor(op, id, n, ok)
		}
	})
	return n, ok, err
}

// TryNext releases the next item without blocking. It reports false when
// nothing is queued.
func (d *Dispatcher[K]) TryNext() (sched.Item[K], sched.Path, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return sched.Item[K]{}, 0, false, err
	}
	return d.tryNextLocked()
}

func (d *Dispatcher[K]) tryNextLocked() (sched.Item[K], sched.Path, bool, error) {
	if d.s.Len() == 0 {
		return sched.Item[K]{}, 0, false, nil
	}
	item, ok := d.s.Dispatch(d.stamp())
	return item, d.lastPath, ok, nil
}

// Next blocks until an item is released, the context is done, or the
// Dispatcher is closed. A draining Dispatcher returns ErrDrained once empty.
func (d *Dispatcher[K]) Next(ctx context.Context) (sched.Item[K], sched.Path, error) {
	for {
		d.mu.Lock()
		if err := d.usable(); err != nil {
			d.mu.Unlock()
			return sched.Item[K]{}, 0, err
		}
		item, path, ok, err := d.tryNextLocked()
		draining := d.draining
		d.mu.Unlock()

		switch {
		case err != nil:
			return sched.Item[K]{}, 0, err
		case ok:
			return item, path, nil
		case draining:
			return sched.Item[K]{}, 0, ErrDrained
		}

		select {
		case <-ctx.Done():
			return sched.Item[K]{}, 0, ctx.Err()
		case <-d.done:
			return sched.Item[K]{}, 0, ErrClosed
		case <-d.drained:
		case <-d.notify:
		}
	}
}

// Run releases items to sink until the context is done, the Dispatcher
// drains, or sink fails. Each release first waits for a limiter token.
//
// Run returns nil when it stops because of Drain or a cancelled context.
func (d *Dispatcher[K]) Run(ctx context.Context, sink Sink[K]) error {
	for {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		item, path, err := d.Next(ctx)
		switch {
		case errors.Is(err, ErrDrained), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			d.log.Debug("dispatch loop stopped", logx.Err(err))
			return nil
		case err != nil:
			return err
		}

		d.log.Debug("dispatched",
			logx.String("id", fmt.Sprint(item.ID)),
			logx.Stringer("class", item.Class),
			logx.Stringer("dir", item.Direction),
			logx.Int64("deadline", int64(item.Deadline)),
			logx.Stringer("path", path),
		)
		if err := sink.Deliver(ctx, item); err != nil {
			d.log.Warn("sink rejected item", logx.String("id", fmt.Sprint(item.ID)), logx.Err(err))
			return fmt.Errorf("deliver %v: %w", item.ID, err)
		}
	}
}

// Drain stops accepting submissions. Next keeps releasing queued items
// and returns ErrDrained once the engine is empty. Every blocked Next
// wakes.
func (d *Dispatcher[K]) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return
	}
	d.draining = true
	close(d.drained)
}

// Close tears the engine down. Every queue must be empty; otherwise the
// contract violation is returned and the Dispatcher stays open.
func (d *Dispatcher[K]) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	err := d.guard(trace.Event{Op: trace.OpClose}, func() {
		d.s.Close()
		if d.rec != nil {
			d.rec.Close()
		}
	})
	if err != nil {
		return err
	}
	d.closed = true
	close(d.done)
	return nil
}

// Len returns the number of queued items.
func (d *Dispatcher[K]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.s.Len()
}

// Contains reports whether id is queued.
func (d *Dispatcher[K]) Contains(id K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.s.Contains(id)
}

// Stats returns the engine counters.
func (d *Dispatcher[K]) Stats() sched.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.s.Stats()
}

// Counters returns the host-side totals.
func (d *Dispatcher[K]) Counters() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters
}

// OnEnqueue implements sched.Observer. It runs under d.mu.
func (d *Dispatcher[K]) OnEnqueue(item sched.Item[K]) {
	d.counters.Submitted++
	if d.rec != nil {
		d.rec.OnEnqueue(item)
	}
}

// OnDispatch implements sched.Observer. It runs under d.mu.
func (d *Dispatcher[K]) OnDispatch(item sched.Item[K], path sched.Path) {
	d.lastPath = path
	if path == sched.PathExpired {
		d.counters.Expired++
	} else {
		d.counters.Normal++
	}
	if d.rec != nil {
		d.rec.OnDispatch(item, path)
	}
}

// OnMerge implements sched.Observer. It runs under d.mu.
func (d *Dispatcher[K]) OnMerge(survivor, absorbed K, inherited bool) {
	d.counters.Merged++
	if d.rec != nil {
		d.rec.OnMerge(survivor, absorbed, inherited)
	}
}

// stamp reads the clock and passes the reading to the recorder.
func (d *Dispatcher[K]) stamp() sched.Tick {
	now := d.clock.Now()
	if d.rec != nil {
		d.rec.SetTick(now)
	}
	return now
}

func (d *Dispatcher[K]) usable() error {
	if d.closed {
		return ErrClosed
	}
	return nil
}

// guard runs fn and turns a contract violation into an error, recording
// it against req.
func (d *Dispatcher[K]) guard(req trace.Event, fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cv, ok := sched.AsContractViolation(r)
		if !ok {
			panic(r)
		}
		if d.rec != nil {
			d.rec.Violation(req, cv.Code)
		}
		err = cv
	}()
	fn()
	return nil
}

var _ sched.Observer[string] = (*Dispatcher[string])(nil)
