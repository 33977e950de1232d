package host

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/roach88/fifosched/internal/sched"
)

// Workload describes a synthetic request stream.
type Workload struct {
	Items int
	Seed  uint64

	// SyncRatio, WriteRatio and MergeRatio are probabilities in [0, 1].
	SyncRatio  float64
	WriteRatio float64
	MergeRatio float64
}

// DefaultWorkload returns a read-heavy mixed workload of n items.
func DefaultWorkload(n int, seed uint64) Workload {
	return Workload{Items: n, Seed: seed, SyncRatio: 0.5, WriteRatio: 0.3, MergeRatio: 0.1}
}

// Request is one generated submission.
type Request struct {
	ID    string
	Class sched.Class
	Dir   sched.Direction

	// Absorb names an earlier request that ID absorbs right after it is
	// submitted. Empty for no merge.
	Absorb string
}

// Generate expands w into requests. The same workload always yields the
// same requests.
func Generate(w Workload) []Request {
	rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15))
	reqs := make([]Request, 0, w.Items)
	for i := 0; i < w.Items; i++ {
		r := Request{ID: fmt.Sprintf("req-%04d", i+1), Class: sched.Async, Dir: sched.Read}
		if rng.Float64() < w.SyncRatio {
			r.Class = sched.Sync
		}
		if rng.Float64() < w.WriteRatio {
			r.Dir = sched.Write
		}
		if i > 0 && rng.Float64() < w.MergeRatio {
			r.Absorb = reqs[rng.IntN(i)].ID
		}
		reqs = append(reqs, r)
	}
	return reqs
}

// FeedResult summarizes a Feed call.
type FeedResult struct {
	Submitted int
	Absorbed  int
}

// Expected returns the number of items that will be dispatched.
func (r FeedResult) Expected() int { return r.Submitted - r.Absorbed }

// Feed submits reqs in order, waiting gap between submissions, then drains
// the dispatcher.
func Feed(ctx context.Context, d *Dispatcher[string], reqs []Request, gap time.Duration) (FeedResult, error) {
	var res FeedResult
	defer d.Drain()

	for i, r := range reqs {
		if i > 0 && gap > 0 {
			t := time.NewTimer(gap)
			select {
			case <-ctx.Done():
				t.Stop()
				return res, ctx.Err()
			case <-t.C:
			}
		}

		if _, err := d.Submit(r.ID, r.Class, r.Dir); err != nil {
			return res, fmt.Errorf("submit %s: %w", r.ID, err)
		}
		res.Submitted++

		if r.Absorb == "" {
			continue
		}
		removed, err := d.Merge(r.ID, r.Absorb)
		if err != nil {
			return res, fmt.Errorf("merge %s into %s: %w", r.Absorb, r.ID, err)
		}
		if removed {
			res.Absorbed++
		}
	}
	return res, nil
}
