package system

import (
	"sort"
	"sync/atomic"
	"time"
)

// Runner executes systems in phase order each tick.
type Runner struct {
	systems []System
	sorted  bool

	ticks    atomic.Int64
	lastCost atomic.Int64 // ns spent inside the last Tick
	maxCost  atomic.Int64
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system once with the measured elapsed time.
func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	start := time.Now()
	for _, s := range r.systems {
		s.Update(dt)
	}
	cost := time.Since(start).Nanoseconds()
	r.ticks.Add(1)
	r.lastCost.Store(cost)
	if cost > r.maxCost.Load() {
		r.maxCost.Store(cost)
	}
}

// Stats reports tick count and the last / worst tick cost. Safe from any goroutine.
func (r *Runner) Stats() (ticks int64, last, worst time.Duration) {
	return r.ticks.Load(), time.Duration(r.lastCost.Load()), time.Duration(r.maxCost.Load())
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		// Stable: systems sharing a phase keep registration order.
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
