package robot

import (
	"sync"
	"time"
)

// TickStats summarises observed tick durations.
type TickStats struct {
	Samples  int
	Average  time.Duration
	Max      time.Duration
	Last     time.Duration
	Overruns int
}

// TickMonitor accumulates timing statistics for one periodic task. A tick
// longer than the budget counts as an overrun.
type TickMonitor struct {
	mu       sync.Mutex
	budget   time.Duration
	samples  int
	total    time.Duration
	max      time.Duration
	last     time.Duration
	overruns int

	// OnOverrun, if set, is called outside the lock with the duration of
	// each tick that exceeded the budget and the running overrun count.
	OnOverrun func(took time.Duration, overruns int)
}

func NewTickMonitor(budget time.Duration) *TickMonitor {
	return &TickMonitor{budget: budget}
}

// Observe records a completed tick and reports whether it overran.
func (m *TickMonitor) Observe(d time.Duration) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	m.samples++
	m.total += d
	if d > m.max {
		m.max = d
	}
	m.last = d
	over := m.budget > 0 && d > m.budget
	if over {
		m.overruns++
	}
	overruns, notify := m.overruns, m.OnOverrun
	m.mu.Unlock()

	if over && notify != nil {
		notify(d, overruns)
	}
	return over
}

func (m *TickMonitor) Snapshot() TickStats {
	if m == nil {
		return TickStats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := TickStats{Samples: m.samples, Max: m.max, Last: m.last, Overruns: m.overruns}
	if m.samples > 0 {
		s.Average = m.total / time.Duration(m.samples)
	}
	return s
}

func (m *TickMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.samples, m.total, m.max, m.last, m.overruns = 0, 0, 0, 0, 0
	m.mu.Unlock()
}
