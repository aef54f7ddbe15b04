package runner

import (
	"sync/atomic"
	"time"
)

// RunState is the shared run flag plus the run's timestamps. The flag goes
// from true to false exactly once; timestamps are written by the controller.
type RunState struct {
	started atomic.Bool
	running atomic.Bool

	StartedAt time.Time
	EndedAt   time.Time
}

func (s *RunState) begin(now time.Time) bool {
	if !s.started.CompareAndSwap(false, true) {
		return false
	}
	s.StartedAt = now
	s.running.Store(true)
	return true
}

func (s *RunState) finish(now time.Time) bool {
	if !s.running.CompareAndSwap(true, false) {
		return false
	}
	s.EndedAt = now
	return true
}

// Running reports whether workers may still be producing inserts.
func (s *RunState) Running() bool {
	return s.running.Load()
}
