package stats

import (
	"sync/atomic"
)

// Stats holds the run-wide insert counters. Counters only ever grow.
type Stats struct {
	success         atomic.Uint64
	failure         atomic.Uint64
	acquireFailures atomic.Uint64

	// Insert latency (microseconds), merged from worker histograms when each worker ends
	Latency *SafeHistogram
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Success         uint64
	Failure         uint64
	AcquireFailures uint64
}

func NewStats() *Stats {
	return &Stats{Latency: NewSafeHistogram()}
}

func (s *Stats) AddSuccess() { s.success.Add(1) }

func (s *Stats) AddFailure() { s.failure.Add(1) }

// AddAcquireFailure counts a worker that never got a connection.
func (s *Stats) AddAcquireFailure() { s.acquireFailures.Add(1) }

func (s *Stats) Success() uint64 { return s.success.Load() }

func (s *Stats) Failure() uint64 { return s.failure.Load() }

func (s *Stats) AcquireFailures() uint64 { return s.acquireFailures.Load() }

// Attempts is the number of inserts that have finished either way.
func (s *Stats) Attempts() uint64 {
	return s.Success() + s.Failure()
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Success:         s.Success(),
		Failure:         s.Failure(),
		AcquireFailures: s.AcquireFailures(),
	}
}

// ErrorRate is the failed share of finished attempts, in percent.
func ErrorRate(success, failure uint64) float64 {
	total := success + failure
	if total == 0 {
		return 0
	}
	return (float64(failure) / float64(total)) * 100
}

func (s *Stats) GetP50() float64 {
	return float64(s.Latency.ValueAtQuantile(50)) / 1000.0 // ms
}

func (s *Stats) GetP90() float64 {
	return float64(s.Latency.ValueAtQuantile(90)) / 1000.0
}

func (s *Stats) GetP99() float64 {
	return float64(s.Latency.ValueAtQuantile(99)) / 1000.0
}
