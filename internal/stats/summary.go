package stats

import "time"

// Summary is the final result of a run
type Summary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	Success         uint64 `json:"success"`
	Failure         uint64 `json:"failure"`
	AcquireFailures uint64 `json:"acquire_failures"`

	Duration    time.Duration `json:"duration"`
	AverageRate float64       `json:"average_rate"`

	// LatencySamples is below Success when values fell outside the histogram range
	LatencySamples int64   `json:"latency_samples"`
	MeanMs         float64 `json:"mean_ms"`
	P50Ms          float64 `json:"p50_ms"`
	P90Ms          float64 `json:"p90_ms"`
	P99Ms          float64 `json:"p99_ms"`
	MaxMs          float64 `json:"max_ms"`

	CallerRuns       uint64 `json:"caller_runs"`
	ShutdownTimedOut bool   `json:"shutdown_timed_out"`
}

// Summarize reads the counters once and derives duration and average rate.
func (s *Stats) Summarize(start, end time.Time) Summary {
	snap := s.Snapshot()
	d := end.Sub(start)

	return Summary{
		StartedAt:       start,
		EndedAt:         end,
		Success:         snap.Success,
		Failure:         snap.Failure,
		AcquireFailures: snap.AcquireFailures,
		Duration:        d,
		AverageRate:     AverageRate(snap.Success, d),
		LatencySamples:  s.Latency.TotalCount(),
		MeanMs:          s.Latency.Mean() / 1000.0,
		P50Ms:           s.GetP50(),
		P90Ms:           s.GetP90(),
		P99Ms:           s.GetP99(),
		MaxMs:           float64(s.Latency.Max()) / 1000.0,
	}
}

// AverageRate returns successes per second, or 0 for a non-positive duration.
func AverageRate(success uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(success) / d.Seconds()
}

// DurationSeconds is the run length in seconds.
func (s Summary) DurationSeconds() float64 {
	return s.Duration.Seconds()
}
