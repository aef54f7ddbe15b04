package runner

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"steadydb/internal/stats"
)

type ReporterState int32

const (
	ReporterIdle ReporterState = iota
	ReporterSampling
	ReporterStopped
)

func (s ReporterState) String() string {
	switch s {
	case ReporterIdle:
		return "idle"
	case ReporterSampling:
		return "sampling"
	case ReporterStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Reporter samples the success counter on a fixed schedule and logs the rate
// since the previous sample. It stops itself on the first tick after the run
// flag is cleared.
type Reporter struct {
	interval time.Duration
	stats    *stats.Stats
	run      *RunState
	logger   *zap.Logger
	updates  SampleChan

	window stats.Window
	state  atomic.Int32
	done   chan struct{}
}

func NewReporter(interval time.Duration, st *stats.Stats, run *RunState, logger *zap.Logger, updates SampleChan) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		interval: interval,
		stats:    st,
		run:      run,
		logger:   logger,
		updates:  updates,
		done:     make(chan struct{}),
	}
}

// Start launches the schedule in the background.
func (r *Reporter) Start() {
	go r.loop()
}

func (r *Reporter) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for now := range ticker.C {
		if !r.tick(now) {
			return
		}
	}
}

// tick handles one firing and reports whether the schedule continues.
func (r *Reporter) tick(now time.Time) bool {
	if !r.run.Running() {
		r.state.Store(int32(ReporterStopped))
		return false
	}
	r.state.CompareAndSwap(int32(ReporterIdle), int32(ReporterSampling))

	success := r.stats.Success()
	rate, ok := r.window.Observe(now, success)
	sample := Sample{
		Time:    now,
		Success: success,
		Failure: r.stats.Failure(),
		Rate:    rate,
		HasRate: ok,
	}

	if ok {
		r.logger.Info("progress",
			zap.Float64("rate", rate),
			zap.Uint64("total", success),
		)
	} else {
		r.logger.Debug("progress baseline", zap.Uint64("total", success))
	}

	r.publish(sample)
	return true
}

func (r *Reporter) publish(s Sample) {
	if r.updates == nil {
		return
	}
	// Drop if full, listeners are best effort
	select {
	case r.updates <- s:
	default:
	}
}

func (r *Reporter) State() ReporterState {
	return ReporterState(r.state.Load())
}

// Done is closed once the reporter has stopped.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}
