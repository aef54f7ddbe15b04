package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"steadydb/internal/datastore"
	"steadydb/internal/stats"
)

// Runner wires workers, the worker pool and the reporter for a single run.
type Runner struct {
	Cfg   Config
	Pool  datastore.Pool
	Stats *stats.Stats
	State *RunState

	// Reporter samples, optional. Closed once the reporter has stopped.
	Updates SampleChan

	logger *zap.Logger
	active atomic.Int64
}

func NewRunner(cfg Config, pool datastore.Pool, logger *zap.Logger, updates SampleChan) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Cfg:     cfg,
		Pool:    pool,
		Stats:   stats.NewStats(),
		State:   &RunState{},
		Updates: updates,
		logger:  logger,
	}
}

// Run performs the whole load test and blocks until every worker is done.
// The returned summary is read straight from the counters.
func (r *Runner) Run(ctx context.Context) (stats.Summary, error) {
	if err := r.Cfg.Validate(); err != nil {
		return stats.Summary{}, err
	}

	runID := newRunID()
	logger := r.logger.With(zap.String("run_id", runID))

	if !r.State.begin(time.Now()) {
		return stats.Summary{}, ErrRunStarted
	}

	reporter := NewReporter(r.Cfg.ReportInterval, r.Stats, r.State, logger, r.Updates)
	reporter.Start()

	logger.Info("Load test started",
		zap.Int("workers", r.Cfg.Workers),
		zap.Int("records_per_worker", r.Cfg.RecordsPerWorker),
		zap.Int("pool_size", r.Cfg.Datastore.PoolSize),
	)

	wp := NewWorkerPool(r.Cfg.Workers, r.Cfg.Workers, logger)

	var barrier sync.WaitGroup
	for i := 0; i < r.Cfg.Workers; i++ {
		w := &Worker{
			ID:      i,
			Records: r.Cfg.RecordsPerWorker,
			Pool:    r.Pool,
			Stats:   r.Stats,
			Logger:  logger,
		}

		barrier.Add(1)
		wp.Submit(func() {
			defer barrier.Done()
			r.active.Add(1)
			defer r.active.Add(-1)

			if err := w.Run(ctx); err != nil {
				logger.Error("Error in worker", zap.Int("worker", w.ID), zap.Error(err))
			}
		})
	}

	barrier.Wait()

	wp.Shutdown()
	timedOut := !wp.AwaitTermination(r.Cfg.ShutdownGrace)
	if timedOut {
		logger.Warn("Workers still running after shutdown grace period, totals are a lower bound",
			zap.Duration("grace", r.Cfg.ShutdownGrace),
		)
	}

	r.State.finish(time.Now())
	if r.Updates != nil {
		go func() {
			<-reporter.Done()
			close(r.Updates)
		}()
	}

	sum := r.Stats.Summarize(r.State.StartedAt, r.State.EndedAt)
	sum.RunID = runID
	sum.CallerRuns = wp.CallerRuns()
	sum.ShutdownTimedOut = timedOut

	logger.Info("Load test completed",
		zap.Uint64("success", sum.Success),
		zap.Uint64("failure", sum.Failure),
		zap.Uint64("acquire_failures", sum.AcquireFailures),
		zap.Float64("duration_seconds", sum.DurationSeconds()),
		zap.Float64("average_rate", sum.AverageRate),
	)

	return sum, nil
}

// ActiveWorkers returns the number of workers currently executing.
func (r *Runner) ActiveWorkers() int64 {
	return r.active.Load()
}

// Progress returns the fraction of planned attempts that have finished.
func (r *Runner) Progress() float64 {
	total := r.Cfg.TotalAttempts()
	if total == 0 {
		return 0
	}
	pct := float64(r.Stats.Attempts()) / float64(total)
	if pct > 1 {
		pct = 1
	}
	return pct
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
