package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"steadydb/internal/datastore"
	"steadydb/internal/stats"
)

// Worker holds one connection for its whole life and performs exactly
// Records insert attempts through it.
type Worker struct {
	ID      int
	Records int
	Pool    datastore.Pool
	Stats   *stats.Stats
	Logger  *zap.Logger

	// Next produces insert parameters; RandomStudent when nil
	Next func() datastore.Student
}

// Run returns an error only when no connection could be acquired. Per-insert
// failures are counted and logged, and the loop carries on.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.logger()

	sess, err := w.Pool.Acquire(ctx)
	if err != nil {
		w.Stats.AddAcquireFailure()
		return fmt.Errorf("worker %d: %w", w.ID, err)
	}
	defer func() {
		if err := sess.Release(); err != nil {
			logger.Warn("Failed to release connection", zap.Error(err))
		}
	}()

	hist := stats.NewLatencyHistogram()
	defer w.Stats.Latency.Merge(hist)

	for i := 0; i < w.Records; i++ {
		start := time.Now()
		if err := w.attempt(ctx, sess); err != nil {
			w.Stats.AddFailure()
			fields := []zap.Field{zap.Int("attempt", i), zap.Error(err)}
			if code, ok := datastore.ErrorCode(err); ok {
				fields = append(fields, zap.String("code", code))
			}
			logger.Error("Error inserting record", fields...)
			continue
		}
		w.Stats.AddSuccess()
		recordLatency(hist, time.Since(start), logger)
	}
	return nil
}

// recordLatency adds d to hist. Values outside the histogram range are
// logged and left out, so the summary's LatencySamples falls below Success.
func recordLatency(hist *hdrhistogram.Histogram, d time.Duration, logger *zap.Logger) {
	if err := hist.RecordValue(d.Microseconds()); err != nil {
		logger.Debug("Latency outside histogram range", zap.Duration("latency", d), zap.Error(err))
	}
}

func (w *Worker) attempt(ctx context.Context, sess datastore.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("insert panicked: %v", r)
		}
	}()

	next := w.Next
	if next == nil {
		next = RandomStudent
	}
	return sess.Insert(ctx, next())
}

func (w *Worker) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop().With(zap.Int("worker", w.ID))
	}
	return w.Logger.With(zap.Int("worker", w.ID))
}
