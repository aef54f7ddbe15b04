package runner

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"steadydb/internal/dummy"
)

func testConfig(workers, records int) Config {
	cfg := DefaultConfig()
	cfg.Workers = workers
	cfg.RecordsPerWorker = records
	cfg.ReportInterval = 10 * time.Millisecond
	cfg.ShutdownGrace = time.Second
	cfg.Datastore.PoolSize = workers
	cfg.Datastore.ConnTimeout = time.Second
	return cfg
}

func TestRunner_AllSucceed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pool := dummy.New(dummy.Config{Slots: 4})

	r := NewRunner(testConfig(4, 10), pool, zap.New(core), nil)
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Success != 40 || sum.Failure != 0 {
		t.Errorf("Expected 40 success / 0 failure, got %d / %d", sum.Success, sum.Failure)
	}
	if pool.Inserted() != 40 {
		t.Errorf("Expected the datastore to receive 40 rows, got %d", pool.Inserted())
	}
	if sum.Duration <= 0 {
		t.Fatalf("Expected positive duration, got %s", sum.Duration)
	}
	if want := 40 / sum.Duration.Seconds(); math.Abs(sum.AverageRate-want) > 1e-9*want {
		t.Errorf("Expected average rate %f, got %f", want, sum.AverageRate)
	}
	if sum.CallerRuns != 0 {
		t.Errorf("Expected no caller-run submissions at startup, got %d", sum.CallerRuns)
	}
	if sum.ShutdownTimedOut {
		t.Error("Unexpected shutdown timeout")
	}
	if sum.RunID == "" {
		t.Error("Expected a run id")
	}
	if pool.InUse() != 0 {
		t.Errorf("Expected every connection released, %d still held", pool.InUse())
	}
	if r.State.Running() {
		t.Error("Run flag should be cleared after Run returns")
	}
	if r.State.EndedAt.Before(r.State.StartedAt) {
		t.Error("End timestamp precedes start timestamp")
	}
	if r.Progress() != 1 {
		t.Errorf("Expected progress 1, got %f", r.Progress())
	}

	done := logs.FilterMessage("Load test completed").All()
	if len(done) != 1 {
		t.Fatalf("Expected one summary log, got %d", len(done))
	}
	ctx := done[0].ContextMap()
	if ctx["success"] != uint64(40) || ctx["failure"] != uint64(0) {
		t.Errorf("Unexpected summary fields: %v", ctx)
	}
}

func TestRunner_SingleWorkerInjectedFailure(t *testing.T) {
	pool := &fakePool{failInsert: func(attempt int) bool { return attempt == 3 }}

	r := NewRunner(testConfig(1, 5), pool, nil, nil)
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Success != 4 || sum.Failure != 1 {
		t.Errorf("Expected 4 success / 1 failure, got %d / %d", sum.Success, sum.Failure)
	}
	if attempts := pool.allSessions()[0].attempts; attempts != 5 {
		t.Errorf("Expected attempts 4 and 5 to run after the failure, got %d attempts", attempts)
	}
}

func TestRunner_AccountsForEveryAttempt(t *testing.T) {
	// every 7th attempt fails on each session
	pool := &fakePool{failInsert: func(attempt int) bool { return attempt%7 == 0 }}
	cfg := testConfig(8, 50)

	r := NewRunner(cfg, pool, nil, nil)
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := sum.Success + sum.Failure; got != cfg.TotalAttempts() {
		t.Errorf("Expected %d attempts accounted, got %d", cfg.TotalAttempts(), got)
	}
	if sum.Failure != 8*7 {
		t.Errorf("Expected 56 failures, got %d", sum.Failure)
	}
	if pool.released.Load() != 8 {
		t.Errorf("Expected 8 releases, got %d", pool.released.Load())
	}
}

func TestRunner_AcquisitionFailureContributesZero(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	pool := &fakePool{failAcquire: func(n int) bool { return n == 2 }}
	cfg := testConfig(3, 4)

	r := NewRunner(cfg, pool, zap.New(core), nil)
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.AcquireFailures != 1 {
		t.Errorf("Expected 1 acquire failure, got %d", sum.AcquireFailures)
	}
	want := cfg.TotalAttempts() - sum.AcquireFailures*uint64(cfg.RecordsPerWorker)
	if got := sum.Success + sum.Failure; got != want {
		t.Errorf("Expected %d attempts, got %d", want, got)
	}
	if logs.FilterMessage("Error in worker").Len() != 1 {
		t.Errorf("Expected the acquisition failure to be logged once")
	}
}

func TestRunner_UndersizedPoolRejected(t *testing.T) {
	cfg := testConfig(4, 10)
	cfg.Datastore.PoolSize = 2

	r := NewRunner(cfg, dummy.New(dummy.Config{Slots: 2}), nil, nil)
	_, err := r.Run(context.Background())
	if !errors.Is(err, ErrPoolSizeMismatch) {
		t.Fatalf("Expected ErrPoolSizeMismatch, got %v", err)
	}
	if r.State.Running() {
		t.Error("Rejected run must not start")
	}
}

func TestRunner_UndersizedDatastoreTimesOut(t *testing.T) {
	// the datastore only has 1 slot while 2 workers each hold one for the whole run
	cfg := testConfig(2, 3)
	cfg.Datastore.ConnTimeout = 50 * time.Millisecond
	pool := dummy.New(dummy.Config{
		Slots:       1,
		ConnTimeout: 50 * time.Millisecond,
		MinLatency:  100 * time.Millisecond,
		MaxLatency:  100 * time.Millisecond,
	})

	r := NewRunner(cfg, pool, nil, nil)
	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.AcquireFailures != 1 {
		t.Errorf("Expected 1 worker to time out acquiring, got %d", sum.AcquireFailures)
	}
	if sum.Success != 3 {
		t.Errorf("Expected the connected worker to finish 3 inserts, got %d", sum.Success)
	}
}

func TestRunner_RunTwice(t *testing.T) {
	r := NewRunner(testConfig(1, 1), &fakePool{}, nil, nil)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrRunStarted) {
		t.Errorf("Expected ErrRunStarted, got %v", err)
	}
}

func TestRunner_PublishesSamples(t *testing.T) {
	updates := make(SampleChan, 100)
	pool := dummy.New(dummy.Config{
		Slots:      2,
		MinLatency: 2 * time.Millisecond,
		MaxLatency: 3 * time.Millisecond,
	})

	r := NewRunner(testConfig(2, 30), pool, nil, updates)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The channel is closed once the reporter sees the run has ended
	var samples []Sample
	timeout := time.After(5 * time.Second)
drain:
	for {
		select {
		case s, ok := <-updates:
			if !ok {
				break drain
			}
			samples = append(samples, s)
		case <-timeout:
			t.Fatal("Updates channel was not closed after the run")
		}
	}
	if len(samples) == 0 {
		t.Skip("run finished before the first tick")
	}
	if samples[0].HasRate {
		t.Error("First published sample must be a baseline")
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Success < samples[i-1].Success {
			t.Errorf("Sample %d went backwards: %d < %d", i, samples[i].Success, samples[i-1].Success)
		}
	}
}
