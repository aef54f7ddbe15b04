package runner

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"steadydb/internal/stats"
)

func TestReporter_TickSequence(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	st := stats.NewStats()
	state := &RunState{}
	state.begin(time.Now())

	updates := make(SampleChan, 10)
	r := NewReporter(time.Hour, st, state, zap.New(core), updates)

	if r.State() != ReporterIdle {
		t.Fatalf("Expected idle before first tick, got %s", r.State())
	}

	base := time.Unix(5000, 0)
	for i := 0; i < 100; i++ {
		st.AddSuccess()
	}
	if !r.tick(base) {
		t.Fatal("tick should continue while running")
	}
	if r.State() != ReporterSampling {
		t.Errorf("Expected sampling after first tick, got %s", r.State())
	}

	first := <-updates
	if first.HasRate {
		t.Error("First sample must not carry a rate")
	}
	if first.Success != 100 {
		t.Errorf("Expected baseline of 100, got %d", first.Success)
	}
	if logs.FilterMessage("progress").Len() != 0 {
		t.Error("No progress line expected before the second sample")
	}

	for i := 0; i < 250; i++ {
		st.AddSuccess()
	}
	r.tick(base.Add(5 * time.Second))

	second := <-updates
	if !second.HasRate || second.Rate != 50 {
		t.Errorf("Expected rate 50, got %f (HasRate=%v)", second.Rate, second.HasRate)
	}

	entries := logs.FilterMessage("progress").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 progress line, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["rate"] != float64(50) || ctx["total"] != uint64(350) {
		t.Errorf("Unexpected progress fields: %v", ctx)
	}

	state.finish(time.Now())
	if r.tick(base.Add(10 * time.Second)) {
		t.Error("tick should stop once the run flag is cleared")
	}
	if r.State() != ReporterStopped {
		t.Errorf("Expected stopped, got %s", r.State())
	}
	if len(updates) != 0 {
		t.Error("Stopped tick must not publish a sample")
	}
}

func TestReporter_StopsItselfAfterRunEnds(t *testing.T) {
	st := stats.NewStats()
	state := &RunState{}
	state.begin(time.Now())

	updates := make(SampleChan, 100)
	r := NewReporter(10*time.Millisecond, st, state, nil, updates)
	r.Start()

	deadline := time.After(2 * time.Second)
	for got := 0; got < 3; {
		select {
		case <-updates:
			st.AddSuccess()
			got++
		case <-deadline:
			t.Fatal("reporter did not produce samples")
		}
	}

	state.finish(time.Now())

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop after run ended")
	}
	if r.State() != ReporterStopped {
		t.Errorf("Expected stopped, got %s", r.State())
	}
}

func TestReporter_DropsWhenListenerIsSlow(t *testing.T) {
	st := stats.NewStats()
	state := &RunState{}
	state.begin(time.Now())

	updates := make(SampleChan, 1)
	r := NewReporter(time.Hour, st, state, nil, updates)

	base := time.Unix(0, 0)
	r.tick(base)
	r.tick(base.Add(time.Second)) // must not block

	if len(updates) != 1 {
		t.Errorf("Expected 1 buffered sample, got %d", len(updates))
	}
}

func TestReporterState_String(t *testing.T) {
	if ReporterStopped.String() != "stopped" || ReporterState(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
