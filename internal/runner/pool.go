package runner

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// WorkerPool runs tasks on a fixed set of goroutines fed by a bounded queue.
// When the queue is full, Submit runs the task on the caller instead of
// rejecting it or blocking.
type WorkerPool struct {
	tasks      chan func()
	wg         sync.WaitGroup
	closeOnce  sync.Once
	callerRuns atomic.Uint64
	logger     *zap.Logger
}

func NewWorkerPool(size, queue int, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &WorkerPool{
		tasks:  make(chan func(), queue),
		logger: logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *WorkerPool) loop() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task()
}

// Submit queues task, or runs it synchronously when the queue is full.
// It must not be called after Shutdown.
func (p *WorkerPool) Submit(task func()) {
	select {
	case p.tasks <- task:
	default:
		p.callerRuns.Add(1)
		p.logger.Debug("Queue full, running task on caller")
		p.run(task)
	}
}

// Shutdown stops accepting tasks; queued tasks still run.
func (p *WorkerPool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
}

// AwaitTermination waits up to timeout for every pool goroutine to exit and
// reports whether they did.
func (p *WorkerPool) AwaitTermination(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

// CallerRuns returns how many submissions ran on the submitting goroutine.
func (p *WorkerPool) CallerRuns() uint64 {
	return p.callerRuns.Load()
}
