package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"steadydb/internal/datastore"
)

var errInjected = errors.New("injected insert failure")

// fakePool hands out in-memory sessions and lets tests inject failures by
// acquisition order and per-session attempt number (1-based).
type fakePool struct {
	failAcquire func(n int) bool
	failInsert  func(attempt int) bool
	panicInsert func(attempt int) bool

	acquires atomic.Int32
	released atomic.Int32

	mu       sync.Mutex
	sessions []*fakeSession
}

func (p *fakePool) Acquire(ctx context.Context) (datastore.Session, error) {
	n := int(p.acquires.Add(1))
	if p.failAcquire != nil && p.failAcquire(n) {
		return nil, datastore.ErrAcquireTimeout
	}
	s := &fakeSession{pool: p}
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s, nil
}

func (p *fakePool) allSessions() []*fakeSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakeSession(nil), p.sessions...)
}

type fakeSession struct {
	pool     *fakePool
	attempts int
	rows     []datastore.Student
}

func (s *fakeSession) Insert(ctx context.Context, st datastore.Student) error {
	s.attempts++
	if s.pool.panicInsert != nil && s.pool.panicInsert(s.attempts) {
		panic("driver blew up")
	}
	if s.pool.failInsert != nil && s.pool.failInsert(s.attempts) {
		return errInjected
	}
	s.rows = append(s.rows, st)
	return nil
}

func (s *fakeSession) Release() error {
	s.pool.released.Add(1)
	return nil
}
