// Package dummy is an in-process stand-in for a datastore. It has a fixed number of
// connection slots, per-insert latency jitter and an optional random failure ratio.
package dummy

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"steadydb/internal/datastore"
)

// Driver selects this pool from the command line.
const Driver = "dummy"

var ErrSimulatedFailure = errors.New("dummy: simulated insert failure")

type Config struct {
	Slots       int
	ConnTimeout time.Duration

	// Each insert sleeps a random duration in [MinLatency, MaxLatency)
	MinLatency time.Duration
	MaxLatency time.Duration

	// ErrorRate is the fraction of inserts that fail (0..1)
	ErrorRate float64
}

// Pool implements datastore.Pool without any I/O.
type Pool struct {
	cfg      Config
	slots    *semaphore.Weighted
	inserted atomic.Uint64
	inUse    atomic.Int64
}

func New(cfg Config) *Pool {
	if cfg.Slots <= 0 {
		cfg.Slots = 1
	}
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = datastore.DefaultConnTimeout
	}
	return &Pool{
		cfg:   cfg,
		slots: semaphore.NewWeighted(int64(cfg.Slots)),
	}
}

func (p *Pool) Acquire(ctx context.Context) (datastore.Session, error) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.ConnTimeout)
	defer cancel()

	if err := p.slots.Acquire(actx, 1); err != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", datastore.ErrAcquireTimeout, p.cfg.ConnTimeout)
		}
		return nil, err
	}
	p.inUse.Add(1)
	return &session{pool: p}, nil
}

// Inserted returns the number of rows the pool accepted.
func (p *Pool) Inserted() uint64 {
	return p.inserted.Load()
}

// InUse returns the number of sessions currently held.
func (p *Pool) InUse() int64 {
	return p.inUse.Load()
}

func (p *Pool) latency() time.Duration {
	lo, hi := p.cfg.MinLatency, p.cfg.MaxLatency
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

type session struct {
	pool *Pool
	once sync.Once
}

func (s *session) Insert(ctx context.Context, _ datastore.Student) error {
	if d := s.pool.latency(); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if s.pool.cfg.ErrorRate > 0 && rand.Float64() < s.pool.cfg.ErrorRate {
		return ErrSimulatedFailure
	}
	s.pool.inserted.Add(1)
	return nil
}

func (s *session) Release() error {
	s.once.Do(func() {
		s.pool.inUse.Add(-1)
		s.pool.slots.Release(1)
	})
	return nil
}
