// Package datastore wraps the relational database behind a small pool contract:
// a worker acquires one Session, inserts rows through it, and releases it.
package datastore

import (
	"context"
	"errors"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"

	DefaultTable = "students"

	DefaultConnTimeout = 30 * time.Second
)

var (
	ErrAcquireTimeout = errors.New("datastore: timed out acquiring connection")
	ErrUnknownDriver  = errors.New("datastore: unknown driver")
	ErrInvalidTable   = errors.New("datastore: invalid table name")
)

// Student is one row of the insert workload
type Student struct {
	Name string
	Age  int
}

// Session is a connection held exclusively by one worker.
type Session interface {
	Insert(ctx context.Context, s Student) error
	Release() error
}

// Pool hands out sessions. Acquire fails with ErrAcquireTimeout when no
// connection frees up within the configured connection timeout.
type Pool interface {
	Acquire(ctx context.Context) (Session, error)
}
