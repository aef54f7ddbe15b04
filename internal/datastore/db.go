package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DB is a size-bounded database/sql pool where every connection is prepared
// to run the workload insert.
type DB struct {
	db      *sql.DB
	cfg     Config
	table   string
	dialect dialect
	logger  *zap.Logger
}

// Open builds the pool, waits for the datastore to answer, and opens PoolSize
// connections up front so the pool starts full (minIdle == maxSize).
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = DefaultConnTimeout
	}

	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	table, err := cfg.TableName()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.PoolSize > 0 {
		sqlDB.SetMaxOpenConns(cfg.PoolSize)
		sqlDB.SetMaxIdleConns(cfg.PoolSize)
	}
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	store := &DB{
		db:      sqlDB,
		cfg:     cfg,
		table:   table,
		dialect: d,
		logger:  logger,
	}

	if err := store.ping(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", cfg.Driver, err)
	}
	if err := store.warm(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return store, nil
}

func (d *DB) ping(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = d.cfg.ConnTimeout

	return backoff.RetryNotify(
		func() error { return d.db.PingContext(ctx) },
		backoff.WithContext(bo, ctx),
		func(err error, wait time.Duration) {
			d.logger.Warn("Datastore not reachable, retrying",
				zap.String("driver", d.cfg.Driver),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
}

func (d *DB) warm(ctx context.Context) error {
	if d.cfg.PoolSize <= 0 {
		return nil
	}

	wctx, cancel := d.withTimeout(ctx)
	defer cancel()

	conns := make([]*sql.Conn, 0, d.cfg.PoolSize)
	defer func() {
		// Close hands each connection back to the idle set
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < d.cfg.PoolSize; i++ {
		c, err := d.db.Conn(wctx)
		if err != nil {
			return fmt.Errorf("failed to open connection %d of %d: %w", i+1, d.cfg.PoolSize, err)
		}
		conns = append(conns, c)
	}

	d.logger.Debug("Connection pool warmed", zap.Int("connections", len(conns)))
	return nil
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.ConnTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.ConnTimeout)
}

// EnsureSchema creates the workload table if it does not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf(d.dialect.createTable, d.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.table, err)
	}
	return nil
}

// Acquire pins one pooled connection and prepares the insert on it.
func (d *DB) Acquire(ctx context.Context) (Session, error) {
	actx, cancel := d.withTimeout(ctx)
	defer cancel()

	conn, err := d.db.Conn(actx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAcquireTimeout, d.cfg.ConnTimeout)
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	stmt, err := conn.PrepareContext(actx, fmt.Sprintf(d.dialect.insert, d.table))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return &sqlSession{conn: conn, stmt: stmt}, nil
}

// CountRows returns the number of rows in the workload table.
func (d *DB) CountRows(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, fmt.Sprintf(d.dialect.count, d.table)).Scan(&n)
	return n, err
}

// Stats exposes the underlying pool statistics.
func (d *DB) Stats() sql.DBStats {
	return d.db.Stats()
}

func (d *DB) Close() error {
	return d.db.Close()
}

type sqlSession struct {
	conn *sql.Conn
	stmt *sql.Stmt
}

func (s *sqlSession) Insert(ctx context.Context, st Student) error {
	_, err := s.stmt.ExecContext(ctx, st.Name, st.Age)
	return err
}

func (s *sqlSession) Release() error {
	return errors.Join(s.stmt.Close(), s.conn.Close())
}
