package runner

import (
	"errors"
	"fmt"
	"time"

	"steadydb/internal/datastore"
)

var (
	ErrPoolSizeMismatch = errors.New("pool size must equal worker count")
	ErrRunStarted       = errors.New("runner already started")
)

const (
	DefaultWorkers          = 200
	DefaultRecordsPerWorker = 100000
	DefaultReportInterval   = 5 * time.Second
	DefaultShutdownGrace    = time.Minute
	DefaultIdleTimeout      = 10 * time.Minute
	DefaultMaxLifetime      = 30 * time.Minute
)

// Config is fixed for the lifetime of a run
type Config struct {
	Workers          int
	RecordsPerWorker int
	ReportInterval   time.Duration
	ShutdownGrace    time.Duration

	// Pool sizing and timeouts live with the datastore settings
	Datastore datastore.Config
}

// Sample is one reporter observation
type Sample struct {
	Time    time.Time
	Success uint64
	Failure uint64
	Rate    float64 // successes/s since the previous sample
	HasRate bool    // false for the baseline sample
}

// SampleChan is the channel type
type SampleChan chan Sample

func DefaultConfig() Config {
	return Config{
		Workers:          DefaultWorkers,
		RecordsPerWorker: DefaultRecordsPerWorker,
		ReportInterval:   DefaultReportInterval,
		ShutdownGrace:    DefaultShutdownGrace,
		Datastore: datastore.Config{
			Driver:      datastore.DriverMySQL,
			Host:        "localhost",
			Port:        3307,
			User:        "root",
			Password:    "root",
			Database:    "load_test",
			Table:       datastore.DefaultTable,
			PoolSize:    DefaultWorkers,
			ConnTimeout: datastore.DefaultConnTimeout,
			IdleTimeout: DefaultIdleTimeout,
			MaxLifetime: DefaultMaxLifetime,
		},
	}
}

// Validate checks the run parameters. A zero pool size is sized to the worker
// count; any other size must match it so every worker can hold a connection.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if c.RecordsPerWorker <= 0 {
		return fmt.Errorf("records per worker must be greater than 0")
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report interval must be greater than 0")
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown grace period must be greater than 0")
	}

	if c.Datastore.PoolSize == 0 {
		c.Datastore.PoolSize = c.Workers
	}
	if c.Datastore.PoolSize != c.Workers {
		return fmt.Errorf("%w: pool size %d, workers %d", ErrPoolSizeMismatch, c.Datastore.PoolSize, c.Workers)
	}
	if c.Datastore.ConnTimeout <= 0 {
		return fmt.Errorf("connection timeout must be greater than 0")
	}
	if c.Datastore.IdleTimeout < 0 || c.Datastore.MaxLifetime < 0 {
		return fmt.Errorf("idle timeout and max lifetime cannot be negative")
	}
	return nil
}

// TotalAttempts is the number of inserts a fully successful run performs.
func (c Config) TotalAttempts() uint64 {
	return uint64(c.Workers) * uint64(c.RecordsPerWorker)
}
