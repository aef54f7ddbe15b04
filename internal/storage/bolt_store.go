package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"steadydb/internal/runner"
	"steadydb/internal/stats"
)

const (
	BucketRuns = "runs"
)

var ErrNotFound = errors.New("run not found")

// HistoryItem is one finished run. Credentials are never stored.
type HistoryItem struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Settings  RunSettings   `json:"settings"`
	Summary   stats.Summary `json:"summary"`
}

type RunSettings struct {
	Driver           string `json:"driver"`
	Table            string `json:"table"`
	Workers          int    `json:"workers"`
	RecordsPerWorker int    `json:"records_per_worker"`
	PoolSize         int    `json:"pool_size"`
}

// NewHistoryItem builds a history entry keyed by the run id.
func NewHistoryItem(cfg runner.Config, sum stats.Summary) HistoryItem {
	return HistoryItem{
		ID:        sum.RunID,
		Timestamp: sum.EndedAt,
		Settings: RunSettings{
			Driver:           cfg.Datastore.Driver,
			Table:            cfg.Datastore.Table,
			Workers:          cfg.Workers,
			RecordsPerWorker: cfg.RecordsPerWorker,
			PoolSize:         cfg.Datastore.PoolSize,
		},
		Summary: sum,
	}
}

type Store struct {
	db *bbolt.DB
}

// DefaultPath is $HOME/.steadydb/history.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".steadydb", "history.db"), nil
}

func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// Initialize Buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores item under its id. Run ids are UUIDv7, so key order is time order.
func (s *Store) Save(item HistoryItem) error {
	if item.ID == "" {
		return fmt.Errorf("history item has no id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketRuns))

		data, err := json.Marshal(item)
		if err != nil {
			return err
		}

		return b.Put([]byte(item.ID), data)
	})
}

// List returns up to limit items, newest first. A limit <= 0 means all.
func (s *Store) List(limit int) ([]HistoryItem, error) {
	var items []HistoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(items) >= limit {
				break
			}
			var item HistoryItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("decoding run %s: %w", k, err)
			}
			items = append(items, item)
		}
		return nil
	})

	return items, err
}

func (s *Store) Get(id string) (*HistoryItem, error) {
	var item HistoryItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(BucketRuns)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
