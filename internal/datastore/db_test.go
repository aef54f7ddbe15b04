package datastore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap/zaptest"
)

// openTestDB opens a SQLite-backed pool in a temp directory
func openTestDB(t *testing.T, poolSize int) *DB {
	t.Helper()

	cfg := Config{
		Driver:      DriverSQLite,
		Database:    filepath.Join(t.TempDir(), "load.db"),
		PoolSize:    poolSize,
		ConnTimeout: 2 * time.Second,
		IdleTimeout: time.Minute,
		MaxLifetime: time.Hour,
	}

	db, err := Open(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableColumns(t *testing.T, db *DB) []string {
	t.Helper()

	rows, err := db.db.Query("PRAGMA table_info(" + db.table + ")")
	if err != nil {
		t.Fatalf("Failed to read table info: %v", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			t.Fatalf("Failed to scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func TestOpen_WarmsPool(t *testing.T) {
	db := openTestDB(t, 4)

	st := db.Stats()
	if st.MaxOpenConnections != 4 {
		t.Errorf("Expected max open 4, got %d", st.MaxOpenConnections)
	}
	if st.Idle != 4 {
		t.Errorf("Expected 4 idle connections after warm-up, got %d", st.Idle)
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := openTestDB(t, 1)
	ctx := context.Background()

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("First EnsureSchema failed: %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("Second EnsureSchema failed: %v", err)
	}

	cols := tableColumns(t, db)
	if strings.Join(cols, ",") != "id,name,age" {
		t.Errorf("Expected columns id,name,age, got %v", cols)
	}
}

func TestAcquire_InsertAndRelease(t *testing.T) {
	db := openTestDB(t, 2)
	ctx := context.Background()

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	sess, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sess.Insert(ctx, Student{Name: "Jane", Age: 20 + i}); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}
	if err := sess.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	n, err := db.CountRows(ctx)
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 rows, got %d", n)
	}
	if inUse := db.Stats().InUse; inUse != 0 {
		t.Errorf("Expected no connections in use after release, got %d", inUse)
	}
}

func TestAcquire_TimesOutWhenPoolExhausted(t *testing.T) {
	db := openTestDB(t, 1)
	db.cfg.ConnTimeout = 100 * time.Millisecond
	ctx := context.Background()

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	held, err := db.Acquire(ctx)
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = db.Acquire(ctx)
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("Expected ErrAcquireTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Acquire gave up too early: %s", elapsed)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Expected ErrUnknownDriver, got %v", err)
	}
}

func TestConfig_TableName(t *testing.T) {
	tests := []struct {
		table   string
		want    string
		wantErr bool
	}{
		{"", DefaultTable, false},
		{"load_rows", "load_rows", false},
		{"students; DROP TABLE x", "", true},
		{"1abc", "", true},
	}

	for _, tt := range tests {
		got, err := Config{Table: tt.table}.TableName()
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("TableName(%q): expected ErrInvalidTable, got %v", tt.table, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("TableName(%q) = %q, %v; want %q", tt.table, got, err, tt.want)
		}
	}
}

func TestConfig_DataSourceName(t *testing.T) {
	cfg := Config{
		Driver:      DriverMySQL,
		Host:        "db.local",
		Port:        3307,
		User:        "root",
		Password:    "root",
		Database:    "load_test",
		ConnTimeout: 30 * time.Second,
	}
	dsn, err := cfg.DataSourceName()
	if err != nil {
		t.Fatalf("DataSourceName failed: %v", err)
	}
	if !strings.HasPrefix(dsn, "root:root@tcp(db.local:3307)/load_test") {
		t.Errorf("Unexpected mysql DSN: %s", dsn)
	}
	if !strings.Contains(dsn, "timeout=30s") {
		t.Errorf("Expected dial timeout in DSN: %s", dsn)
	}

	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN failed: %v", err)
	}
	if parsed.InterpolateParams {
		t.Error("Expected server-side prepared statements, got client-side interpolation")
	}
	if parsed.Timeout != 30*time.Second || parsed.Loc != time.UTC {
		t.Errorf("Unexpected parsed config: timeout=%s loc=%s", parsed.Timeout, parsed.Loc)
	}

	cfg.DSN = "custom"
	if dsn, _ := cfg.DataSourceName(); dsn != "custom" {
		t.Errorf("Expected explicit DSN to win, got %s", dsn)
	}
}

func TestErrorCode(t *testing.T) {
	code, ok := ErrorCode(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	if !ok || code != "mysql:1062" {
		t.Errorf("Expected mysql:1062, got %q (ok=%v)", code, ok)
	}

	code, ok = ErrorCode(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull})
	if !ok || code != "sqlite:1299" {
		t.Errorf("Expected sqlite:1299, got %q (ok=%v)", code, ok)
	}

	if _, ok := ErrorCode(errors.New("plain")); ok {
		t.Error("Expected no code for plain error")
	}
}
