package testdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/forgo/exitlane/api/internal/database"
	"github.com/forgo/exitlane/api/migrations"
)

// TestDB is a migrated SurrealDB namespace owned by one test
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string

	t         *testing.T
	closeOnce sync.Once
}

var counter atomic.Int64

func config() database.Config {
	return database.Config{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnv("TEST_DB_PORT", "8000"),
		User:     getEnv("TEST_DB_USER", "root"),
		Password: getEnv("TEST_DB_PASSWORD", "root"),
		Database: "marketplace",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// New connects to a fresh namespace and applies every migration. The test
// is skipped with -short or when no SurrealDB instance is reachable. The
// namespace is removed when the test ends.
func New(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("testdb: skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config()
	cfg.Namespace = fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter.Add(1))

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		t.Skipf("testdb: SurrealDB not reachable at %s:%s: %v", cfg.Host, cfg.Port, err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		t.Fatalf("testdb: %v", err)
	}

	tdb := &TestDB{DB: db, Namespace: cfg.Namespace, Database: cfg.Database, t: t}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close removes the namespace and disconnects. It is safe to call more
// than once.
func (tdb *TestDB) Close() {
	tdb.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = tdb.DB.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE %s", tdb.Namespace), nil)
		tdb.DB.Close()
	})
}

// Ctx returns a context bounded by a test-sized timeout. It is released
// when the test finishes.
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tdb.t.Cleanup(cancel)
	return ctx
}

// Reset deletes every row while keeping tables and indexes
func (tdb *TestDB) Reset() {
	tdb.t.Helper()

	results, err := tdb.DB.Query(tdb.Ctx(), "INFO FOR DB", nil)
	if err != nil {
		tdb.t.Fatalf("testdb: failed to get db info: %v", err)
	}
	raw, err := json.Marshal(results)
	if err != nil {
		tdb.t.Fatalf("testdb: failed to encode db info: %v", err)
	}

	gjson.GetBytes(raw, "0.result.tables").ForEach(func(table, _ gjson.Result) bool {
		if err := tdb.DB.Execute(tdb.Ctx(), fmt.Sprintf("DELETE FROM %s", table.String()), nil); err != nil {
			tdb.t.Logf("testdb: failed to clear table %s: %v", table.String(), err)
		}
		return true
	})
}
