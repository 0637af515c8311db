package testdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/forgo/rotativos/api/internal/database"
)

// Tables lists every table the migrations define, parents first.
var Tables = []string{
	"season",
	"title",
	"event",
	"block",
	"member",
	"rotativo",
	"user_season_balance",
	"waiting_list",
	"rule_config",
	"audit_event",
}

// settings is read from TEST_DB_* variables
type settings struct {
	Host     string `env:"TEST_DB_HOST" envDefault:"localhost"`
	Port     string `env:"TEST_DB_PORT" envDefault:"8000"`
	User     string `env:"TEST_DB_USER" envDefault:"root"`
	Password string `env:"TEST_DB_PASSWORD" envDefault:"root"`
	Required bool   `env:"TEST_DB_REQUIRED"`
	Root     string `env:"ROTATIVOS_ROOT"`
}

// TestDB is one migrated database in a namespace of its own.
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string

	closeOnce sync.Once
}

var (
	migrationOnce sync.Once
	migrations    []string
	migrationErr  error

	counter atomic.Int64
)

func uniqueNamespace() string {
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter.Add(1))
}

// findMigrations looks for the migrations directory next to go.mod,
// walking up from the test's working directory.
func findMigrations(root string) (string, error) {
	if root != "" {
		return filepath.Join(root, "migrations"), nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above working directory")
		}
		dir = parent
	}
}

// loadMigrations reads the .surql files in name order, once per process
func loadMigrations(root string) ([]string, error) {
	migrationOnce.Do(func() {
		dir, err := findMigrations(root)
		if err != nil {
			migrationErr = fmt.Errorf("locating migrations: %w", err)
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			migrationErr = fmt.Errorf("reading migrations dir: %w", err)
			return
		}

		var files []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".surql") {
				files = append(files, e.Name())
			}
		}
		sort.Strings(files)

		for _, name := range files {
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				migrationErr = fmt.Errorf("reading %s: %w", name, err)
				return
			}
			migrations = append(migrations, string(content))
		}
	})
	return migrations, migrationErr
}

// New connects to a fresh namespace and applies the migrations. The
// namespace is removed when the test ends; Close may also be called early.
//
// The test is skipped when no SurrealDB instance answers, unless
// TEST_DB_REQUIRED is set.
func New(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("testdb: skipping database test in short mode")
	}

	var s settings
	if err := env.Parse(&s); err != nil {
		t.Fatalf("testdb: parse env: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tdb := &TestDB{Namespace: uniqueNamespace(), Database: "test"}
	db := database.NewSurrealDB(database.Config{
		Host:      s.Host,
		Port:      s.Port,
		User:      s.User,
		Password:  s.Password,
		Namespace: tdb.Namespace,
		Database:  tdb.Database,
	})
	if err := db.Connect(ctx); err != nil {
		if !s.Required {
			t.Skipf("testdb: no database available: %v", err)
		}
		t.Fatalf("testdb: failed to connect: %v", err)
	}
	tdb.DB = db
	t.Cleanup(tdb.Close)

	migs, err := loadMigrations(s.Root)
	if err != nil {
		t.Fatalf("testdb: %v", err)
	}
	for i, mig := range migs {
		if err := db.Execute(ctx, mig, nil); err != nil {
			t.Fatalf("testdb: migration %d failed: %v", i+1, err)
		}
	}
	return tdb
}

// Close removes the namespace and disconnects. Safe to call more than once.
func (tdb *TestDB) Close() {
	tdb.closeOnce.Do(func() {
		if tdb.DB == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = tdb.DB.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE %s", tdb.Namespace), nil)
		_ = tdb.DB.Close()
	})
}

// Reset deletes every row while keeping the schema
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := len(Tables) - 1; i >= 0; i-- {
		if err := tdb.DB.Execute(ctx, "DELETE FROM "+Tables[i], nil); err != nil {
			t.Fatalf("testdb: clearing %s: %v", Tables[i], err)
		}
	}
}
