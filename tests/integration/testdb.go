//go:build integration

// Package integration runs repository and service tests against a real
// PostgreSQL started with testcontainers. Run with: go test -tags integration ./tests/integration/...
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/souq/backend/internal/infrastructure/migration"
	"github.com/souq/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated PostgreSQL connection for one test
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewSharedTestDB connects to the package-wide container, booting it on first
// use. Tests isolate themselves with fresh ids or CleanTables.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()
	if sharedContainer == nil {
		startSharedContainer(t)
	}

	db, sqlDB := connectToDatabase(t, sharedContainerDSN)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &TestDB{DB: db, SqlDB: sqlDB, DSN: sharedContainerDSN, t: t}
}

// startSharedContainer boots postgres:16 and applies migrations/. Callers hold sharedContainerMu.
func startSharedContainer(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	ready := wait.ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(time.Minute)
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("souq_test"),
		tcpostgres.WithUsername("souq"),
		tcpostgres.WithPassword("souq"),
		testcontainers.WithWaitStrategy(ready),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, sqlDB := connectToDatabase(t, dsn)
	runMigrations(t, sqlDB)

	sharedContainer, sharedContainerDSN = container, dsn
}

// CleanTables truncates every marketplace table in one statement
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	require.NoError(tdb.t, tdb.DB.Raw(
		`SELECT quote_ident(tablename) FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&tables).Error)
	if len(tables) == 0 {
		return
	}
	require.NoError(tdb.t, tdb.DB.Exec("TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE").Error)
}

// connectToDatabase opens gorm with the server's configuration; set
// TEST_DB_DEBUG to see the SQL.
func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), persistence.GormConfig(logger.Default.LogMode(level)))
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	return db, sqlDB
}

// runMigrations applies migrations/ with the production migrator, which
// closes sqlDB when done.
func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	path := findMigrationsPath()
	require.NotEmpty(t, path, "Could not find migrations directory")

	m, err := migration.New(sqlDB, path, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up(), "Failed to run migrations")
	require.NoError(t, m.Close())
}

// findMigrationsPath locates migrations/ relative to this file
func findMigrationsPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	path := filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return ""
	}
	return path
}

// CleanupSharedContainer terminates the shared container. Called from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()
	if sharedContainer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = sharedContainer.Terminate(ctx)
	sharedContainer, sharedContainerDSN = nil, ""
}
