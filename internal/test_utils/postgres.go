package test_utils

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	dbName       = "finbot"
	dbUser       = "test_finbot"
	dbPassword   = "test_finbot"
	snapshotName = "postgres-test-snapshot"
)

// TestDatabase is a migrated Postgres container shared by the tests of one package.
type TestDatabase struct {
	container *postgres.PostgresContainer
	cfg       config.Database
}

func preparePostgresContainer(ctx context.Context) (*postgres.PostgresContainer, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %v", err)
	}

	pgContainer, err := postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithInitScripts(filepath.Join(projectRoot, "dev", "init.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return nil, err
	}
	return pgContainer, nil
}

// TestWithDB sets up a Postgres instance, applies all migrations and snapshots the empty schema.
// It returns nil when running with -short or when no container runtime is available; tests
// calling Pool then skip.
func TestWithDB() (*TestDatabase, func()) {
	if !flag.Parsed() {
		flag.Parse()
	}
	if testing.Short() {
		return nil, func() {}
	}
	ctx := context.Background()

	container, err := preparePostgresContainer(ctx)
	if err != nil {
		log.Warnf("Postgres container unavailable, repository tests will be skipped: %v", err)
		return nil, func() {}
	}

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432/tcp")
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Host:   host,
		Port:   port.Int(),
		User:   dbUser,
		Pass:   dbPassword,
		Name:   dbName,
		Schema: dbName,
	}

	if err := database.Migrate(cfg); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	if err := container.Snapshot(ctx, postgres.WithSnapshotName(snapshotName)); err != nil {
		log.Fatalf("Failed to snapshot postgres container: %v", err)
	}

	return &TestDatabase{container: container, cfg: cfg}, func() {
		if err := container.Terminate(ctx); err != nil {
			log.Errorf("Failed to terminate postgres container: %v", err)
		}
	}
}

// Pool opens a connection pool for a single test. When the test ends the pool is closed and the
// database restored to the freshly migrated snapshot.
func (d *TestDatabase) Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if d == nil {
		t.Skip("Postgres not available")
	}
	ctx := context.Background()
	pool, err := database.Open(ctx, d.cfg)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		if err := d.container.Restore(ctx, postgres.WithSnapshotName(snapshotName)); err != nil {
			t.Fatalf("Failed to restore postgres snapshot: %v", err)
		}
	})
	return pool
}

// findProjectRoot walks up from the working directory until it finds go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root")
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
