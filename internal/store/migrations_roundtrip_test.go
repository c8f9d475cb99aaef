package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// The round trip drops and recreates the public schema, so it only runs
// against a database named explicitly through the environment.
func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("DOCUVAULT_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("DOCUVAULT_TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	dir := filepath.Join("..", "..", "db", "migrations")

	if err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("apply up migrations: %v", err)
	}
	applied := countAppliedMigrations(ctx, t, db)

	// Re-running against an up-to-date database must change nothing.
	if err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("re-apply up migrations: %v", err)
	}
	if again := countAppliedMigrations(ctx, t, db); again != applied {
		t.Fatalf("re-apply changed schema_migrations from %d to %d rows", applied, again)
	}

	// Walk the downs newest-first, then prove the ups still apply to the
	// emptied schema.
	for _, path := range downMigrationsNewestFirst(t) {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			t.Fatalf("apply %s: %v", path, err)
		}
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("apply up migrations after down pass: %v", err)
	}
}

func downMigrationsNewestFirst(t *testing.T) []string {
	t.Helper()
	set := readMigrationSet(t)

	versions := make([]string, 0, len(set))
	for version := range set {
		versions = append(versions, version)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))

	paths := make([]string, 0, len(versions))
	for _, version := range versions {
		down := set[version]["down"]
		if down == "" {
			t.Fatalf("version %s has no down migration", version)
		}
		paths = append(paths, down)
	}
	return paths
}

func countAppliedMigrations(ctx context.Context, t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	return n
}
