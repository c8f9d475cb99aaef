package store

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
)

var migrationName = regexp.MustCompile(`^(\d{4})_.*\.(up|down)\.sql$`)

// readMigrationSet maps version -> direction -> path for db/migrations.
func readMigrationSet(t *testing.T) map[string]map[string]string {
	t.Helper()
	dir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	set := map[string]map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("migration file %q does not match NNNN_name.{up,down}.sql", entry.Name())
		}
		version, direction := match[1], match[2]
		if set[version] == nil {
			set[version] = map[string]string{}
		}
		if _, dup := set[version][direction]; dup {
			t.Fatalf("two %s files for version %s", direction, version)
		}
		set[version][direction] = filepath.Join(dir, entry.Name())
	}
	if len(set) == 0 {
		t.Fatal("no migrations discovered")
	}
	return set
}

func TestMigrationsArePairedAndGapless(t *testing.T) {
	set := readMigrationSet(t)

	versions := make([]string, 0, len(set))
	for version, dirs := range set {
		if dirs["up"] == "" || dirs["down"] == "" {
			t.Errorf("version %s must include both up and down files", version)
		}
		versions = append(versions, version)
	}
	sort.Strings(versions)

	// Versions count up from 0001 without holes, so the sorted apply
	// order in ApplyMigrations matches authoring order.
	for i, version := range versions {
		if want := i + 1; version != fmtVersion(want) {
			t.Fatalf("expected version %s at position %d, got %s", fmtVersion(want), i, version)
		}
	}
}

// The store code assumes specific objects from specific migrations;
// pin each to the file that must create it.
func TestMigrationsCreateTheObjectsTheStoreUses(t *testing.T) {
	set := readMigrationSet(t)

	anchors := []struct {
		version string
		needle  string
	}{
		{"0001", "CREATE TABLE documents"},
		{"0001", "CREATE TABLE organization_licenses"},
		{"0002", "CREATE VIEW organization_license_status"},
		{"0002", "CREATE VIEW expired_documents"},
		{"0003", "CREATE TABLE refresh_sessions"},
		{"0003", "CREATE TABLE activity_log"},
		{"0004", "ADD COLUMN fts tsvector"},
		{"0005", "activity_log_immutable_guard"},
	}

	for _, anchor := range anchors {
		dirs, ok := set[anchor.version]
		if !ok {
			t.Fatalf("no migration with version %s", anchor.version)
		}
		content, err := os.ReadFile(dirs["up"])
		if err != nil {
			t.Fatalf("read %s: %v", dirs["up"], err)
		}
		if !strings.Contains(string(content), anchor.needle) {
			t.Errorf("migration %s should contain %q", anchor.version, anchor.needle)
		}
	}
}

func fmtVersion(n int) string {
	digits := []byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}
