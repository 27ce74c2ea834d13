package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testMigrations = fstest.MapFS{
	"001_create_things.up.sql":   {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
	"001_create_things.down.sql": {Data: []byte("DROP TABLE things;")},
	"002_add_name.up.sql":        {Data: []byte("ALTER TABLE things ADD COLUMN name TEXT;")},
	"002_add_name.down.sql":      {Data: []byte("ALTER TABLE things DROP COLUMN name;")},
	"README.md":                  {Data: []byte("ignored")},
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestFSProviderMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testMigrations, "").Migrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	for _, m := range migrations {
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d missing SQL: %+v", m.Version, m)
		}
		if m.Version == 1 && m.Name != "create things" {
			t.Errorf("Name = %q", m.Name)
		}
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations, "versions"), nil)

	pending, err := m.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].Version != 1 {
		t.Fatalf("Pending = %+v", pending)
	}

	if err := m.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if v, _ := m.CurrentVersion(); v != 2 {
		t.Errorf("version = %d, expected 2", v)
	}
	if _, err := db.Exec("INSERT INTO things (id, name) VALUES (1, 'a')"); err != nil {
		t.Errorf("migrated schema rejected insert: %v", err)
	}

	// Re-running is a no-op.
	if err := m.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}

	if err := m.MigrateTo(0); err != nil {
		t.Fatalf("MigrateTo(0): %v", err)
	}
	if v, _ := m.CurrentVersion(); v != 0 {
		t.Errorf("version = %d, expected 0", v)
	}
	if tableExists(t, db, "things") {
		t.Error("things should have been dropped")
	}

	if err := m.MigrateTo(1); err != nil {
		t.Fatalf("MigrateTo(1): %v", err)
	}
	if v, _ := m.CurrentVersion(); v != 1 {
		t.Errorf("version = %d, expected 1", v)
	}
	if err := m.MigrateDown(1); err == nil {
		t.Error("expected error migrating down to the current version")
	}
}

func TestMigrateErrors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"bad sql", fstest.MapFS{"001_bad.up.sql": {Data: []byte("CREATE TABLEX nope;")}}},
		{"missing up", fstest.MapFS{"001_only_down.down.sql": {Data: []byte("SELECT 1;")}}},
		{"zero version", fstest.MapFS{"000_zero.up.sql": {Data: []byte("SELECT 1;")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openDB(t)
			if err := NewMigrator(db, NewFSProvider(tt.fsys, ""), nil).MigrateUp(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFailedMigrationLeavesVersion(t *testing.T) {
	db := openDB(t)
	fsys := fstest.MapFS{
		"001_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"002_broken.up.sql": {Data: []byte("CREATE TABLE ok (id INTEGER);")},
	}
	m := NewMigrator(db, NewFSProvider(fsys, ""), nil)
	if err := m.MigrateUp(); err == nil {
		t.Fatal("expected error from duplicate table")
	}
	if v, _ := m.CurrentVersion(); v != 1 {
		t.Errorf("version = %d, expected 1", v)
	}
}
