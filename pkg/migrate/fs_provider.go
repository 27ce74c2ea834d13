package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
)

// Migration files are named 001_create_runs.up.sql and 001_create_runs.down.sql.
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads SQLite migrations from a filesystem, usually an embed.FS.
type FSProvider struct {
	fsys  fs.FS
	table string
}

// NewFSProvider creates a provider reading migrations from the root of fsys and
// tracking versions in table.
func NewFSProvider(fsys fs.FS, table string) *FSProvider {
	if table == "" {
		table = "schema_migrations"
	}
	return &FSProvider{fsys: fsys, table: table}
}

// Migrations loads every migration found in the filesystem
func (p *FSProvider) Migrations() ([]Migration, error) {
	byVersion := make(map[int]*Migration)

	err := fs.WalkDir(p.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		matches := migrationFile.FindStringSubmatch(d.Name())
		if matches == nil {
			return nil
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil || version <= 0 {
			return fmt.Errorf("invalid version number in file %s", d.Name())
		}

		content, err := fs.ReadFile(p.fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = m
		}
		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	return migrations, nil
}

// CreateVersionTable creates the migration tracking table
func (p *FSProvider) CreateVersionTable(db *sql.DB) error {
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, p.table))
	return err
}

// CurrentVersion returns the highest applied migration version
func (p *FSProvider) CurrentVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow(fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.table)).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as applied, discarding any higher versions
func (p *FSProvider) SetVersion(db DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE version > ?", p.table), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("INSERT OR REPLACE INTO %s (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)", p.table), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
