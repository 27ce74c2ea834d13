package config

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Settings live in a single key/value table keyed by dotted paths such as
// "model.rm" or "storage.sqlite.path".
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	settings, err := s.settings()
	if err != nil {
		return nil, err
	}

	config := &ConfigData{}
	p := settingsParser{values: settings}

	model := []struct {
		key string
		dst *float64
	}{
		{"model.rm", &config.Model.Rm},
		{"model.cm", &config.Model.Cm},
		{"model.ri", &config.Model.Ri},
		{"model.conversion_factor", &config.Model.ConversionFactor},
	}
	for _, m := range model {
		if v, ok := settings[m.key]; !ok || v == "" {
			continue
		}
		v := p.float(m.key)
		if p.err != nil {
			return nil, p.err
		}
		if err := setModelValue(m.dst, m.key, v); err != nil {
			return nil, err
		}
	}

	config.Compute.SurfaceAreaMode = settings["compute.surface_area_mode"]
	config.Compute.Workers = p.int("compute.workers")
	config.Compute.RadiusMethod = settings["compute.radius_method"]
	if _, ok := settings["compute.smooth"]; ok {
		smooth := p.bool("compute.smooth")
		config.Compute.Smooth = &smooth
	}
	config.Compute.SmoothWindow = p.int("compute.smooth_window")

	if path, ok := settings["storage.sqlite.path"]; ok {
		config.Storage.SQLite = &SQLiteData{Path: path}
	}
	if conn, ok := settings["storage.postgres.connection_string"]; ok {
		config.Storage.Postgres = &PostgresData{ConnectionString: conn}
	}

	config.REST.Cert = settings["rest.cert"]
	config.REST.Key = settings["rest.key"]
	config.REST.ListenAddr = settings["rest.listen_addr"]
	config.REST.Port = p.int("rest.port")

	if p.err != nil {
		return nil, p.err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes every value of config, replacing existing keys.
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	values := map[string]string{
		"model.rm":                  formatFloat(config.Model.Rm),
		"model.cm":                  formatFloat(config.Model.Cm),
		"model.ri":                  formatFloat(config.Model.Ri),
		"model.conversion_factor":   formatFloat(config.Model.ConversionFactor),
		"compute.surface_area_mode": config.Compute.SurfaceAreaMode,
		"compute.workers":           strconv.Itoa(config.Compute.Workers),
		"compute.radius_method":     config.Compute.RadiusMethod,
		"compute.smooth_window":     strconv.Itoa(config.Compute.SmoothWindow),
		"rest.cert":                 config.REST.Cert,
		"rest.key":                  config.REST.Key,
		"rest.listen_addr":          config.REST.ListenAddr,
		"rest.port":                 strconv.Itoa(config.REST.Port),
	}
	if config.Compute.Smooth != nil {
		values["compute.smooth"] = strconv.FormatBool(*config.Compute.Smooth)
	}
	if config.Storage.SQLite != nil {
		values["storage.sqlite.path"] = config.Storage.SQLite.Path
	}
	if config.Storage.Postgres != nil {
		values["storage.postgres.connection_string"] = config.Storage.Postgres.ConnectionString
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare settings upsert: %w", err)
	}
	defer stmt.Close()

	for k, v := range values {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}

func (s *SQLiteProvider) settings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// settingsParser converts string settings and keeps the first parse error.
type settingsParser struct {
	values map[string]string
	err    error
}

func (p *settingsParser) float(key string) float64 {
	v, ok := p.values[key]
	if !ok || v == "" || p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("setting %s: %w", key, err)
	}
	return f
}

func (p *settingsParser) int(key string) int {
	v, ok := p.values[key]
	if !ok || v == "" || p.err != nil {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("setting %s: %w", key, err)
	}
	return i
}

func (p *settingsParser) bool(key string) bool {
	v, ok := p.values[key]
	if !ok || v == "" || p.err != nil {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("setting %s: %w", key, err)
	}
	return b
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
