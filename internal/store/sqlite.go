package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/electrotonic/internal/constants"
	"github.com/chrissnell/electrotonic/internal/electrotonic"
	"github.com/chrissnell/electrotonic/internal/skeleton"
	"github.com/chrissnell/electrotonic/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps runs in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLiteStore opens (creating if needed) a SQLite run database.
func NewSQLiteStore(path string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate.NewMigrator(db, migrate.NewFSProvider(sub, "schema_migrations"), logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	logger.Debugw("opened sqlite run store", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// SaveRun inserts a run and its records in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, skeleton_id, name, created_at, rm, cm, ri, conversion_factor, mode, segment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.SkeletonID, run.Name, run.CreatedAt.UnixNano(),
		run.Constants.Rm, run.Constants.Cm, run.Constants.Ri,
		run.ConversionFactor, string(run.Mode), len(run.Records))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO segment_records
		(run_id, idx, start_node, end_node, length, radius, surface_area, cross_sectional_area,
		 intracellular_resistance, membrane_resistance, membrane_capacitance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Records {
		_, err := stmt.ExecContext(ctx, run.ID.String(), i, int64(r.StartNode), int64(r.EndNode),
			r.Length, r.Radius, r.SurfaceArea, r.CrossSectionalArea,
			r.IntracellularResistance, r.MembraneResistance, r.MembraneCapacitance)
		if err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	run.SegmentCount = len(run.Records)
	s.logger.Infow("saved run", "id", run.ID, "segments", len(run.Records))
	return nil
}

const runColumns = `id, skeleton_id, name, created_at, rm, cm, ri, conversion_factor, mode, segment_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run     Run
		id      string
		created int64
		mode    string
	)
	err := row.Scan(&id, &run.SkeletonID, &run.Name, &created,
		&run.Constants.Rm, &run.Constants.Cm, &run.Constants.Ri,
		&run.ConversionFactor, &mode, &run.SegmentCount)
	if err != nil {
		return nil, err
	}
	run.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing run id %q: %w", id, err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	run.Mode = electrotonic.SurfaceAreaMode(mode)
	return &run, nil
}

// GetRun loads a run and its records in insertion order.
func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT start_node, end_node, length, radius, surface_area,
		cross_sectional_area, intracellular_resistance, membrane_resistance, membrane_capacitance
		FROM segment_records WHERE run_id = ? ORDER BY idx`, id.String())
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	run.Records = make([]electrotonic.SegmentRecord, 0, run.SegmentCount)
	for rows.Next() {
		var r electrotonic.SegmentRecord
		var start, end int64
		if err := rows.Scan(&start, &end, &r.Length, &r.Radius, &r.SurfaceArea, &r.CrossSectionalArea,
			&r.IntracellularResistance, &r.MembraneResistance, &r.MembraneCapacitance); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.StartNode, r.EndNode = skeleton.NodeID(start), skeleton.NodeID(end)
		run.Records = append(run.Records, r)
	}
	return run, rows.Err()
}

// ListRuns returns run headers, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = constants.DefaultRunListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
