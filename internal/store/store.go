// Package store persists computed segment tables ("runs") so they can be
// listed and retrieved later from the CLI or the REST API.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/electrotonic/internal/electrotonic"
	"github.com/chrissnell/electrotonic/pkg/config"
)

var (
	// ErrRunNotFound is returned when no run has the requested id.
	ErrRunNotFound = errors.New("run not found")

	// ErrNotConfigured is returned by Open when no storage backend is configured.
	ErrNotConfigured = errors.New("no storage backend configured")
)

// Run is one calculator invocation and its output table.
type Run struct {
	ID               uuid.UUID                    `json:"id"`
	SkeletonID       int64                        `json:"skeleton_id"`
	Name             string                       `json:"name"`
	CreatedAt        time.Time                    `json:"created_at"`
	Constants        electrotonic.Constants       `json:"constants"`
	ConversionFactor float64                      `json:"conversion_factor"`
	Mode             electrotonic.SurfaceAreaMode `json:"mode"`
	SegmentCount     int                          `json:"segment_count"`
	Records          []electrotonic.SegmentRecord `json:"segments,omitempty"`
}

// NewRun stamps a fresh id and creation time onto a computed table.
func NewRun(skeletonID int64, name string, opts electrotonic.Options, records []electrotonic.SegmentRecord) *Run {
	return &Run{
		ID:               uuid.New(),
		SkeletonID:       skeletonID,
		Name:             name,
		CreatedAt:        time.Now().UTC(),
		Constants:        opts.Constants,
		ConversionFactor: opts.ConversionFactor,
		Mode:             opts.Mode,
		SegmentCount:     len(records),
		Records:          records,
	}
}

// Store saves and loads runs.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	// GetRun returns a run with its records.
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	// ListRuns returns the newest runs first, without records.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// Open returns the Postgres store when a connection string is configured and
// the SQLite store otherwise.
func Open(cfg config.StorageData, logger *zap.SugaredLogger) (Store, error) {
	switch {
	case cfg.Postgres != nil && cfg.Postgres.ConnectionString != "":
		return NewPostgresStore(cfg.Postgres.ConnectionString, logger)
	case cfg.SQLite != nil && cfg.SQLite.Path != "":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	default:
		return nil, ErrNotConfigured
	}
}
