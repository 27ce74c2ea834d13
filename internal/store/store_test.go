package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/electrotonic/internal/electrotonic"
	"github.com/chrissnell/electrotonic/pkg/config"
)

func sampleRun(name string) *Run {
	records := []electrotonic.SegmentRecord{
		{StartNode: 5, EndNode: 3, Length: 2e-4, Radius: 1e-5, SurfaceArea: 1.2e-8, CrossSectionalArea: 3.1e-10,
			IntracellularResistance: 1.7e8, MembraneResistance: 1.7e9, MembraneCapacitance: 9.9e-9},
		{StartNode: 3, EndNode: 1, Length: 1e-4, Radius: 2e-5, SurfaceArea: 1.3e-8, CrossSectionalArea: 1.2e-9,
			IntracellularResistance: 2.1e7, MembraneResistance: 1.6e9, MembraneCapacitance: 1.0e-8},
	}
	return NewRun(16, name, electrotonic.DefaultOptions(), records)
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRun(t *testing.T) {
	run := sampleRun("PN")
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, 2, run.SegmentCount)
	assert.Equal(t, electrotonic.ModeCorrected, run.Mode)
	assert.Equal(t, time.UTC, run.CreatedAt.Location())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	want := sampleRun("PN glomerulus VA6")
	require.NoError(t, s.SaveRun(ctx, want))

	got, err := s.GetRun(ctx, want.ID)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.SkeletonID, got.SkeletonID)
	assert.Equal(t, want.Constants, got.Constants)
	assert.Equal(t, want.ConversionFactor, got.ConversionFactor)
	assert.Equal(t, want.Mode, got.Mode)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.Records, got.Records)
}

func TestSQLiteStoreNotFound(t *testing.T) {
	s := newSQLite(t)
	_, err := s.GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStoreListRuns(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	older := sampleRun("older")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := sampleRun("newer")
	require.NoError(t, s.SaveRun(ctx, older))
	require.NoError(t, s.SaveRun(ctx, newer))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].Name)
	assert.Equal(t, "older", runs[1].Name)
	assert.Equal(t, 2, runs[0].SegmentCount)
	assert.Empty(t, runs[0].Records)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStoreDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	run := sampleRun("dup")
	require.NoError(t, s.SaveRun(ctx, run))
	assert.Error(t, s.SaveRun(ctx, run))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunModelConversion(t *testing.T) {
	want := sampleRun("gorm")
	m := toRunModel(want)

	assert.Equal(t, want.ID.String(), m.ID)
	require.Len(t, m.Records, 2)
	assert.Equal(t, 1, m.Records[1].Idx)
	assert.Equal(t, m.ID, m.Records[0].RunID)

	got, err := fromRunModel(m)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = fromRunModel(runModel{ID: "not-a-uuid"})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	_, err := Open(config.StorageData{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := Open(config.StorageData{SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "runs.db")}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	assert.NoError(t, s.Close())
}

// TestPostgresStore runs against a live database named by
// ELECTROTONIC_TEST_POSTGRES, e.g. "host=localhost user=postgres dbname=electrotonic_test".
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ELECTROTONIC_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("ELECTROTONIC_TEST_POSTGRES not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(dsn, nil)
	require.NoError(t, err)
	defer s.Close()

	want := sampleRun("postgres")
	require.NoError(t, s.SaveRun(ctx, want))

	got, err := s.GetRun(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Records, got.Records)

	_, err = s.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}
