package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/electrotonic/internal/constants"
	"github.com/chrissnell/electrotonic/internal/electrotonic"
	"github.com/chrissnell/electrotonic/internal/log"
	"github.com/chrissnell/electrotonic/internal/skeleton"
)

type runModel struct {
	ID               string `gorm:"primaryKey;type:uuid"`
	SkeletonID       int64  `gorm:"index"`
	Name             string
	CreatedAt        time.Time `gorm:"index"`
	Rm               float64
	Cm               float64
	Ri               float64
	ConversionFactor float64
	Mode             string
	SegmentCount     int
	Records          []segmentModel `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

func (runModel) TableName() string { return "runs" }

type segmentModel struct {
	RunID                   string `gorm:"primaryKey;type:uuid"`
	Idx                     int    `gorm:"primaryKey"`
	StartNode               int64
	EndNode                 int64
	Length                  float64
	Radius                  float64
	SurfaceArea             float64
	CrossSectionalArea      float64
	IntracellularResistance float64
	MembraneResistance      float64
	MembraneCapacitance     float64
}

func (segmentModel) TableName() string { return "segment_records" }

func toRunModel(run *Run) runModel {
	m := runModel{
		ID:               run.ID.String(),
		SkeletonID:       run.SkeletonID,
		Name:             run.Name,
		CreatedAt:        run.CreatedAt,
		Rm:               run.Constants.Rm,
		Cm:               run.Constants.Cm,
		Ri:               run.Constants.Ri,
		ConversionFactor: run.ConversionFactor,
		Mode:             string(run.Mode),
		SegmentCount:     len(run.Records),
		Records:          make([]segmentModel, len(run.Records)),
	}
	for i, r := range run.Records {
		m.Records[i] = segmentModel{
			RunID:                   m.ID,
			Idx:                     i,
			StartNode:               int64(r.StartNode),
			EndNode:                 int64(r.EndNode),
			Length:                  r.Length,
			Radius:                  r.Radius,
			SurfaceArea:             r.SurfaceArea,
			CrossSectionalArea:      r.CrossSectionalArea,
			IntracellularResistance: r.IntracellularResistance,
			MembraneResistance:      r.MembraneResistance,
			MembraneCapacitance:     r.MembraneCapacitance,
		}
	}
	return m
}

func fromRunModel(m runModel) (*Run, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing run id %q: %w", m.ID, err)
	}
	run := &Run{
		ID:               id,
		SkeletonID:       m.SkeletonID,
		Name:             m.Name,
		CreatedAt:        m.CreatedAt.UTC(),
		Constants:        electrotonic.Constants{Rm: m.Rm, Cm: m.Cm, Ri: m.Ri},
		ConversionFactor: m.ConversionFactor,
		Mode:             electrotonic.SurfaceAreaMode(m.Mode),
		SegmentCount:     m.SegmentCount,
	}
	if len(m.Records) > 0 {
		run.Records = make([]electrotonic.SegmentRecord, len(m.Records))
		for i, r := range m.Records {
			run.Records[i] = electrotonic.SegmentRecord{
				StartNode:               skeleton.NodeID(r.StartNode),
				EndNode:                 skeleton.NodeID(r.EndNode),
				Length:                  r.Length,
				Radius:                  r.Radius,
				SurfaceArea:             r.SurfaceArea,
				CrossSectionalArea:      r.CrossSectionalArea,
				IntracellularResistance: r.IntracellularResistance,
				MembraneResistance:      r.MembraneResistance,
				MembraneCapacitance:     r.MembraneCapacitance,
			}
		}
	}
	return run, nil
}

// PostgresStore keeps runs in PostgreSQL through GORM.
type PostgresStore struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// CreateConnection opens a GORM handle with SQL logging routed through zap.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warnf("unable to create a PostgreSQL connection: %v", err)
		return nil, err
	}
	return db, nil
}

// NewPostgresStore connects and migrates the run tables.
func NewPostgresStore(connectionString string, logger *zap.SugaredLogger) (*PostgresStore, error) {
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &segmentModel{}); err != nil {
		return nil, fmt.Errorf("migrating run tables: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// SaveRun inserts a run with its records; GORM writes the association in the
// same transaction.
func (p *PostgresStore) SaveRun(ctx context.Context, run *Run) error {
	m := toRunModel(run)
	if err := p.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	run.SegmentCount = m.SegmentCount
	p.logger.Infow("saved run", "id", run.ID, "segments", m.SegmentCount)
	return nil
}

// GetRun loads a run and its records in insertion order.
func (p *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var m runModel
	err := p.db.WithContext(ctx).
		Preload("Records", func(db *gorm.DB) *gorm.DB { return db.Order("idx") }).
		First(&m, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	return fromRunModel(m)
}

// ListRuns returns run headers, newest first.
func (p *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = constants.DefaultRunListLimit
	}
	var models []runModel
	if err := p.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	runs := make([]Run, 0, len(models))
	for _, m := range models {
		run, err := fromRunModel(m)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
