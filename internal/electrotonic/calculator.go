package electrotonic

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/electrotonic/internal/skeleton"
)

// Options configures a Calculator.
type Options struct {
	Constants        Constants
	ConversionFactor float64
	Mode             SurfaceAreaMode
	// Workers bounds concurrent segment evaluation. Values below 2 run
	// sequentially.
	Workers int
}

// DefaultOptions returns the published constants, nanometre input and the
// corrected surface area formula.
func DefaultOptions() Options {
	return Options{
		Constants:        DefaultConstants(),
		ConversionFactor: NanometresToCentimetres,
		Mode:             ModeCorrected,
		Workers:          1,
	}
}

// Validate checks that the options describe a usable model.
func (o Options) Validate() error {
	if !(o.ConversionFactor > 0) || math.IsInf(o.ConversionFactor, 0) {
		return fmt.Errorf("conversion factor must be a positive finite number, got %v", o.ConversionFactor)
	}
	for name, v := range map[string]float64{"Rm": o.Constants.Rm, "Cm": o.Constants.Cm, "Ri": o.Constants.Ri} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a positive finite number, got %v", name, v)
		}
	}
	if _, err := ParseSurfaceAreaMode(string(o.Mode)); err != nil {
		return err
	}
	return nil
}

// Calculator turns segment geometry into SegmentRecords. It holds no state
// between calls.
type Calculator struct {
	opts   Options
	logger *zap.SugaredLogger
}

// NewCalculator validates opts and returns a Calculator. A nil logger
// disables logging.
func NewCalculator(opts Options, logger *zap.SugaredLogger) (*Calculator, error) {
	if opts.Mode == "" {
		opts.Mode = ModeCorrected
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Calculator{opts: opts, logger: logger}, nil
}

// Options returns the effective calculator options.
func (c *Calculator) Options() Options {
	return c.opts
}

// Calculate produces one record per input segment, in input order. On any
// failure it returns no records and the error of the lowest-indexed failing
// segment, wrapped in a *SegmentError.
func (c *Calculator) Calculate(ctx context.Context, in Input) ([]SegmentRecord, error) {
	c.logger.Infof("%s segments found", humanize.Comma(int64(len(in.Segments))))
	if c.opts.Constants.IsPublished() {
		c.logger.Info("using Rm, Cm and Ri from Gouwens & Wilson (2009) Table 1")
	}
	if c.opts.Mode == ModeCompatible {
		c.logger.Warn("compatible surface area mode: conversion factor is applied to surface area twice")
	}

	if c.opts.Workers > 1 && len(in.Segments) > 1 {
		return c.calculateConcurrent(ctx, in)
	}

	records := make([]SegmentRecord, len(in.Segments))
	for i, seg := range in.Segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := c.segment(i, seg, in)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}

	c.logger.Debugw("segment properties computed", "segments", len(records), "mode", c.opts.Mode)
	return records, nil
}

func (c *Calculator) calculateConcurrent(ctx context.Context, in Input) ([]SegmentRecord, error) {
	records := make([]SegmentRecord, len(in.Segments))
	errs := make([]error, len(in.Segments))

	// Segment failures do not cancel the group: every segment is evaluated so
	// the reported error is the same one a sequential run would return.
	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i, seg := range in.Segments {
		if err := ctx.Err(); err != nil {
			break
		}
		i, seg := i, seg
		g.Go(func() error {
			rec, err := c.segment(i, seg, in)
			if err != nil {
				errs[i] = err
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	c.logger.Debugw("segment properties computed", "segments", len(records), "mode", c.opts.Mode, "workers", c.opts.Workers)
	return records, nil
}

func (c *Calculator) segment(i int, seg []skeleton.NodeID, in Input) (SegmentRecord, error) {
	fail := func(start skeleton.NodeID, err error) (SegmentRecord, error) {
		return SegmentRecord{}, &SegmentError{Index: i, Start: start, Err: err}
	}

	if len(seg) < 2 {
		var start skeleton.NodeID
		if len(seg) == 1 {
			start = seg[0]
		}
		return fail(start, fmt.Errorf("%w: %d node(s), need at least 2", ErrInvalidSegment, len(seg)))
	}

	start, end := seg[0], seg[len(seg)-1]

	dist, err := in.Distance(start, end)
	if err != nil {
		return fail(start, fmt.Errorf("distance to node %d: %w", end, err))
	}

	r, ok := in.Radii[start]
	if !ok {
		return fail(start, ErrMissingRadius)
	}

	if math.IsNaN(dist) || math.IsInf(dist, 0) || dist < 0 {
		return fail(start, fmt.Errorf("%w: distance %v", ErrInvalidGeometry, dist))
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fail(start, fmt.Errorf("%w: radius %v", ErrInvalidGeometry, r))
	}

	factor := c.opts.ConversionFactor
	length := dist * factor
	radius := math.Abs(r * factor)

	surface := 2 * math.Pi * radius * length
	if c.opts.Mode == ModeCompatible {
		surface *= factor
	}
	cross := math.Pi * radius * radius

	if cross == 0 {
		return fail(start, fmt.Errorf("%w: zero cross-sectional area", ErrDivisionByZero))
	}
	if surface == 0 {
		return fail(start, fmt.Errorf("%w: zero surface area", ErrDivisionByZero))
	}

	k := c.opts.Constants
	return SegmentRecord{
		StartNode:               start,
		EndNode:                 end,
		Length:                  length,
		Radius:                  radius,
		SurfaceArea:             surface,
		CrossSectionalArea:      cross,
		IntracellularResistance: k.Ri * length / cross,
		MembraneResistance:      k.Rm / surface,
		MembraneCapacitance:     k.Cm * surface,
	}, nil
}
