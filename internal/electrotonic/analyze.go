package electrotonic

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/chrissnell/electrotonic/internal/skeleton"
)

// Analysis is the result of running the calculator over one neuron.
type Analysis struct {
	Neuron  *skeleton.Neuron
	Options Options
	Records []SegmentRecord
	Summary Summary
}

// Analyze estimates radii, decomposes the neuron into segments and computes
// the segment property table.
func Analyze(ctx context.Context, n *skeleton.Neuron, opts Options, radius skeleton.RadiusOptions, logger *zap.SugaredLogger) (*Analysis, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("skeleton_id", n.SkeletonID, "neuron", n.Name)

	calc, err := NewCalculator(opts, logger)
	if err != nil {
		return nil, err
	}

	logger.Infof("approximating radii (%s, smooth=%v) over %s treenodes and %s connectors",
		radius.Method, radius.Smooth, humanize.Comma(int64(len(n.Nodes))), humanize.Comma(int64(len(n.Connectors))))
	radii, err := n.GuessRadius(radius)
	if err != nil {
		return nil, fmt.Errorf("estimating radii: %w", err)
	}

	records, err := calc.Calculate(ctx, FromNeuron(n, radii))
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Neuron:  n,
		Options: calc.Options(),
		Records: records,
		Summary: Summarize(records),
	}, nil
}
