// Package electrotonic computes per-segment cable properties of a neuron:
// geodesic length, radius, surface and cross-sectional area, and the derived
// intracellular resistance, membrane resistance and membrane capacitance of
// the passive model in Gouwens & Wilson (2009), J. Neurosci.
//
//	ri = Ri * l / A
//	rm = Rm / a
//	cm = Cm * a
//
// where l is segment length, a its lateral surface area and A its
// cross-sectional area.
package electrotonic

import (
	"fmt"

	"github.com/chrissnell/electrotonic/internal/skeleton"
)

// Published passive parameters (Gouwens & Wilson 2009, Table 1).
const (
	// DefaultRm is membrane resistivity in kΩ·cm².
	DefaultRm = 20.8
	// DefaultCm is membrane capacitance in µF·cm⁻².
	DefaultCm = 0.8
	// DefaultRi is intracellular resistivity in Ω·cm.
	DefaultRi = 266.1

	// NanometresToCentimetres converts CATMAID coordinates to centimetres.
	NanometresToCentimetres = 1e-7
)

// Constants are the free biophysical parameters of the cable model.
type Constants struct {
	Rm float64 `json:"rm" yaml:"rm"`
	Cm float64 `json:"cm" yaml:"cm"`
	Ri float64 `json:"ri" yaml:"ri"`
}

// DefaultConstants returns the published parameter set.
func DefaultConstants() Constants {
	return Constants{Rm: DefaultRm, Cm: DefaultCm, Ri: DefaultRi}
}

// IsPublished reports whether every constant equals the published value.
func (c Constants) IsPublished() bool {
	return c == DefaultConstants()
}

// SurfaceAreaMode selects the surface area formula.
type SurfaceAreaMode string

const (
	// ModeCorrected computes the lateral cylinder area 2*pi*r*l.
	ModeCorrected SurfaceAreaMode = "corrected"

	// ModeCompatible applies the unit conversion factor to the surface area a
	// second time, reproducing tables from the legacy pymaid-based script.
	ModeCompatible SurfaceAreaMode = "compatible"
)

// ParseSurfaceAreaMode converts a config or flag value into a mode. An empty
// string selects ModeCorrected.
func ParseSurfaceAreaMode(s string) (SurfaceAreaMode, error) {
	switch SurfaceAreaMode(s) {
	case "", ModeCorrected:
		return ModeCorrected, nil
	case ModeCompatible:
		return ModeCompatible, nil
	default:
		return "", fmt.Errorf("unknown surface area mode %q (want %q or %q)", s, ModeCorrected, ModeCompatible)
	}
}

// SegmentRecord holds the derived properties of one segment. Lengths are in
// cm, areas in cm².
type SegmentRecord struct {
	StartNode               skeleton.NodeID `json:"start_node"`
	EndNode                 skeleton.NodeID `json:"end_node"`
	Length                  float64         `json:"length"`
	Radius                  float64         `json:"radius"`
	SurfaceArea             float64         `json:"surface_area"`
	CrossSectionalArea      float64         `json:"cross_sectional_area"`
	IntracellularResistance float64         `json:"intracellular_resistance"`
	MembraneResistance      float64         `json:"membrane_resistance"`
	MembraneCapacitance     float64         `json:"membrane_capacitance"`
}

// DistanceFunc returns the geodesic distance between two nodes in provider units.
type DistanceFunc func(a, b skeleton.NodeID) (float64, error)

// Input is an immutable snapshot of the geometry the calculator reads.
type Input struct {
	Segments [][]skeleton.NodeID
	Radii    map[skeleton.NodeID]float64
	Distance DistanceFunc
}

// FromNeuron assembles calculator input from a skeleton and its radius estimates.
func FromNeuron(n *skeleton.Neuron, radii map[skeleton.NodeID]float64) Input {
	return Input{
		Segments: n.Segments(),
		Radii:    radii,
		Distance: n.Distance,
	}
}
