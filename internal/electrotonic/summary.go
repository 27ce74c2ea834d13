package electrotonic

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a record table.
type Summary struct {
	Segments         int     `json:"segments"`
	TotalLength      float64 `json:"total_length"`
	TotalSurfaceArea float64 `json:"total_surface_area"`
	TotalCapacitance float64 `json:"total_capacitance"`
	MeanRadius       float64 `json:"mean_radius"`
	StdRadius        float64 `json:"std_radius"`
}

// Summarize computes totals and radius statistics over records.
func Summarize(records []SegmentRecord) Summary {
	s := Summary{Segments: len(records)}
	if len(records) == 0 {
		return s
	}

	lengths := make([]float64, len(records))
	areas := make([]float64, len(records))
	caps := make([]float64, len(records))
	radii := make([]float64, len(records))
	for i, r := range records {
		lengths[i] = r.Length
		areas[i] = r.SurfaceArea
		caps[i] = r.MembraneCapacitance
		radii[i] = r.Radius
	}

	s.TotalLength = floats.Sum(lengths)
	s.TotalSurfaceArea = floats.Sum(areas)
	s.TotalCapacitance = floats.Sum(caps)
	if len(radii) > 1 {
		s.MeanRadius, s.StdRadius = stat.MeanStdDev(radii, nil)
	} else {
		s.MeanRadius = radii[0]
	}
	return s
}
