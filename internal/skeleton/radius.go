package skeleton

import "fmt"

// NoRadius marks a node for which no radius could be estimated. It is the
// negative artefact downstream consumers must correct.
const NoRadius = -1.0

// RadiusMethod selects how GuessRadius derives per-node radii.
type RadiusMethod string

const (
	// RadiusLinear derives radii from connector distances and interpolates
	// linearly along each segment.
	RadiusLinear RadiusMethod = "linear"

	// RadiusNode uses the radius stored on each treenode.
	RadiusNode RadiusMethod = "node"
)

// RadiusOptions controls radius estimation.
type RadiusOptions struct {
	Method RadiusMethod
	Smooth bool
	Window int
}

// DefaultRadiusOptions returns linear estimation with a five node smoothing window.
func DefaultRadiusOptions() RadiusOptions {
	return RadiusOptions{
		Method: RadiusLinear,
		Smooth: true,
		Window: 5,
	}
}

// GuessRadius estimates a radius for every treenode. With RadiusLinear a
// node carrying connectors gets the mean distance to them; the remaining
// nodes of a segment are interpolated by cable distance between those
// anchors and held flat beyond the outermost ones. Segments without any
// connector get NoRadius.
func (n *Neuron) GuessRadius(opts RadiusOptions) (map[NodeID]float64, error) {
	switch opts.Method {
	case RadiusNode:
		radii := make(map[NodeID]float64, len(n.Nodes))
		for _, t := range n.Nodes {
			radii[t.ID] = t.Radius
		}
		return radii, nil
	case RadiusLinear, "":
	default:
		return nil, fmt.Errorf("unknown radius method %q", opts.Method)
	}

	anchors := make(map[NodeID]float64)
	for id, conns := range n.connectors {
		t := n.node(id)
		var sum float64
		for _, c := range conns {
			sum += euclidean(t.X, t.Y, t.Z, c.X, c.Y, c.Z)
		}
		anchors[id] = sum / float64(len(conns))
	}

	radii := make(map[NodeID]float64, len(n.Nodes))
	for _, seg := range n.Segments() {
		values := n.interpolate(seg, anchors)
		if opts.Smooth {
			values = rollingMean(values, opts.Window)
		}

		// A segment owns every node except its end; the end belongs to the
		// next segment up, or to the first segment reaching the root.
		for i, id := range seg {
			if i == len(seg)-1 && id != n.root {
				continue
			}
			if _, done := radii[id]; done {
				continue
			}
			radii[id] = values[i]
		}
	}

	// A lone root has no segment.
	if _, ok := radii[n.root]; !ok {
		if r, ok := anchors[n.root]; ok {
			radii[n.root] = r
		} else {
			radii[n.root] = NoRadius
		}
	}

	return radii, nil
}

func (n *Neuron) interpolate(seg []NodeID, anchors map[NodeID]float64) []float64 {
	pos := make([]float64, len(seg))
	for i := 1; i < len(seg); i++ {
		pos[i] = pos[i-1] + n.ParentDistance(seg[i-1])
	}

	var known []int
	for i, id := range seg {
		if _, ok := anchors[id]; ok {
			known = append(known, i)
		}
	}

	values := make([]float64, len(seg))
	if len(known) == 0 {
		for i := range values {
			values[i] = NoRadius
		}
		return values
	}

	k := 0
	for i, id := range seg {
		if r, ok := anchors[id]; ok {
			values[i] = r
			continue
		}
		for k < len(known)-1 && known[k+1] < i {
			k++
		}
		lo, hi := known[k], known[k]
		if k+1 < len(known) {
			hi = known[k+1]
		}
		switch {
		case i < lo:
			values[i] = anchors[seg[lo]]
		case i > hi || lo == hi:
			values[i] = anchors[seg[hi]]
		default:
			rlo, rhi := anchors[seg[lo]], anchors[seg[hi]]
			span := pos[hi] - pos[lo]
			if span == 0 {
				values[i] = rlo
				continue
			}
			values[i] = rlo + (rhi-rlo)*(pos[i]-pos[lo])/span
		}
	}
	return values
}

// rollingMean applies a centred moving average, ignoring NoRadius entries.
func rollingMean(values []float64, window int) []float64 {
	if window < 2 {
		return values
	}
	half := window / 2
	out := make([]float64, len(values))
	for i, v := range values {
		if v == NoRadius {
			out[i] = v
			continue
		}
		var sum float64
		var count int
		for j := i - half; j <= i+half; j++ {
			if j < 0 || j >= len(values) || values[j] == NoRadius {
				continue
			}
			sum += values[j]
			count++
		}
		out[i] = sum / float64(count)
	}
	return out
}
