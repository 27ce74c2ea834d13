package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/chrissnell/electrotonic/internal/skeleton"
)

// CompactSkeleton is the CATMAID compact-skeleton export of a single neuron.
//
// Treenode rows are [id, parent_id|null, user_id, x, y, z, radius, confidence].
// Connector rows are [treenode_id, connector_id, relation, x, y, z] where
// relation 0 is presynaptic and 1 is postsynaptic.
type CompactSkeleton struct {
	SkeletonID int64        `json:"skeleton_id"`
	Name       string       `json:"name"`
	Treenodes  [][]*float64 `json:"treenodes"`
	Connectors [][]*float64 `json:"connectors"`
}

// ReadCATMAID decodes either a single compact skeleton object or an array of
// them. Callers that need exactly one neuron should pass the result through
// skeleton.Single.
func ReadCATMAID(r io.Reader) ([]*skeleton.Neuron, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catmaid json: %w", err)
	}

	var exports []CompactSkeleton
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &exports); err != nil {
			return nil, fmt.Errorf("decoding catmaid json: %w", err)
		}
	} else {
		var single CompactSkeleton
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("decoding catmaid json: %w", err)
		}
		exports = append(exports, single)
	}

	neurons := make([]*skeleton.Neuron, 0, len(exports))
	for _, e := range exports {
		n, err := e.Neuron()
		if err != nil {
			return nil, fmt.Errorf("skeleton %d: %w", e.SkeletonID, err)
		}
		neurons = append(neurons, n)
	}
	return neurons, nil
}

// Neuron converts the export rows into a validated skeleton.
func (c CompactSkeleton) Neuron() (*skeleton.Neuron, error) {
	nodes := make([]skeleton.Treenode, 0, len(c.Treenodes))
	for i, row := range c.Treenodes {
		if len(row) < 7 {
			return nil, fmt.Errorf("treenode row %d: expected at least 7 columns, got %d", i, len(row))
		}
		if row[0] == nil {
			return nil, fmt.Errorf("treenode row %d: missing id", i)
		}
		for _, col := range []int{3, 4, 5} {
			if row[col] == nil {
				return nil, fmt.Errorf("treenode row %d: missing coordinate", i)
			}
		}

		t := skeleton.Treenode{
			ID: skeleton.NodeID(*row[0]),
			X:  *row[3],
			Y:  *row[4],
			Z:  *row[5],
		}
		if row[1] != nil {
			t.ParentID = skeleton.NodeID(*row[1])
		}
		if row[6] != nil {
			t.Radius = *row[6]
		} else {
			t.Radius = skeleton.NoRadius
		}
		nodes = append(nodes, t)
	}

	connectors := make([]skeleton.Connector, 0, len(c.Connectors))
	for i, row := range c.Connectors {
		if len(row) < 6 {
			return nil, fmt.Errorf("connector row %d: expected 6 columns, got %d", i, len(row))
		}
		for _, v := range row[:6] {
			if v == nil {
				return nil, fmt.Errorf("connector row %d: null column", i)
			}
		}

		conn := skeleton.Connector{
			TreenodeID: skeleton.NodeID(*row[0]),
			ID:         int64(*row[1]),
			X:          *row[3],
			Y:          *row[4],
			Z:          *row[5],
		}
		switch int(*row[2]) {
		case 0:
			conn.Relation = skeleton.RelationPresynaptic
		case 1:
			conn.Relation = skeleton.RelationPostsynaptic
		default:
			conn.Relation = skeleton.RelationOther
		}
		connectors = append(connectors, conn)
	}

	return skeleton.New(c.SkeletonID, c.Name, nodes, connectors)
}
