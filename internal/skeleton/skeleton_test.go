package skeleton

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// testNeuron builds
//
//	1 (root) - 2 - 3 (branch) - 4 - 5 (leaf)
//	                         \- 6 (branch) - 7 (leaf)
//	                                      \- 8 (leaf)
//
// laid out along the x axis with 1000 nm edges, except 6 which sits 1000 nm
// off 3 on the y axis.
func testNeuron(t *testing.T, connectors []Connector) *Neuron {
	t.Helper()
	nodes := []Treenode{
		{ID: 1, X: 0},
		{ID: 2, ParentID: 1, X: 1000},
		{ID: 3, ParentID: 2, X: 2000},
		{ID: 4, ParentID: 3, X: 3000},
		{ID: 5, ParentID: 4, X: 4000},
		{ID: 6, ParentID: 3, X: 2000, Y: 1000},
		{ID: 7, ParentID: 6, X: 2000, Y: 2000},
		{ID: 8, ParentID: 6, X: 3000, Y: 1000},
	}
	n, err := New(42, "test", nodes, connectors)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Treenode
		conns []Connector
		want  error
	}{
		{
			name: "empty",
			want: ErrEmptyNeuron,
		},
		{
			name:  "zero id",
			nodes: []Treenode{{ID: 0}},
			want:  ErrInvalidNode,
		},
		{
			name:  "duplicate id",
			nodes: []Treenode{{ID: 1}, {ID: 1, ParentID: 1}},
			want:  ErrDuplicateNode,
		},
		{
			name:  "unknown parent",
			nodes: []Treenode{{ID: 1}, {ID: 2, ParentID: 9}},
			want:  ErrUnknownParent,
		},
		{
			name:  "two roots",
			nodes: []Treenode{{ID: 1}, {ID: 2}},
			want:  ErrRootCount,
		},
		{
			name:  "self parent",
			nodes: []Treenode{{ID: 1}, {ID: 2, ParentID: 2}},
			want:  ErrCycle,
		},
		{
			name:  "cycle detached from root",
			nodes: []Treenode{{ID: 1}, {ID: 2, ParentID: 3}, {ID: 3, ParentID: 2}},
			want:  ErrCycle,
		},
		{
			name:  "connector on unknown node",
			nodes: []Treenode{{ID: 1}},
			conns: []Connector{{ID: 10, TreenodeID: 5}},
			want:  ErrUnknownNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(1, "x", tt.nodes, tt.conns)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, expected %v", err, tt.want)
			}
		})
	}
}

func TestTopology(t *testing.T) {
	n := testNeuron(t, nil)

	if n.Root() != 1 {
		t.Errorf("Root = %d, expected 1", n.Root())
	}
	if got := n.Leaves(); !reflect.DeepEqual(got, []NodeID{5, 7, 8}) {
		t.Errorf("Leaves = %v", got)
	}
	if got := n.BranchPoints(); !reflect.DeepEqual(got, []NodeID{3, 6}) {
		t.Errorf("BranchPoints = %v", got)
	}
	if got := n.Children(3); !reflect.DeepEqual(got, []NodeID{4, 6}) {
		t.Errorf("Children(3) = %v", got)
	}
	if got := n.CableLength(); got != 7000 {
		t.Errorf("CableLength = %v, expected 7000", got)
	}
}

func TestSegments(t *testing.T) {
	n := testNeuron(t, nil)

	want := [][]NodeID{
		{3, 2, 1},
		{5, 4, 3},
		{6, 3},
		{7, 6},
		{8, 6},
	}
	got := n.Segments()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Segments = %v, expected %v", got, want)
	}

	// Every edge is covered exactly once.
	edges := make(map[[2]NodeID]int)
	for _, seg := range got {
		for i := 0; i+1 < len(seg); i++ {
			edges[[2]NodeID{seg[i], seg[i+1]}]++
		}
	}
	if len(edges) != len(n.Nodes)-1 {
		t.Errorf("segments cover %d edges, expected %d", len(edges), len(n.Nodes)-1)
	}
	for e, count := range edges {
		if count != 1 {
			t.Errorf("edge %v covered %d times", e, count)
		}
	}
}

func TestSegmentsEdgeCases(t *testing.T) {
	lone, err := New(1, "lone", []Treenode{{ID: 1}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if segs := lone.Segments(); len(segs) != 0 {
		t.Errorf("single node neuron has segments: %v", segs)
	}

	// A root with two children is itself a branch point.
	forked, err := New(1, "forked", []Treenode{{ID: 1}, {ID: 2, ParentID: 1}, {ID: 3, ParentID: 1}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := forked.Segments(); !reflect.DeepEqual(got, [][]NodeID{{2, 1}, {3, 1}}) {
		t.Errorf("Segments = %v", got)
	}
}

func TestDistance(t *testing.T) {
	n := testNeuron(t, nil)

	tests := []struct {
		a, b NodeID
		want float64
	}{
		{1, 1, 0},
		{1, 5, 4000},
		{5, 1, 4000},
		{5, 7, 4000},
		{7, 8, 2000},
		{3, 1, 2000},
		{4, 6, 2000},
	}
	for _, tt := range tests {
		got, err := n.Distance(tt.a, tt.b)
		if err != nil {
			t.Fatalf("Distance(%d, %d): %v", tt.a, tt.b, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Distance(%d, %d) = %v, expected %v", tt.a, tt.b, got, tt.want)
		}
	}

	if _, err := n.Distance(1, 99); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, expected ErrUnknownNode", err)
	}
}

func TestParentDistance(t *testing.T) {
	n, err := New(1, "diag", []Treenode{{ID: 1}, {ID: 2, ParentID: 1, X: 3, Y: 4}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := n.ParentDistance(2); d != 5 {
		t.Errorf("ParentDistance(2) = %v, expected 5", d)
	}
	if d := n.ParentDistance(1); d != 0 {
		t.Errorf("ParentDistance(root) = %v, expected 0", d)
	}
}

func TestSingle(t *testing.T) {
	n := testNeuron(t, nil)

	got, err := Single([]*Neuron{n})
	if err != nil || got != n {
		t.Errorf("Single(one) = %v, %v", got, err)
	}
	for _, in := range [][]*Neuron{nil, {n, n}} {
		if _, err := Single(in); !errors.Is(err, ErrNotSingleNeuron) {
			t.Errorf("Single(%d neurons) err = %v, expected ErrNotSingleNeuron", len(in), err)
		}
	}
}

func TestRelationString(t *testing.T) {
	if RelationPresynaptic.String() != "presynaptic" || RelationPostsynaptic.String() != "postsynaptic" || RelationOther.String() != "other" {
		t.Error("unexpected relation names")
	}
}
