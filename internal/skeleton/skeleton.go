// Package skeleton models a reconstructed neuron as a tree of treenodes with
// attached synaptic connectors. It provides the geometry consumed by the
// electrotonic calculator: segment decomposition, geodesic distance along the
// tree and per-node radius estimates.
package skeleton

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// NodeID identifies a treenode. Zero is reserved to mean "no parent".
type NodeID int64

var (
	ErrEmptyNeuron     = errors.New("neuron has no treenodes")
	ErrInvalidNode     = errors.New("invalid treenode id")
	ErrDuplicateNode   = errors.New("duplicate treenode id")
	ErrUnknownParent   = errors.New("treenode references unknown parent")
	ErrRootCount       = errors.New("neuron must have exactly one root")
	ErrCycle           = errors.New("treenode parent links form a cycle")
	ErrUnknownNode     = errors.New("unknown treenode")
	ErrNotSingleNeuron = errors.New("expected exactly one neuron")
)

// Relation is the synaptic role of a connector relative to the skeleton.
type Relation int

const (
	RelationPresynaptic Relation = iota
	RelationPostsynaptic
	RelationOther
)

func (r Relation) String() string {
	switch r {
	case RelationPresynaptic:
		return "presynaptic"
	case RelationPostsynaptic:
		return "postsynaptic"
	default:
		return "other"
	}
}

// Treenode is a single point of the skeleton. Coordinates and radius are in
// the provider's native unit (nanometres for CATMAID).
type Treenode struct {
	ID       NodeID
	ParentID NodeID
	X, Y, Z  float64
	Radius   float64
}

// IsRoot reports whether the node has no parent.
func (t Treenode) IsRoot() bool {
	return t.ParentID == 0
}

// Connector is a synapse attached to a treenode.
type Connector struct {
	ID         int64
	TreenodeID NodeID
	Relation   Relation
	X, Y, Z    float64
}

// Neuron is an immutable, validated skeleton. All lookup structures are built
// once by New, so a Neuron is safe for concurrent readers.
type Neuron struct {
	SkeletonID int64
	Name       string
	Nodes      []Treenode
	Connectors []Connector

	index      map[NodeID]int
	children   map[NodeID][]NodeID
	connectors map[NodeID][]Connector
	depth      map[NodeID]int
	rootDist   map[NodeID]float64
	root       NodeID
}

// New validates the treenodes and connectors and returns a Neuron ready for
// geometric queries.
func New(skeletonID int64, name string, nodes []Treenode, connectors []Connector) (*Neuron, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyNeuron
	}

	n := &Neuron{
		SkeletonID: skeletonID,
		Name:       name,
		Nodes:      nodes,
		Connectors: connectors,
		index:      make(map[NodeID]int, len(nodes)),
		children:   make(map[NodeID][]NodeID, len(nodes)),
		connectors: make(map[NodeID][]Connector),
		depth:      make(map[NodeID]int, len(nodes)),
		rootDist:   make(map[NodeID]float64, len(nodes)),
	}

	for i, t := range nodes {
		if t.ID <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidNode, t.ID)
		}
		if _, exists := n.index[t.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateNode, t.ID)
		}
		n.index[t.ID] = i
	}

	roots := 0
	for _, t := range nodes {
		if t.IsRoot() {
			roots++
			n.root = t.ID
			continue
		}
		if t.ParentID == t.ID {
			return nil, fmt.Errorf("%w: treenode %d is its own parent", ErrCycle, t.ID)
		}
		if _, ok := n.index[t.ParentID]; !ok {
			return nil, fmt.Errorf("%w: treenode %d -> %d", ErrUnknownParent, t.ID, t.ParentID)
		}
		n.children[t.ParentID] = append(n.children[t.ParentID], t.ID)
	}
	if roots != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrRootCount, roots)
	}
	for id := range n.children {
		kids := n.children[id]
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
	}

	order, err := n.rootFirstOrder()
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		t := n.node(id)
		if t.IsRoot() {
			continue
		}
		n.depth[id] = n.depth[t.ParentID] + 1
		n.rootDist[id] = n.rootDist[t.ParentID] + n.ParentDistance(id)
	}

	for _, c := range connectors {
		if _, ok := n.index[c.TreenodeID]; !ok {
			return nil, fmt.Errorf("%w: connector %d references treenode %d", ErrUnknownNode, c.ID, c.TreenodeID)
		}
		n.connectors[c.TreenodeID] = append(n.connectors[c.TreenodeID], c)
	}

	return n, nil
}

// rootFirstOrder sorts the child->parent graph topologically and returns it
// reversed, so every parent precedes its children.
func (n *Neuron) rootFirstOrder() ([]NodeID, error) {
	g := simple.NewDirectedGraph()
	for _, t := range n.Nodes {
		g.AddNode(simple.Node(int64(t.ID)))
	}
	for _, t := range n.Nodes {
		if t.IsRoot() {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(int64(t.ID)), simple.Node(int64(t.ParentID))))
	}

	sorted, err := topo.Sort(g)
	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			return nil, fmt.Errorf("%w: %d strongly connected component(s)", ErrCycle, len(unorderable))
		}
		return nil, fmt.Errorf("sorting skeleton: %w", err)
	}

	order := make([]NodeID, len(sorted))
	for i, node := range sorted {
		order[len(sorted)-1-i] = NodeID(node.ID())
	}
	return order, nil
}

func (n *Neuron) node(id NodeID) Treenode {
	return n.Nodes[n.index[id]]
}

// Root returns the root treenode id.
func (n *Neuron) Root() NodeID {
	return n.root
}

// Node looks up a treenode by id.
func (n *Neuron) Node(id NodeID) (Treenode, bool) {
	i, ok := n.index[id]
	if !ok {
		return Treenode{}, false
	}
	return n.Nodes[i], true
}

// Children returns the child ids of a node in ascending order.
func (n *Neuron) Children(id NodeID) []NodeID {
	return n.children[id]
}

// ConnectorsAt returns the connectors attached to a treenode.
func (n *Neuron) ConnectorsAt(id NodeID) []Connector {
	return n.connectors[id]
}

// IsLeaf reports whether the node has no children.
func (n *Neuron) IsLeaf(id NodeID) bool {
	return len(n.children[id]) == 0
}

// IsBranch reports whether the node has two or more children.
func (n *Neuron) IsBranch(id NodeID) bool {
	return len(n.children[id]) > 1
}

// Leaves returns every leaf id in ascending order.
func (n *Neuron) Leaves() []NodeID {
	var leaves []NodeID
	for _, t := range n.Nodes {
		if n.IsLeaf(t.ID) {
			leaves = append(leaves, t.ID)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })
	return leaves
}

// BranchPoints returns every branch point id in ascending order.
func (n *Neuron) BranchPoints() []NodeID {
	var branches []NodeID
	for _, t := range n.Nodes {
		if n.IsBranch(t.ID) {
			branches = append(branches, t.ID)
		}
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i] < branches[j] })
	return branches
}

// ParentDistance is the Euclidean length of the edge from a node to its
// parent. It is zero for the root and for unknown ids.
func (n *Neuron) ParentDistance(id NodeID) float64 {
	t, ok := n.Node(id)
	if !ok || t.IsRoot() {
		return 0
	}
	p := n.node(t.ParentID)
	return euclidean(t.X, t.Y, t.Z, p.X, p.Y, p.Z)
}

// CableLength is the summed length of every parent edge.
func (n *Neuron) CableLength() float64 {
	var total float64
	for _, t := range n.Nodes {
		total += n.ParentDistance(t.ID)
	}
	return total
}

// Distance returns the geodesic distance between two treenodes, measured
// along the skeleton through their lowest common ancestor.
func (n *Neuron) Distance(a, b NodeID) (float64, error) {
	if _, ok := n.index[a]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownNode, a)
	}
	if _, ok := n.index[b]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownNode, b)
	}

	lca := n.commonAncestor(a, b)
	return n.rootDist[a] + n.rootDist[b] - 2*n.rootDist[lca], nil
}

func (n *Neuron) commonAncestor(a, b NodeID) NodeID {
	for n.depth[a] > n.depth[b] {
		a = n.node(a).ParentID
	}
	for n.depth[b] > n.depth[a] {
		b = n.node(b).ParentID
	}
	for a != b {
		a = n.node(a).ParentID
		b = n.node(b).ParentID
	}
	return a
}

// Segments decomposes the skeleton into maximal unbranched runs. Each run
// starts at a leaf or a branch point and follows parent links up to and
// including the next branch point or the root, so every edge belongs to
// exactly one segment. Longer segments (by node count) come first; ties are
// broken by ascending start id.
func (n *Neuron) Segments() [][]NodeID {
	var segments [][]NodeID
	for _, t := range n.Nodes {
		if t.IsRoot() || !(n.IsLeaf(t.ID) || n.IsBranch(t.ID)) {
			continue
		}

		seg := []NodeID{t.ID}
		cur := t.ParentID
		for {
			seg = append(seg, cur)
			if cur == n.root || n.IsBranch(cur) {
				break
			}
			cur = n.node(cur).ParentID
		}
		segments = append(segments, seg)
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if len(segments[i]) != len(segments[j]) {
			return len(segments[i]) > len(segments[j])
		}
		return segments[i][0] < segments[j][0]
	})
	return segments
}

// Single unwraps a collection that must hold exactly one neuron.
func Single(neurons []*Neuron) (*Neuron, error) {
	if len(neurons) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNotSingleNeuron, len(neurons))
	}
	return neurons[0], nil
}

func euclidean(x1, y1, z1, x2, y2, z2 float64) float64 {
	dx, dy, dz := x1-x2, y1-y2, z1-z2
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
