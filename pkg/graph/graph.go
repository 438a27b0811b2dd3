package graph

import (
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
)

var (
	ErrUnknownNode = errors.New("unknown node")
	ErrUnknownEdge = errors.New("unknown edge")
	ErrDuplicateID = errors.New("duplicate id")
	ErrSelfLoop    = errors.New("edge joins a node to itself")
)

const (
	rtreeMin = 2
	rtreeMax = 8
	// half-width of the box a node occupies in the index
	pointExtent = 1e-9
)

// Graph holds nodes and edges keyed by id.
type Graph struct {
	nodes   map[NodeID]*Node
	edges   map[EdgeID]*Edge
	index   *rtreego.Rtree
	entries map[NodeID]*nodeEntry
	nodeIDs IDSource
	edgeIDs IDSource
}

type nodeEntry struct {
	id  NodeID
	pos geom.Vec3
}

func (e *nodeEntry) Bounds() rtreego.Rect {
	return rtreego.Point(e.pos.Slice()).ToRect(pointExtent)
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[NodeID]*Node),
		edges:   make(map[EdgeID]*Edge),
		index:   rtreego.NewTree(3, rtreeMin, rtreeMax),
		entries: make(map[NodeID]*nodeEntry),
		nodeIDs: NewIDSource("n"),
		edgeIDs: NewIDSource("e"),
	}
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with the given id. The result must not be mutated.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with the given id. The result must not be mutated.
func (g *Graph) Edge(id EdgeID) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Nodes returns every node sorted by id.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int { return CompareIDs(a.ID, b.ID) })
	return out
}

// Edges returns every edge sorted by id.
func (g *Graph) Edges() []*Edge {
	return g.EdgesWhere(nil)
}

// EdgesWhere returns the edges accepted by keep, sorted by id. A nil
// filter accepts everything.
func (g *Graph) EdgesWhere(keep func(*Edge) bool) []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *Edge) int { return CompareIDs(a.ID, b.ID) })
	return out
}

// EdgesOwnedBy returns the edges of one piece, sorted by id.
func (g *Graph) EdgesOwnedBy(owner PieceID) []*Edge {
	return g.EdgesWhere(func(e *Edge) bool { return e.Owner == owner })
}

// NodesWithin returns nodes no farther than radius from pos, nearest first.
// Equal distances are ordered by id.
func (g *Graph) NodesWithin(pos geom.Vec3, radius float64) []*Node {
	if len(g.nodes) == 0 || radius < 0 {
		return nil
	}
	box := rtreego.Point(pos.Slice()).ToRect(math.Max(radius, pointExtent))
	hits := g.index.SearchIntersect(box)

	type candidate struct {
		node *Node
		dist float64
	}
	cands := make([]candidate, 0, len(hits))
	for _, h := range hits {
		n := g.nodes[h.(*nodeEntry).id]
		if d := n.Position.Dist(pos); d <= radius {
			cands = append(cands, candidate{n, d})
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return CompareIDs(a.node.ID, b.node.ID)
	})
	out := make([]*Node, len(cands))
	for i, c := range cands {
		out[i] = c.node
	}
	return out
}

// FindNearbyNode returns the node nearest to pos within tolerance.
func (g *Graph) FindNearbyNode(pos geom.Vec3, tolerance float64) (*Node, bool) {
	near := g.NodesWithin(pos, tolerance)
	if len(near) == 0 {
		return nil, false
	}
	return near[0], true
}

// CreateNode adds a node with a fresh id.
func (g *Graph) CreateNode(pos geom.Vec3) *Node {
	id := NodeID(g.nodeIDs.Next())
	for g.nodes[id] != nil {
		id = NodeID(g.nodeIDs.Next())
	}
	return g.insertNode(id, pos)
}

// MergeOrCreateNode returns the nearest node within tolerance, or a new
// node at pos. The boolean reports whether a node was created.
func (g *Graph) MergeOrCreateNode(pos geom.Vec3, tolerance float64) (*Node, bool) {
	if n, ok := g.FindNearbyNode(pos, tolerance); ok {
		return n, false
	}
	return g.CreateNode(pos), true
}

// InsertNode adds a node with a caller-chosen id.
func (g *Graph) InsertNode(id NodeID, pos geom.Vec3) (*Node, error) {
	if id.IsZero() {
		return nil, errors.New("node id is empty")
	}
	if _, dup := g.nodes[id]; dup {
		return nil, errors.Wrapf(ErrDuplicateID, "node %s", id)
	}
	g.nodeIDs.Observe(string(id))
	return g.insertNode(id, pos), nil
}

func (g *Graph) insertNode(id NodeID, pos geom.Vec3) *Node {
	n := &Node{ID: id, Position: pos, incident: make(map[EdgeID]struct{})}
	g.nodes[id] = n
	entry := &nodeEntry{id: id, pos: pos}
	g.entries[id] = entry
	g.index.Insert(entry)
	return n
}

// RemoveNode deletes a node that has no incident edges.
func (g *Graph) RemoveNode(id NodeID) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Wrapf(ErrUnknownNode, "node %s", id)
	}
	if n.Degree() > 0 {
		return errors.Newf("node %s still has %d edges", id, n.Degree())
	}
	g.dropNode(id)
	return nil
}

func (g *Graph) dropNode(id NodeID) {
	if entry, ok := g.entries[id]; ok {
		g.index.Delete(entry)
		delete(g.entries, id)
	}
	delete(g.nodes, id)
}

// AddEdge connects two existing nodes with a fresh edge id.
func (g *Graph) AddEdge(from, to NodeID, lengthM float64, curve Curve, owner PieceID) (*Edge, error) {
	id := EdgeID(g.edgeIDs.Next())
	for g.edges[id] != nil {
		id = EdgeID(g.edgeIDs.Next())
	}
	return g.InsertEdge(Edge{ID: id, From: from, To: to, LengthM: lengthM, Curve: curve, Owner: owner})
}

// InsertEdge adds an edge with a caller-chosen id. Both endpoints must
// already exist.
func (g *Graph) InsertEdge(e Edge) (*Edge, error) {
	if e.ID.IsZero() {
		return nil, errors.New("edge id is empty")
	}
	if _, dup := g.edges[e.ID]; dup {
		return nil, errors.Wrapf(ErrDuplicateID, "edge %s", e.ID)
	}
	from, ok := g.nodes[e.From]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "edge %s start %s", e.ID, e.From)
	}
	to, ok := g.nodes[e.To]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "edge %s end %s", e.ID, e.To)
	}
	if e.From == e.To {
		return nil, errors.Wrapf(ErrSelfLoop, "edge %s at %s", e.ID, e.From)
	}
	g.edgeIDs.Observe(string(e.ID))
	edge := e
	g.edges[edge.ID] = &edge
	from.incident[edge.ID] = struct{}{}
	to.incident[edge.ID] = struct{}{}
	return &edge, nil
}

// RemoveEdge detaches an edge from both endpoints. Endpoints left without
// edges are removed as well.
func (g *Graph) RemoveEdge(id EdgeID) error {
	e, ok := g.edges[id]
	if !ok {
		return errors.Wrapf(ErrUnknownEdge, "edge %s", id)
	}
	delete(g.edges, id)
	for _, nid := range []NodeID{e.From, e.To} {
		n, ok := g.nodes[nid]
		if !ok {
			continue
		}
		delete(n.incident, id)
		if n.Degree() == 0 {
			g.dropNode(nid)
		}
	}
	return nil
}

// MergeNodes re-points every edge incident to src onto dst and removes
// src. Nothing changes when an edge already joins the two nodes.
func (g *Graph) MergeNodes(src, dst NodeID) error {
	s, ok := g.nodes[src]
	if !ok {
		return errors.Wrapf(ErrUnknownNode, "merge source %s", src)
	}
	d, ok := g.nodes[dst]
	if !ok {
		return errors.Wrapf(ErrUnknownNode, "merge target %s", dst)
	}
	if src == dst {
		return errors.Wrapf(ErrSelfLoop, "merge %s into itself", src)
	}
	for eid := range s.incident {
		if g.edges[eid].Other(src) == dst {
			return errors.Wrapf(ErrSelfLoop, "edge %s joins %s and %s", eid, src, dst)
		}
	}
	for eid := range s.incident {
		e := g.edges[eid]
		if e.From == src {
			e.From = dst
		}
		if e.To == src {
			e.To = dst
		}
		d.incident[eid] = struct{}{}
	}
	g.dropNode(src)
	return nil
}

// PruneEmptyNodes removes every node without edges and returns their ids.
func (g *Graph) PruneEmptyNodes() []NodeID {
	var dropped []NodeID
	for _, n := range g.Nodes() {
		if n.Degree() == 0 {
			g.dropNode(n.ID)
			dropped = append(dropped, n.ID)
		}
	}
	return dropped
}

// Clone returns a deep copy. Id sources carry over so both copies continue
// to allocate the same sequence.
func (g *Graph) Clone() *Graph {
	c := New()
	c.nodeIDs = g.nodeIDs
	c.edgeIDs = g.edgeIDs
	for id, n := range g.nodes {
		nc := n.clone()
		c.nodes[id] = nc
		entry := &nodeEntry{id: id, pos: nc.Position}
		c.entries[id] = entry
		c.index.Insert(entry)
	}
	for id, e := range g.edges {
		ec := *e
		c.edges[id] = &ec
	}
	return c
}
