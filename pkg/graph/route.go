package graph

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/chazu/railyard/pkg/errors"
)

// ErrNoRoute is returned when two nodes are not connected.
var ErrNoRoute = errors.New("no route")

// Route is a path through the network.
type Route struct {
	Nodes   []NodeID
	Edges   []EdgeID
	LengthM float64
}

// weighted is a gonum view over a subset of edges. Parallel edges between
// the same two nodes collapse to the shortest one.
type weighted struct {
	g     *simple.WeightedUndirectedGraph
	ids   map[NodeID]int64
	nodes []NodeID
	via   map[[2]int64]*Edge
}

func newWeighted(g *Graph, edges []*Edge) *weighted {
	w := &weighted{
		g:   simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		ids: make(map[NodeID]int64, g.NodeCount()),
		via: make(map[[2]int64]*Edge),
	}
	for _, n := range g.Nodes() {
		id := int64(len(w.nodes))
		w.ids[n.ID] = id
		w.nodes = append(w.nodes, n.ID)
		w.g.AddNode(simple.Node(id))
	}
	for _, e := range edges {
		u, v := w.ids[e.From], w.ids[e.To]
		key := pairKey(u, v)
		if prev, ok := w.via[key]; ok && prev.LengthM <= e.LengthM {
			continue
		}
		w.via[key] = e
		w.g.SetWeightedEdge(w.g.NewWeightedEdge(simple.Node(u), simple.Node(v), e.LengthM))
	}
	return w
}

func pairKey(u, v int64) [2]int64 {
	if u > v {
		u, v = v, u
	}
	return [2]int64{u, v}
}

// ShortestRoute finds the shortest path between two nodes using only the
// edges accepted by keep (nil accepts all).
func (g *Graph) ShortestRoute(from, to NodeID, keep func(*Edge) bool) (Route, error) {
	if _, ok := g.nodes[from]; !ok {
		return Route{}, errors.Wrapf(ErrUnknownNode, "node %s", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return Route{}, errors.Wrapf(ErrUnknownNode, "node %s", to)
	}
	if from == to {
		return Route{Nodes: []NodeID{from}}, nil
	}

	w := newWeighted(g, g.EdgesWhere(keep))
	shortest := path.DijkstraFrom(simple.Node(w.ids[from]), w.g)
	hops, length := shortest.To(w.ids[to])
	if len(hops) == 0 || math.IsInf(length, 1) {
		return Route{}, errors.Wrapf(ErrNoRoute, "from %s to %s", from, to)
	}

	r := Route{LengthM: length}
	for i, hop := range hops {
		r.Nodes = append(r.Nodes, w.nodes[hop.ID()])
		if i > 0 {
			r.Edges = append(r.Edges, w.via[pairKey(hops[i-1].ID(), hop.ID())].ID)
		}
	}
	return r, nil
}

// Sections groups nodes into connected components using the edges accepted
// by keep. Components are sorted by their smallest node id.
func (g *Graph) Sections(keep func(*Edge) bool) [][]NodeID {
	w := newWeighted(g, g.EdgesWhere(keep))
	var out [][]NodeID
	for _, comp := range topo.ConnectedComponents(w.g) {
		section := make([]NodeID, 0, len(comp))
		for _, n := range comp {
			section = append(section, w.nodes[n.ID()])
		}
		slices.SortFunc(section, CompareIDs[NodeID])
		out = append(out, section)
	}
	slices.SortFunc(out, func(a, b []NodeID) int { return CompareIDs(a[0], b[0]) })
	return out
}
