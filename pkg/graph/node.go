package graph

import (
	"slices"

	"github.com/samber/lo"

	"github.com/chazu/railyard/pkg/geom"
)

// Node is a rail end in world space together with the edges that touch it.
type Node struct {
	ID       NodeID
	Position geom.Vec3
	incident map[EdgeID]struct{}
}

// IncidentEdges returns the ids of edges touching n, sorted.
func (n *Node) IncidentEdges() []EdgeID {
	ids := lo.Keys(n.incident)
	slices.SortFunc(ids, CompareIDs[EdgeID])
	return ids
}

// Degree is the number of incident edges.
func (n *Node) Degree() int { return len(n.incident) }

// HasEdge reports whether e is incident to n.
func (n *Node) HasEdge(e EdgeID) bool {
	_, ok := n.incident[e]
	return ok
}

func (n *Node) clone() *Node {
	c := &Node{ID: n.ID, Position: n.Position, incident: make(map[EdgeID]struct{}, len(n.incident))}
	for e := range n.incident {
		c.incident[e] = struct{}{}
	}
	return c
}
