package layout

import (
	"maps"
	"slices"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/graph"
)

// RouteEdge pairs an edge with the route of the piece it realizes.
type RouteEdge struct {
	Edge  graph.EdgeID
	Route catalog.RouteID
}

// ConnectorRef names one connector of one placed piece.
type ConnectorRef struct {
	Piece     graph.PieceID
	Connector catalog.ConnectorID
}

// PlacedPiece is a catalog entry positioned in the world. Every connector
// is bound to a graph node; a node bound to a single connector is an open
// rail end.
type PlacedPiece struct {
	ID          graph.PieceID
	CatalogID   string
	Transform   geom.Transform
	Connectors  map[catalog.ConnectorID]graph.NodeID
	SwitchState catalog.RouteID
	Edges       []RouteEdge
}

// EdgeIDs lists the edges the piece owns, in route order.
func (p *PlacedPiece) EdgeIDs() []graph.EdgeID {
	ids := make([]graph.EdgeID, len(p.Edges))
	for i, re := range p.Edges {
		ids[i] = re.Edge
	}
	return ids
}

// EdgeFor returns the edge realizing a route.
func (p *PlacedPiece) EdgeFor(route catalog.RouteID) (graph.EdgeID, bool) {
	for _, re := range p.Edges {
		if re.Route == route {
			return re.Edge, true
		}
	}
	return "", false
}

// ActiveEdgeIDs lists the edges currently traversable. Pieces without a
// switch state have every edge active.
func (p *PlacedPiece) ActiveEdgeIDs() []graph.EdgeID {
	var ids []graph.EdgeID
	for _, re := range p.Edges {
		if p.SwitchState == "" || re.Route == p.SwitchState {
			ids = append(ids, re.Edge)
		}
	}
	return ids
}

// NodeIDs lists the bound nodes in connector-id order.
func (p *PlacedPiece) NodeIDs() []graph.NodeID {
	keys := slices.Sorted(maps.Keys(p.Connectors))
	out := make([]graph.NodeID, 0, len(keys))
	for _, k := range keys {
		out = append(out, p.Connectors[k])
	}
	return out
}

func (p *PlacedPiece) clone() *PlacedPiece {
	c := *p
	c.Connectors = maps.Clone(p.Connectors)
	c.Edges = slices.Clone(p.Edges)
	return &c
}

// WorldConnector is a connector template mapped through a transform.
type WorldConnector struct {
	ID       catalog.ConnectorID
	Position geom.Vec3
	Forward  geom.Vec3
}

// WorldConnectors maps every connector of entry through t, in template
// order.
func WorldConnectors(entry catalog.Entry, t geom.Transform) []WorldConnector {
	out := make([]WorldConnector, len(entry.Connectors))
	for i, ct := range entry.Connectors {
		out[i] = worldConnector(ct, t)
	}
	return out
}

func worldConnector(ct catalog.ConnectorTemplate, t geom.Transform) WorldConnector {
	return WorldConnector{
		ID:       ct.ID,
		Position: t.Apply(ct.LocalPosition),
		Forward:  t.ApplyDir(ct.LocalForward).Unit(),
	}
}

// connectorBox is the fallback footprint: the box around the connectors.
func connectorBox(entry catalog.Entry, t geom.Transform) Box {
	wcs := WorldConnectors(entry, t)
	b := Box{Min: wcs[0].Position, Max: wcs[0].Position}
	for _, wc := range wcs[1:] {
		b.Min = b.Min.Min(wc.Position)
		b.Max = b.Max.Max(wc.Position)
	}
	return b
}
