package layout

import (
	"slices"

	"github.com/samber/lo"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/graph"
)

// Pieces returns copies of every placed piece, sorted by id.
func (l *Layout) Pieces() []PlacedPiece {
	return lo.Map(l.st.sortedPieces(), func(p *PlacedPiece, _ int) PlacedPiece { return *p.clone() })
}

// Piece returns a copy of one placed piece.
func (l *Layout) Piece(id graph.PieceID) (PlacedPiece, error) {
	p, ok := l.st.pieces[id]
	if !ok {
		return PlacedPiece{}, errors.Wrapf(ErrUnknownPiece, "piece %s", id)
	}
	return *p.clone(), nil
}

// Items returns every placed piece as its typed variant, sorted by id.
func (l *Layout) Items() []Item {
	var out []Item
	for _, p := range l.st.sortedPieces() {
		entry, err := l.entry(p.CatalogID)
		if err != nil {
			continue
		}
		out = append(out, newItem(*p.clone(), entry))
	}
	return out
}

// Graph returns a snapshot of the track graph.
func (l *Layout) Graph() *graph.Graph { return l.st.graph.Clone() }

// IsEdgeActive reports whether an edge is traversable under the current
// switch states.
func (l *Layout) IsEdgeActive(id graph.EdgeID) bool {
	e, ok := l.st.graph.Edge(id)
	if !ok {
		return false
	}
	p, ok := l.st.pieces[e.Owner]
	if !ok {
		return false
	}
	if p.SwitchState == "" {
		return true
	}
	for _, re := range p.Edges {
		if re.Edge == id {
			return re.Route == p.SwitchState
		}
	}
	return false
}

// ActiveEdges returns copies of the traversable edges, sorted by id.
func (l *Layout) ActiveEdges() []graph.Edge {
	return derefEdges(l.st.graph.EdgesWhere(l.activeFilter()))
}

// AllEdges returns copies of every edge, active or not, sorted by id.
func (l *Layout) AllEdges() []graph.Edge {
	return derefEdges(l.st.graph.Edges())
}

func (l *Layout) activeFilter() func(*graph.Edge) bool {
	active := make(map[graph.EdgeID]bool)
	for _, p := range l.st.pieces {
		for _, id := range p.ActiveEdgeIDs() {
			active[id] = true
		}
	}
	return func(e *graph.Edge) bool { return active[e.ID] }
}

func derefEdges(in []*graph.Edge) []graph.Edge {
	return lo.Map(in, func(e *graph.Edge, _ int) graph.Edge { return *e })
}

// Joined returns the connectors bound to a node.
func (l *Layout) Joined(node graph.NodeID) []ConnectorRef {
	return slices.Clone(l.st.bindings[node])
}

// ConnectorWorld returns the world position and forward of a connector.
func (l *Layout) ConnectorWorld(id graph.PieceID, conn catalog.ConnectorID) (WorldConnector, error) {
	return l.worldConnector(l.st, ConnectorRef{Piece: id, Connector: conn})
}

// FreeConnector is an open rail end.
type FreeConnector struct {
	ConnectorRef
	Node     graph.NodeID
	Position geom.Vec3
	Forward  geom.Vec3
}

// FreeConnectors lists connectors not joined to another piece, ordered by
// piece id then connector template order.
func (l *Layout) FreeConnectors() []FreeConnector {
	var out []FreeConnector
	for _, p := range l.st.sortedPieces() {
		entry, err := l.entry(p.CatalogID)
		if err != nil {
			continue
		}
		for _, ct := range entry.Connectors {
			node := p.Connectors[ct.ID]
			if len(l.st.bindings[node]) != 1 {
				continue
			}
			wc := worldConnector(ct, p.Transform)
			out = append(out, FreeConnector{
				ConnectorRef: ConnectorRef{Piece: p.ID, Connector: ct.ID},
				Node:         node,
				Position:     wc.Position,
				Forward:      wc.Forward,
			})
		}
	}
	return out
}

// FindRoute returns the shortest path between two nodes over active edges.
func (l *Layout) FindRoute(from, to graph.NodeID) (graph.Route, error) {
	return l.st.graph.ShortestRoute(from, to, l.activeFilter())
}

// Stats summarizes a layout.
type Stats struct {
	PieceCount int `json:"pieceCount" yaml:"piece_count"`
	// Distinct catalog entries in use, one mesh each.
	MeshCount int `json:"meshCount" yaml:"mesh_count"`
	// Sum of the catalog length of every placed piece.
	TotalLengthM    float64 `json:"totalLengthM" yaml:"total_length_m"`
	NodeCount       int     `json:"nodeCount" yaml:"node_count"`
	EdgeCount       int     `json:"edgeCount" yaml:"edge_count"`
	ActiveEdgeCount int     `json:"activeEdgeCount" yaml:"active_edge_count"`
	OpenEnds        int     `json:"openEnds" yaml:"open_ends"`
	Sections        int     `json:"sections" yaml:"sections"`
}

// Stats computes summary figures for the current layout.
func (l *Layout) Stats() Stats {
	s := Stats{
		PieceCount:      len(l.st.pieces),
		NodeCount:       l.st.graph.NodeCount(),
		EdgeCount:       l.st.graph.EdgeCount(),
		ActiveEdgeCount: len(l.st.graph.EdgesWhere(l.activeFilter())),
		Sections:        len(l.st.graph.Sections(nil)),
	}
	meshes := make(map[string]bool)
	for _, p := range l.st.sortedPieces() {
		meshes[p.CatalogID] = true
		if e, err := l.entry(p.CatalogID); err == nil {
			s.TotalLengthM += e.LengthM
		}
	}
	s.MeshCount = len(meshes)
	for _, refs := range l.st.bindings {
		if len(refs) == 1 {
			s.OpenEnds++
		}
	}
	return s
}

// BOMLine is one row of a bill of materials.
type BOMLine struct {
	CatalogID   string  `json:"catalogId" yaml:"catalog_id"`
	DisplayName string  `json:"displayName" yaml:"display_name"`
	Type        string  `json:"pieceType" yaml:"piece_type"`
	Count       int     `json:"count" yaml:"count"`
	LengthM     float64 `json:"lengthM" yaml:"length_m"`
}

// BillOfMaterials counts pieces per catalog entry, in catalog order.
func (l *Layout) BillOfMaterials() []BOMLine {
	counts := lo.CountValuesBy(lo.Values(l.st.pieces), func(p *PlacedPiece) string { return p.CatalogID })
	var out []BOMLine
	for _, e := range l.catalog.All() {
		n := counts[e.ID]
		if n == 0 {
			continue
		}
		out = append(out, BOMLine{
			CatalogID:   e.ID,
			DisplayName: e.DisplayName,
			Type:        e.Type.String(),
			Count:       n,
			LengthM:     float64(n) * e.LengthM,
		})
	}
	return out
}
