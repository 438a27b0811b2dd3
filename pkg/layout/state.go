package layout

import (
	"maps"
	"slices"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/graph"
)

// state is everything a mutation may touch. Mutations run on a clone and
// are committed by swapping the pointer, so a failed operation leaves the
// published state untouched.
type state struct {
	graph    *graph.Graph
	pieces   map[graph.PieceID]*PlacedPiece
	bindings map[graph.NodeID][]ConnectorRef
	pieceIDs graph.IDSource
}

func newState() *state {
	return &state{
		graph:    graph.New(),
		pieces:   make(map[graph.PieceID]*PlacedPiece),
		bindings: make(map[graph.NodeID][]ConnectorRef),
		pieceIDs: graph.NewIDSource("p"),
	}
}

func (s *state) clone() *state {
	c := &state{
		graph:    s.graph.Clone(),
		pieces:   make(map[graph.PieceID]*PlacedPiece, len(s.pieces)),
		bindings: make(map[graph.NodeID][]ConnectorRef, len(s.bindings)),
		pieceIDs: s.pieceIDs,
	}
	for id, p := range s.pieces {
		c.pieces[id] = p.clone()
	}
	for id, refs := range s.bindings {
		c.bindings[id] = slices.Clone(refs)
	}
	return c
}

func (s *state) nextPieceID() graph.PieceID {
	id := graph.PieceID(s.pieceIDs.Next())
	for s.pieces[id] != nil {
		id = graph.PieceID(s.pieceIDs.Next())
	}
	return id
}

func (s *state) bind(n graph.NodeID, ref ConnectorRef) {
	s.bindings[n] = append(s.bindings[n], ref)
}

func (s *state) unbind(n graph.NodeID, ref ConnectorRef) {
	refs := slices.DeleteFunc(s.bindings[n], func(r ConnectorRef) bool { return r == ref })
	if len(refs) == 0 {
		delete(s.bindings, n)
		return
	}
	s.bindings[n] = refs
}

// detach removes a piece's edges and bindings. Nodes left without edges
// disappear with their last edge.
func (s *state) detach(p *PlacedPiece) error {
	for _, re := range p.Edges {
		if err := s.graph.RemoveEdge(re.Edge); err != nil {
			return errors.Wrapf(err, "detach piece %s", p.ID)
		}
	}
	for _, c := range slices.Sorted(maps.Keys(p.Connectors)) {
		s.unbind(p.Connectors[c], ConnectorRef{Piece: p.ID, Connector: c})
	}
	p.Edges = nil
	p.Connectors = make(map[catalog.ConnectorID]graph.NodeID)
	return nil
}

func (s *state) sortedPieces() []*PlacedPiece {
	out := slices.Collect(maps.Values(s.pieces))
	slices.SortFunc(out, func(a, b *PlacedPiece) int { return graph.CompareIDs(a.ID, b.ID) })
	return out
}
