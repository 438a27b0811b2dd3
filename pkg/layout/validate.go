package layout

import (
	"fmt"

	"github.com/chazu/railyard/pkg/graph"
)

// Validate checks the graph's referential integrity and the joints between
// pieces: every bound connector sits on its node within tolerance, joined
// connectors face each other, and piece edge lists agree with the graph.
func (l *Layout) Validate() graph.ValidationResult {
	return l.validate(l.st)
}

func (l *Layout) validate(s *state) graph.ValidationResult {
	r := graph.Validate(s.graph)
	r.Add(l.validateJoints(s)...)
	r.Add(l.validatePieces(s)...)
	return r
}

func (l *Layout) validateJoints(s *state) []graph.ValidationError {
	var errs []graph.ValidationError
	for _, n := range s.graph.Nodes() {
		refs := s.bindings[n.ID]
		if len(refs) == 0 || len(refs) > 2 {
			errs = append(errs, graph.ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("bound to %d connectors, want 1 or 2", len(refs)),
				Severity: graph.SeverityError,
			})
			continue
		}
		wcs := make([]WorldConnector, 0, len(refs))
		for _, ref := range refs {
			wc, err := l.worldConnector(s, ref)
			if err != nil {
				errs = append(errs, graph.ValidationError{
					NodeID:   n.ID,
					Message:  err.Error(),
					Severity: graph.SeverityError,
				})
				continue
			}
			if d := wc.Position.Dist(n.Position); d > l.opts.SnapToleranceM {
				errs = append(errs, graph.ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("connector %s.%s is %.4f m from its node", ref.Piece, ref.Connector, d),
					Severity: graph.SeverityError,
				})
			}
			wcs = append(wcs, wc)
		}
		if len(wcs) == 2 {
			if dot := wcs[0].Forward.Dot(wcs[1].Forward); dot > l.opts.AntiParallelDot {
				errs = append(errs, graph.ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("joined connectors are not anti-parallel (dot %.5f)", dot),
					Severity: graph.SeverityError,
				})
			}
		}
	}
	errs = append(errs, l.validateOpenEnds(s)...)
	for nid := range s.bindings {
		if _, ok := s.graph.Node(nid); !ok {
			errs = append(errs, graph.ValidationError{
				NodeID:   nid,
				Message:  "connectors bound to a node that does not exist",
				Severity: graph.SeverityError,
			})
		}
	}
	return errs
}

// validateOpenEnds reports open rail ends that coincide with, and face,
// another open end on a different node.
func (l *Layout) validateOpenEnds(s *state) []graph.ValidationError {
	var errs []graph.ValidationError
	for _, n := range s.graph.Nodes() {
		refs := s.bindings[n.ID]
		if len(refs) != 1 {
			continue
		}
		wc, err := l.worldConnector(s, refs[0])
		if err != nil {
			continue
		}
		for _, other := range s.graph.NodesWithin(wc.Position, l.opts.SnapToleranceM) {
			if graph.CompareIDs(other.ID, n.ID) <= 0 || !l.facesOpenEnd(s, other.ID, refs[0], wc) {
				continue
			}
			errs = append(errs, graph.ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("open end faces open end at node %s but is not joined to it", other.ID),
				Severity: graph.SeverityError,
			})
		}
	}
	return errs
}

// facesOpenEnd reports whether node is an open rail end of another piece
// whose connector is anti-parallel to wc, the connector ref.
func (l *Layout) facesOpenEnd(s *state, node graph.NodeID, ref ConnectorRef, wc WorldConnector) bool {
	refs := s.bindings[node]
	if len(refs) != 1 || refs[0].Piece == ref.Piece {
		return false
	}
	fwd, err := l.connectorForward(s, refs[0])
	if err != nil {
		return false
	}
	return wc.Forward.Dot(fwd) <= l.opts.AntiParallelDot
}

func (l *Layout) validatePieces(s *state) []graph.ValidationError {
	var errs []graph.ValidationError
	owned := make(map[graph.EdgeID]graph.PieceID)
	for _, p := range s.sortedPieces() {
		entry, err := l.entry(p.CatalogID)
		if err != nil {
			errs = append(errs, graph.ValidationError{
				Message:  fmt.Sprintf("piece %s: %v", p.ID, err),
				Severity: graph.SeverityError,
			})
			continue
		}
		if len(p.Connectors) != len(entry.Connectors) {
			errs = append(errs, graph.ValidationError{
				Message:  fmt.Sprintf("piece %s binds %d of %d connectors", p.ID, len(p.Connectors), len(entry.Connectors)),
				Severity: graph.SeverityWarning,
			})
		}
		for _, re := range p.Edges {
			owned[re.Edge] = p.ID
			e, ok := s.graph.Edge(re.Edge)
			if !ok {
				errs = append(errs, graph.ValidationError{
					EdgeID:   re.Edge,
					Message:  fmt.Sprintf("listed by piece %s but missing from the graph", p.ID),
					Severity: graph.SeverityError,
				})
				continue
			}
			if e.Owner != p.ID {
				errs = append(errs, graph.ValidationError{
					EdgeID:   re.Edge,
					Message:  fmt.Sprintf("owned by %s but listed by piece %s", e.Owner, p.ID),
					Severity: graph.SeverityError,
				})
			}
		}
		if entry.IsSwitch() {
			if _, ok := entry.Route(p.SwitchState); !ok {
				errs = append(errs, graph.ValidationError{
					Message:  fmt.Sprintf("piece %s has invalid switch state %q", p.ID, p.SwitchState),
					Severity: graph.SeverityError,
				})
			}
		}
	}
	for _, e := range s.graph.Edges() {
		if _, ok := owned[e.ID]; !ok {
			errs = append(errs, graph.ValidationError{
				EdgeID:   e.ID,
				Message:  fmt.Sprintf("not listed by any piece (owner %s)", e.Owner),
				Severity: graph.SeverityError,
			})
		}
	}
	return errs
}
