package layout

import (
	"math"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/graph"
)

// binding is the node a connector will use: an existing node, or a new
// one at position when node is empty.
type binding struct {
	connector catalog.ConnectorID
	node      graph.NodeID
	position  geom.Vec3
}

// placement is the outcome of resolving a tentative transform against the
// current graph. Computing it never mutates state.
type placement struct {
	transform  geom.Transform
	snapped    bool
	anchorConn catalog.ConnectorID
	anchorNode graph.NodeID
	connectors []WorldConnector
	bindings   []binding
}

// resolve runs the snap search for entry at the desired transform.
//
// Connectors are tried in template order. The first one with a free rail
// end inside the search radius, facing it within the search angle, pins
// the piece: the whole piece is rotated and translated rigidly so that
// connector sits exactly on the node, facing exactly against it. Every
// connector is then bound to the node within snap tolerance, or to a new
// node.
func (l *Layout) resolve(s *state, entry catalog.Entry, desired geom.Transform) (*placement, error) {
	t := desired.Normalize()
	wcs := WorldConnectors(entry, t)
	p := &placement{transform: t}

	if i, node, fwd, ok := l.findAnchor(s, wcs); ok {
		ct := entry.Connectors[i]
		rot := geom.RotationBetween(wcs[i].Forward, fwd.Neg()).Mul(t.Rotation).Normalize()
		p.transform = geom.Transform{
			Position: node.Position.Sub(rot.Rotate(ct.LocalPosition)),
			Rotation: rot,
		}
		p.snapped = true
		p.anchorConn = ct.ID
		p.anchorNode = node.ID
		wcs = WorldConnectors(entry, p.transform)
	}
	p.connectors = wcs

	if l.opts.Bounds != nil {
		box, err := l.footprint(entry, p.transform)
		if err != nil {
			return nil, err
		}
		if !l.opts.Bounds.Contains(box) {
			return nil, errors.WithDetailf(
				errors.Wrapf(ErrOutOfBounds, "%s at %s", entry.ID, p.transform.Position),
				"footprint %s..%s", box.Min, box.Max)
		}
	}

	tol := l.opts.SnapToleranceM
	claimed := make(map[graph.NodeID]catalog.ConnectorID)
	var fresh []binding
	for _, wc := range wcs {
		if n, ok := s.graph.FindNearbyNode(wc.Position, tol); ok {
			if other, dup := claimed[n.ID]; dup {
				return nil, errors.Wrapf(ErrContradictorySnap,
					"connectors %s and %s of %s both land on node %s", other, wc.ID, entry.ID, n.ID)
			}
			if err := l.checkJoin(s, n, wc); err != nil {
				return nil, err
			}
			claimed[n.ID] = wc.ID
			p.bindings = append(p.bindings, binding{connector: wc.ID, node: n.ID, position: n.Position})
			continue
		}
		for _, f := range fresh {
			if f.position.Dist(wc.Position) < tol {
				return nil, errors.Wrapf(ErrContradictorySnap,
					"connectors %s and %s of %s coincide", f.connector, wc.ID, entry.ID)
			}
		}
		b := binding{connector: wc.ID, position: wc.Position}
		fresh = append(fresh, b)
		p.bindings = append(p.bindings, b)
	}
	return p, nil
}

// findAnchor picks the connector that drives alignment and the open rail
// end it snaps to.
func (l *Layout) findAnchor(s *state, wcs []WorldConnector) (int, *graph.Node, geom.Vec3, bool) {
	minDot := -math.Cos(geom.DegToRad(l.opts.SnapSearchAngleDeg))
	for i, wc := range wcs {
		for _, n := range s.graph.NodesWithin(wc.Position, l.opts.SnapSearchRadiusM) {
			refs := s.bindings[n.ID]
			if len(refs) != 1 {
				continue
			}
			fwd, err := l.connectorForward(s, refs[0])
			if err != nil {
				continue
			}
			if wc.Forward.Dot(fwd) <= minDot {
				return i, n, fwd, true
			}
		}
	}
	return 0, nil, geom.Vec3{}, false
}

// checkJoin verifies that wc may fuse into n: n must be an open rail end
// whose connector faces wc.
func (l *Layout) checkJoin(s *state, n *graph.Node, wc WorldConnector) error {
	refs := s.bindings[n.ID]
	if len(refs) != 1 {
		return errors.Wrapf(ErrContradictorySnap,
			"connector %s lands on node %s which already joins %d connectors", wc.ID, n.ID, len(refs))
	}
	fwd, err := l.connectorForward(s, refs[0])
	if err != nil {
		return err
	}
	if dot := wc.Forward.Dot(fwd); dot > l.opts.AntiParallelDot {
		return errors.WithDetailf(
			errors.Wrapf(ErrContradictorySnap,
				"connector %s lands on node %s without facing %s.%s", wc.ID, n.ID, refs[0].Piece, refs[0].Connector),
			"forward dot product %.5f, need at most %.5f", dot, l.opts.AntiParallelDot)
	}
	return nil
}

// connectorForward is the world forward of a bound connector.
func (l *Layout) connectorForward(s *state, ref ConnectorRef) (geom.Vec3, error) {
	wc, err := l.worldConnector(s, ref)
	if err != nil {
		return geom.Vec3{}, err
	}
	return wc.Forward, nil
}

func (l *Layout) worldConnector(s *state, ref ConnectorRef) (WorldConnector, error) {
	p, ok := s.pieces[ref.Piece]
	if !ok {
		return WorldConnector{}, errors.Wrapf(ErrUnknownPiece, "piece %s", ref.Piece)
	}
	entry, err := l.entry(p.CatalogID)
	if err != nil {
		return WorldConnector{}, err
	}
	ct, ok := entry.Connector(ref.Connector)
	if !ok {
		return WorldConnector{}, errors.Wrapf(ErrUnknownConnector, "%s on piece %s", ref.Connector, ref.Piece)
	}
	return worldConnector(ct, p.Transform), nil
}

func (l *Layout) footprint(entry catalog.Entry, t geom.Transform) (Box, error) {
	if l.opts.Footprint == nil {
		return connectorBox(entry, t), nil
	}
	box, err := l.opts.Footprint.Footprint(entry, t)
	if err != nil {
		return Box{}, errors.Wrapf(err, "footprint of %s", entry.ID)
	}
	return box, nil
}

// Preview is the result of a dry-run placement.
type Preview struct {
	Transform       geom.Transform
	Snapped         bool
	AnchorConnector catalog.ConnectorID
	AnchorNode      graph.NodeID
	Connectors      []PreviewConnector
}

// PreviewConnector is a connector of the previewed piece and the existing
// node it would join, if any.
type PreviewConnector struct {
	WorldConnector
	Node graph.NodeID
}

// SnapPreview reports where a piece would land without placing it. An
// error means PlacePiece would reject the same call.
func (l *Layout) SnapPreview(catalogID string, t geom.Transform) (Preview, error) {
	entry, err := l.entry(catalogID)
	if err != nil {
		return Preview{}, err
	}
	p, err := l.resolve(l.st, entry, t)
	if err != nil {
		return Preview{}, err
	}
	pv := Preview{
		Transform:       p.transform,
		Snapped:         p.snapped,
		AnchorConnector: p.anchorConn,
		AnchorNode:      p.anchorNode,
	}
	for i, wc := range p.connectors {
		pv.Connectors = append(pv.Connectors, PreviewConnector{WorldConnector: wc, Node: p.bindings[i].node})
	}
	return pv, nil
}
