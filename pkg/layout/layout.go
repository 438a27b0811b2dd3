// Package layout places catalog pieces in the world and keeps the track
// graph consistent with them.
//
// A Layout owns its graph and piece registry. Every mutating operation
// works on a private copy of both and publishes it only when the whole
// operation succeeded; on error nothing observable changes. Reads return
// copies, so callers may hold them across later mutations.
//
// A Layout is not safe for concurrent use.
package layout

import (
	"go.uber.org/zap"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/graph"
	"github.com/chazu/railyard/pkg/logger"
)

// Layout is a set of placed pieces and the rail network they form.
type Layout struct {
	catalog *catalog.Catalog
	opts    Options
	log     *zap.SugaredLogger
	st      *state
}

// New creates an empty layout over cat.
func New(cat *catalog.Catalog, opts Options) *Layout {
	opts = opts.withDefaults()
	return &Layout{
		catalog: cat,
		opts:    opts,
		log:     logger.Named(opts.Logger, "layout"),
		st:      newState(),
	}
}

// Catalog returns the catalog the layout was built over.
func (l *Layout) Catalog() *catalog.Catalog { return l.catalog }

// Options returns the effective options.
func (l *Layout) Options() Options { return l.opts }

func (l *Layout) entry(id string) (catalog.Entry, error) {
	if l.catalog.Len() == 0 {
		return catalog.Entry{}, ErrEmptyCatalog
	}
	e, ok := l.catalog.Get(id)
	if !ok {
		return catalog.Entry{}, errors.Wrapf(ErrUnknownCatalogID, "%q", id)
	}
	return e, nil
}

// commit publishes s after a successful mutation.
func (l *Layout) commit(s *state) { l.st = s }

// PlacePiece places a new piece at the desired transform, snapping it onto
// a nearby free connector when one is in range.
func (l *Layout) PlacePiece(catalogID string, t geom.Transform) (PlacedPiece, error) {
	entry, err := l.entry(catalogID)
	if err != nil {
		l.log.Debugw("placement rejected", logger.FieldCatalogID, catalogID, logger.FieldReason, err)
		return PlacedPiece{}, err
	}
	s := l.st.clone()
	p, err := l.attach(s, entry, t, s.nextPieceID(), "")
	if err != nil {
		l.log.Debugw("placement rejected", logger.FieldCatalogID, catalogID, logger.FieldReason, err)
		return PlacedPiece{}, err
	}
	l.commit(s)
	l.log.Debugw("placed piece",
		logger.FieldPieceID, p.ID,
		logger.FieldCatalogID, catalogID,
		"position", p.Transform.Position.String(),
		"edges", len(p.Edges))
	return *p.clone(), nil
}

// attach resolves entry at t and wires the result into s under id.
func (l *Layout) attach(s *state, entry catalog.Entry, t geom.Transform, id graph.PieceID, switchState catalog.RouteID) (*PlacedPiece, error) {
	pl, err := l.resolve(s, entry, t)
	if err != nil {
		return nil, err
	}

	p := &PlacedPiece{
		ID:         id,
		CatalogID:  entry.ID,
		Transform:  pl.transform,
		Connectors: make(map[catalog.ConnectorID]graph.NodeID, len(entry.Connectors)),
	}
	if entry.IsSwitch() {
		p.SwitchState = entry.DefaultRoute
		if _, ok := entry.Route(switchState); ok {
			p.SwitchState = switchState
		}
	}

	for _, b := range pl.bindings {
		node := b.node
		if node.IsZero() {
			node = s.graph.CreateNode(b.position).ID
		}
		p.Connectors[b.connector] = node
		s.bind(node, ConnectorRef{Piece: id, Connector: b.connector})
	}

	for _, r := range entry.Routes {
		e, err := s.graph.AddEdge(p.Connectors[r.From], p.Connectors[r.To], r.LengthM, edgeCurve(r, pl.transform), id)
		if err != nil {
			return nil, errors.Wrapf(err, "route %s of %s", r.ID, entry.ID)
		}
		p.Edges = append(p.Edges, RouteEdge{Edge: e.ID, Route: r.ID})
	}

	s.pieces[id] = p
	return p, nil
}

func edgeCurve(r catalog.Route, t geom.Transform) graph.Curve {
	if r.Curve == nil {
		return graph.StraightCurve
	}
	return graph.Arc(r.Curve.RadiusM, r.Curve.AngleDeg, t.Apply(r.Center))
}

// MovePiece moves a piece to a new position, keeping its rotation.
func (l *Layout) MovePiece(id graph.PieceID, position geom.Vec3) (PlacedPiece, error) {
	return l.reposition(id, func(t geom.Transform) geom.Transform {
		t.Position = position
		return t
	})
}

// RotatePiece sets a piece's rotation, keeping its position.
func (l *Layout) RotatePiece(id graph.PieceID, rotation geom.Quat) (PlacedPiece, error) {
	return l.reposition(id, func(t geom.Transform) geom.Transform {
		t.Rotation = rotation
		return t
	})
}

// YawPiece turns a piece about world +Y by deltaDeg degrees.
func (l *Layout) YawPiece(id graph.PieceID, deltaDeg float64) (PlacedPiece, error) {
	return l.reposition(id, func(t geom.Transform) geom.Transform {
		t.Rotation = geom.YawQuat(deltaDeg).Mul(t.Rotation)
		return t
	})
}

// SetTransform moves and rotates a piece in one step.
func (l *Layout) SetTransform(id graph.PieceID, t geom.Transform) (PlacedPiece, error) {
	return l.reposition(id, func(geom.Transform) geom.Transform { return t })
}

// reposition detaches the piece, then re-runs placement at the new
// transform under the same id.
func (l *Layout) reposition(id graph.PieceID, next func(geom.Transform) geom.Transform) (PlacedPiece, error) {
	s := l.st.clone()
	old, ok := s.pieces[id]
	if !ok {
		return PlacedPiece{}, errors.Wrapf(ErrUnknownPiece, "piece %s", id)
	}
	entry, err := l.entry(old.CatalogID)
	if err != nil {
		return PlacedPiece{}, err
	}
	t := next(old.Transform)
	sw := old.SwitchState
	if err := s.detach(old); err != nil {
		return PlacedPiece{}, err
	}
	delete(s.pieces, id)

	p, err := l.attach(s, entry, t, id, sw)
	if err != nil {
		l.log.Debugw("move rejected", logger.FieldPieceID, id, logger.FieldReason, err)
		return PlacedPiece{}, err
	}
	l.commit(s)
	l.log.Debugw("moved piece", logger.FieldPieceID, id, "position", p.Transform.Position.String())
	return *p.clone(), nil
}

// RemovePiece deletes a piece and its edges. Nodes left without edges go
// with it.
func (l *Layout) RemovePiece(id graph.PieceID) error {
	s := l.st.clone()
	p, ok := s.pieces[id]
	if !ok {
		return errors.Wrapf(ErrUnknownPiece, "piece %s", id)
	}
	if err := s.detach(p); err != nil {
		return err
	}
	delete(s.pieces, id)
	l.commit(s)
	l.log.Debugw("removed piece", logger.FieldPieceID, id)
	return nil
}

// SetSwitchState selects the active route of a switch. Edges are not
// added or removed; only their traversability changes.
func (l *Layout) SetSwitchState(id graph.PieceID, route catalog.RouteID) error {
	p, ok := l.st.pieces[id]
	if !ok {
		return errors.Wrapf(ErrUnknownPiece, "piece %s", id)
	}
	entry, err := l.entry(p.CatalogID)
	if err != nil {
		return err
	}
	if !entry.IsSwitch() {
		return errors.Wrapf(ErrNotASwitch, "piece %s is a %s", id, entry.Type)
	}
	if _, ok := entry.Route(route); !ok {
		return errors.WithHintf(
			errors.Wrapf(ErrInvalidSwitchRoute, "route %q on piece %s", route, id),
			"valid routes: %v", entry.RouteIDs())
	}
	s := l.st.clone()
	s.pieces[id].SwitchState = route
	l.commit(s)
	l.log.Debugw("switched", logger.FieldPieceID, id, logger.FieldRoute, route)
	return nil
}

// Extend places a new piece so that its via connector meets the given
// free connector of an existing piece.
func (l *Layout) Extend(id graph.PieceID, conn catalog.ConnectorID, catalogID string, via catalog.ConnectorID) (PlacedPiece, error) {
	target, ok := l.st.pieces[id]
	if !ok {
		return PlacedPiece{}, errors.Wrapf(ErrUnknownPiece, "piece %s", id)
	}
	node, ok := target.Connectors[conn]
	if !ok {
		return PlacedPiece{}, errors.Wrapf(ErrUnknownConnector, "%s on piece %s", conn, id)
	}
	if refs := l.st.bindings[node]; len(refs) > 1 {
		return PlacedPiece{}, errors.Wrapf(ErrConnectorOccupied, "%s on piece %s", conn, id)
	}
	from, err := l.worldConnector(l.st, ConnectorRef{Piece: id, Connector: conn})
	if err != nil {
		return PlacedPiece{}, err
	}

	entry, err := l.entry(catalogID)
	if err != nil {
		return PlacedPiece{}, err
	}
	if via == "" {
		via = entry.Connectors[0].ID
	}
	ct, ok := entry.Connector(via)
	if !ok {
		return PlacedPiece{}, errors.Wrapf(ErrUnknownConnector, "%s on %s", via, catalogID)
	}

	base := target.Transform.Rotation
	rot := geom.RotationBetween(base.Rotate(ct.LocalForward), from.Forward.Neg()).Mul(base).Normalize()
	t := geom.Transform{
		Position: from.Position.Sub(rot.Rotate(ct.LocalPosition)),
		Rotation: rot,
	}
	return l.PlacePiece(catalogID, t)
}
