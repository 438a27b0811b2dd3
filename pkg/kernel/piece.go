package kernel

import (
	"math"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/layout"
)

// Physical cross-section of a track piece.
const (
	TrackWidthM  = 0.040
	TrackHeightM = 0.012

	// Arcs are approximated by straight segments of at most this sweep.
	arcStepDeg = 7.5
	// Segments overlap by this much so the union has no seams.
	segmentOverlapM = 0.002
	// Largest marching cubes cell that still resolves the bed height.
	maxCellM = TrackHeightM / 4
)

// Segment is a straight run of track bed in a piece's local frame.
type Segment struct {
	From geom.Vec3
	To   geom.Vec3
}

// Length is the distance between the segment ends.
func (s Segment) Length() float64 { return s.From.Dist(s.To) }

// RouteSegments approximates every route of the entry by straight
// segments in the entry's local frame.
func RouteSegments(entry catalog.Entry) ([]Segment, error) {
	var segs []Segment
	for _, r := range entry.Routes {
		from, ok := entry.Connector(r.From)
		if !ok {
			return nil, errors.Newf("route %s of %s: unknown connector %s", r.ID, entry.ID, r.From)
		}
		to, ok := entry.Connector(r.To)
		if !ok {
			return nil, errors.Newf("route %s of %s: unknown connector %s", r.ID, entry.ID, r.To)
		}
		if r.Curve == nil {
			segs = append(segs, Segment{From: from.LocalPosition, To: to.LocalPosition})
			continue
		}
		segs = append(segs, arcSegments(from.LocalPosition, to.LocalPosition, r.Center, r.Curve.AngleDeg)...)
	}
	return segs, nil
}

// arcSegments walks the short way around center from a to b.
func arcSegments(a, b, center geom.Vec3, angleDeg float64) []Segment {
	n := int(math.Ceil(math.Abs(angleDeg) / arcStepDeg))
	if n < 1 {
		n = 1
	}
	ra := a.Sub(center)
	rb := b.Sub(center)
	radius := math.Hypot(ra.X, ra.Z)
	a0 := math.Atan2(ra.Z, ra.X)
	sweep := math.Atan2(rb.Z, rb.X) - a0
	for sweep > math.Pi {
		sweep -= 2 * math.Pi
	}
	for sweep <= -math.Pi {
		sweep += 2 * math.Pi
	}
	point := func(i int) geom.Vec3 {
		ang := a0 + sweep*float64(i)/float64(n)
		return geom.Vec3{
			X: center.X + radius*math.Cos(ang),
			Y: a.Y + (b.Y-a.Y)*float64(i)/float64(n),
			Z: center.Z + radius*math.Sin(ang),
		}
	}
	segs := make([]Segment, 0, n)
	prev := a
	for i := 1; i <= n; i++ {
		next := point(i)
		if i == n {
			next = b
		}
		segs = append(segs, Segment{From: prev, To: next})
		prev = next
	}
	return segs
}

// segmentSolid is a track-bed box lying along the segment with its
// underside at the segment height.
func segmentSolid(k Kernel, s Segment) (Solid, error) {
	d := s.To.Sub(s.From)
	box, err := k.Box(geom.V(s.Length()+segmentOverlapM, TrackHeightM, TrackWidthM))
	if err != nil {
		return nil, errors.Wrap(err, "segment box")
	}
	yaw := geom.RadToDeg(math.Atan2(-d.Z, d.X))
	mid := s.From.Lerp(s.To, 0.5).Add(geom.V(0, TrackHeightM/2, 0))
	return k.Translate(k.Rotate(box, geom.YawQuat(yaw)), mid), nil
}

// PieceSolid builds the body of a catalog entry placed at t.
func PieceSolid(k Kernel, entry catalog.Entry, t geom.Transform) (Solid, error) {
	segs, err := RouteSegments(entry)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, errors.Newf("%s has no routes", entry.ID)
	}
	solids := make([]Solid, 0, len(segs))
	for _, s := range segs {
		if s.Length() == 0 {
			continue
		}
		solid, err := segmentSolid(k, s)
		if err != nil {
			return nil, errors.Wrapf(err, "piece %s", entry.ID)
		}
		solids = append(solids, solid)
	}
	if len(solids) == 0 {
		return nil, errors.Newf("%s has only degenerate routes", entry.ID)
	}
	local := k.Union(solids...)
	return k.Translate(k.Rotate(local, t.Rotation), t.Position), nil
}

// Footprinter computes piece footprints from kernel solids. It satisfies
// layout.Footprinter.
type Footprinter struct {
	Kernel Kernel
}

var _ layout.Footprinter = Footprinter{}

// Footprint returns the world bounding box of the piece body.
func (f Footprinter) Footprint(entry catalog.Entry, t geom.Transform) (layout.Box, error) {
	s, err := PieceSolid(f.Kernel, entry, t)
	if err != nil {
		return layout.Box{}, err
	}
	min, max := s.BoundingBox()
	return layout.Box{Min: min, Max: max}, nil
}

// MeshCells raises cells so that no cell is coarser than the track bed
// can tolerate.
func MeshCells(s Solid, cells int) int {
	min, max := s.BoundingBox()
	size := max.Sub(min)
	longest := math.Max(size.X, math.Max(size.Y, size.Z))
	if need := int(math.Ceil(longest / maxCellM)); need > cells {
		return need
	}
	return cells
}

// PieceMesh tessellates one placed piece.
func PieceMesh(k Kernel, entry catalog.Entry, p layout.PlacedPiece, cells int) (*Mesh, error) {
	s, err := PieceSolid(k, entry, p.Transform)
	if err != nil {
		return nil, err
	}
	m, err := k.ToMesh(s, MeshCells(s, cells))
	if err != nil {
		return nil, errors.Wrapf(err, "tessellate %s", p.ID)
	}
	m.PieceID = string(p.ID)
	m.CatalogID = p.CatalogID
	return m, nil
}
