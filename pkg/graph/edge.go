package graph

import "github.com/chazu/railyard/pkg/geom"

// CurveKind distinguishes straight segments from circular arcs.
type CurveKind string

const (
	CurveStraight CurveKind = "straight"
	CurveArc      CurveKind = "arc"
)

// Curve describes the shape of an edge. Radius, angle and center are only
// meaningful for arcs; Center is in world space.
type Curve struct {
	Kind     CurveKind
	RadiusM  float64
	AngleDeg float64
	Center   geom.Vec3
}

// StraightCurve is the descriptor of every straight edge.
var StraightCurve = Curve{Kind: CurveStraight}

// Arc builds an arc descriptor.
func Arc(radiusM, angleDeg float64, center geom.Vec3) Curve {
	return Curve{Kind: CurveArc, RadiusM: radiusM, AngleDeg: angleDeg, Center: center}
}

// Edge is a traversable track segment owned by exactly one placed piece.
type Edge struct {
	ID      EdgeID
	From    NodeID
	To      NodeID
	LengthM float64
	Curve   Curve
	Owner   PieceID
}

// Other returns the endpoint opposite n, or "" if n is not an endpoint.
func (e *Edge) Other(n NodeID) NodeID {
	switch n {
	case e.From:
		return e.To
	case e.To:
		return e.From
	}
	return ""
}

// Touches reports whether n is an endpoint of e.
func (e *Edge) Touches(n NodeID) bool { return e.From == n || e.To == n }
