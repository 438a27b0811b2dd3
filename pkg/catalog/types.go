package catalog

import (
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
)

// PieceType is the family a catalog entry belongs to.
type PieceType int

const (
	Straight PieceType = iota
	Curve
	Switch
	CurvedSwitch
	Crossing
)

var pieceTypeNames = map[PieceType]string{
	Straight:     "straight",
	Curve:        "curve",
	Switch:       "switch",
	CurvedSwitch: "curvedSwitch",
	Crossing:     "crossing",
}

func (t PieceType) String() string {
	if s, ok := pieceTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParsePieceType is the inverse of String.
func ParsePieceType(s string) (PieceType, error) {
	for t, name := range pieceTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, errors.Newf("unknown piece type %q", s)
}

func (t PieceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *PieceType) UnmarshalText(b []byte) error {
	v, err := ParsePieceType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ConnectorCount is the number of rail ends a piece of this type has.
func (t PieceType) ConnectorCount() int {
	switch t {
	case Straight, Curve:
		return 2
	case Switch, CurvedSwitch:
		return 3
	case Crossing:
		return 4
	}
	return 0
}

// IsSwitch reports whether pieces of this type carry a switch state.
func (t PieceType) IsSwitch() bool { return t == Switch || t == CurvedSwitch }

// ConnectorID names a rail end on a piece.
type ConnectorID string

const (
	ConnA         ConnectorID = "A"
	ConnB         ConnectorID = "B"
	ConnC         ConnectorID = "C"
	ConnD         ConnectorID = "D"
	ConnCommon    ConnectorID = "COMMON"
	ConnStraight  ConnectorID = "STRAIGHT"
	ConnDiverging ConnectorID = "DIVERGING"
	ConnInner     ConnectorID = "INNER"
	ConnOuter     ConnectorID = "OUTER"
)

// RouteID names a traversable connector pair on a piece. Switch states are
// route ids.
type RouteID string

const (
	RouteMain      RouteID = "MAIN"
	RouteStraight  RouteID = "STRAIGHT"
	RouteDiverging RouteID = "DIVERGING"
	RouteInner     RouteID = "INNER"
	RouteOuter     RouteID = "OUTER"
	RouteAB        RouteID = "AB"
	RouteCD        RouteID = "CD"
)

// ConnectorTemplate is a rail end in piece-local space. LocalForward points
// out of the piece.
type ConnectorTemplate struct {
	ID            ConnectorID `json:"id"`
	LocalPosition geom.Vec3   `json:"localPosition"`
	LocalForward  geom.Vec3   `json:"localForward"`
}

// CurveParams describes a circular arc.
type CurveParams struct {
	RadiusM   float64        `json:"radiusM"`
	AngleDeg  float64        `json:"angleDeg"`
	Direction geom.Direction `json:"direction"`
}

// Route is one traversable path through a piece. Curve is nil for straight
// routes; Center is the piece-local arc center otherwise.
type Route struct {
	ID      RouteID      `json:"id"`
	From    ConnectorID  `json:"from"`
	To      ConnectorID  `json:"to"`
	LengthM float64      `json:"lengthM"`
	Curve   *CurveParams `json:"curve,omitempty"`
	Center  geom.Vec3    `json:"center"`
}

// Entry is an immutable piece template.
type Entry struct {
	ID           string              `json:"id"`
	DisplayName  string              `json:"displayName"`
	Type         PieceType           `json:"pieceType"`
	LengthM      float64             `json:"lengthM"`
	Connectors   []ConnectorTemplate `json:"connectorTemplates"`
	Curve        *CurveParams        `json:"curve,omitempty"`
	Routes       []Route             `json:"routes"`
	DefaultRoute RouteID             `json:"defaultRoute,omitempty"`
}

// Connector looks up a connector template by id.
func (e Entry) Connector(id ConnectorID) (ConnectorTemplate, bool) {
	for _, c := range e.Connectors {
		if c.ID == id {
			return c, true
		}
	}
	return ConnectorTemplate{}, false
}

// ConnectorIDs lists connector ids in template order.
func (e Entry) ConnectorIDs() []ConnectorID {
	ids := make([]ConnectorID, len(e.Connectors))
	for i, c := range e.Connectors {
		ids[i] = c.ID
	}
	return ids
}

// Route looks up a route by id.
func (e Entry) Route(id RouteID) (Route, bool) {
	for _, r := range e.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

// RouteIDs lists route ids in definition order.
func (e Entry) RouteIDs() []RouteID {
	ids := make([]RouteID, len(e.Routes))
	for i, r := range e.Routes {
		ids[i] = r.ID
	}
	return ids
}

// IsSwitch reports whether placed pieces of this entry carry a switch state.
func (e Entry) IsSwitch() bool { return e.Type.IsSwitch() }

func (e Entry) clone() Entry {
	out := e
	out.Connectors = append([]ConnectorTemplate(nil), e.Connectors...)
	out.Routes = make([]Route, len(e.Routes))
	for i, r := range e.Routes {
		out.Routes[i] = r
		if r.Curve != nil {
			c := *r.Curve
			out.Routes[i].Curve = &c
		}
	}
	if e.Curve != nil {
		c := *e.Curve
		out.Curve = &c
	}
	return out
}
