package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/railyard/pkg/geom"
)

// OO gauge dimensions, meters.
const (
	StandardStraightM = 0.168
	RadiusR1          = 0.371
	RadiusR2          = 0.438
	RadiusR4          = 0.572

	SwitchDivergeDeg  = 22.5
	CrossingAngleDeg  = 22.5
	CurvedSwitchInner = RadiusR1
	CurvedSwitchOuter = RadiusR4
)

var (
	straightLengths = []float64{0.042, 0.084, StandardStraightM, 0.336}
	curveRadii      = []struct {
		name   string
		radius float64
	}{
		{"r1", RadiusR1},
		{"r2", RadiusR2},
		{"r4", RadiusR4},
	}
	curveAngles = []float64{22.5, 45, 90}
	directions  = []geom.Direction{geom.Left, geom.Right}
)

// defaultEntries builds every family of the standard catalog.
func defaultEntries() []Entry {
	var entries []Entry
	for _, l := range straightLengths {
		entries = append(entries, straightEntry(l))
	}
	for _, r := range curveRadii {
		for _, a := range curveAngles {
			for _, d := range directions {
				entries = append(entries, curveEntry(r.name, r.radius, a, d))
			}
		}
	}
	for _, d := range directions {
		entries = append(entries, switchEntry(d))
	}
	for _, d := range directions {
		entries = append(entries, curvedSwitchEntry(d))
	}
	for _, d := range directions {
		entries = append(entries, crossingEntry(d))
	}
	return entries
}

func straightEntry(length float64) Entry {
	mm := int(length*1000 + 0.5)
	e := Entry{
		ID:          fmt.Sprintf("track.straight_%dmm", mm),
		DisplayName: fmt.Sprintf("Straight %d mm", mm),
		Type:        Straight,
		LengthM:     length,
		Connectors: []ConnectorTemplate{
			{ID: ConnA, LocalPosition: geom.Vec3{}, LocalForward: geom.UnitX.Neg()},
			{ID: ConnB, LocalPosition: geom.V(length, 0, 0), LocalForward: geom.UnitX},
		},
		Routes: []Route{straightRoute(RouteMain, ConnA, ConnB, length)},
	}
	return centered(e)
}

func curveEntry(name string, radius, angle float64, dir geom.Direction) Entry {
	params := CurveParams{RadiusM: radius, AngleDeg: angle, Direction: dir}
	e := Entry{
		ID:          fmt.Sprintf("track.curve_%s_%sdeg_%s", name, angleSlug(angle), dir),
		DisplayName: fmt.Sprintf("Curve %s %s° %s", strings.ToUpper(name), angleText(angle), dir),
		Type:        Curve,
		LengthM:     geom.ArcLength(radius, angle),
		Curve:       &params,
		Connectors: []ConnectorTemplate{
			{ID: ConnA, LocalPosition: geom.Vec3{}, LocalForward: geom.UnitX.Neg()},
			arcExit(ConnB, params),
		},
		Routes: []Route{arcRoute(RouteMain, ConnA, ConnB, params)},
	}
	return centered(e)
}

func switchEntry(dir geom.Direction) Entry {
	diverge := CurveParams{RadiusM: RadiusR2, AngleDeg: SwitchDivergeDeg, Direction: dir}
	e := Entry{
		ID:          fmt.Sprintf("track.switch_%s", dir),
		DisplayName: fmt.Sprintf("Switch %s", dir),
		Type:        Switch,
		LengthM:     StandardStraightM,
		Connectors: []ConnectorTemplate{
			{ID: ConnCommon, LocalPosition: geom.Vec3{}, LocalForward: geom.UnitX.Neg()},
			{ID: ConnStraight, LocalPosition: geom.V(StandardStraightM, 0, 0), LocalForward: geom.UnitX},
			arcExit(ConnDiverging, diverge),
		},
		Routes: []Route{
			straightRoute(RouteStraight, ConnCommon, ConnStraight, StandardStraightM),
			arcRoute(RouteDiverging, ConnCommon, ConnDiverging, diverge),
		},
		DefaultRoute: RouteStraight,
	}
	return centered(e)
}

func curvedSwitchEntry(dir geom.Direction) Entry {
	inner := CurveParams{RadiusM: CurvedSwitchInner, AngleDeg: 45, Direction: dir}
	outer := CurveParams{RadiusM: CurvedSwitchOuter, AngleDeg: 22.5, Direction: dir}
	e := Entry{
		ID:          fmt.Sprintf("track.curved_switch_%s", dir),
		DisplayName: fmt.Sprintf("Curved switch %s", dir),
		Type:        CurvedSwitch,
		LengthM:     geom.ArcLength(outer.RadiusM, outer.AngleDeg),
		Curve:       &outer,
		Connectors: []ConnectorTemplate{
			{ID: ConnCommon, LocalPosition: geom.Vec3{}, LocalForward: geom.UnitX.Neg()},
			arcExit(ConnInner, inner),
			arcExit(ConnOuter, outer),
		},
		Routes: []Route{
			arcRoute(RouteInner, ConnCommon, ConnInner, inner),
			arcRoute(RouteOuter, ConnCommon, ConnOuter, outer),
		},
		DefaultRoute: RouteOuter,
	}
	return centered(e)
}

// crossingEntry is a diamond: AB runs along X, CD crosses it at the
// crossing angle, both centered on the origin.
func crossingEntry(dir geom.Direction) Entry {
	half := StandardStraightM / 2
	u := geom.CurveExitDirection(CrossingAngleDeg, dir)
	e := Entry{
		ID:          fmt.Sprintf("track.diamond_crossing_%s", dir),
		DisplayName: fmt.Sprintf("Diamond crossing %s", dir),
		Type:        Crossing,
		LengthM:     StandardStraightM,
		Connectors: []ConnectorTemplate{
			{ID: ConnA, LocalPosition: geom.V(-half, 0, 0), LocalForward: geom.UnitX.Neg()},
			{ID: ConnB, LocalPosition: geom.V(half, 0, 0), LocalForward: geom.UnitX},
			{ID: ConnC, LocalPosition: u.Scale(-half), LocalForward: u.Neg()},
			{ID: ConnD, LocalPosition: u.Scale(half), LocalForward: u},
		},
		Routes: []Route{
			straightRoute(RouteAB, ConnA, ConnB, StandardStraightM),
			straightRoute(RouteCD, ConnC, ConnD, StandardStraightM),
		},
	}
	return centered(e)
}

func straightRoute(id RouteID, from, to ConnectorID, length float64) Route {
	return Route{ID: id, From: from, To: to, LengthM: length}
}

func arcRoute(id RouteID, from, to ConnectorID, p CurveParams) Route {
	c := p
	return Route{
		ID:      id,
		From:    from,
		To:      to,
		LengthM: geom.ArcLength(p.RadiusM, p.AngleDeg),
		Curve:   &c,
		Center:  geom.CurveCenter(p.RadiusM, p.Direction),
	}
}

// arcExit is the far connector of an arc starting at the origin heading +X.
func arcExit(id ConnectorID, p CurveParams) ConnectorTemplate {
	return ConnectorTemplate{
		ID:            id,
		LocalPosition: geom.CurveEndPosition(p.RadiusM, p.AngleDeg, p.Direction),
		LocalForward:  geom.CurveExitDirection(p.AngleDeg, p.Direction),
	}
}

// centered shifts connectors and arc centers so the bounding box of the
// connector positions is centered on the local origin.
func centered(e Entry) Entry {
	if len(e.Connectors) == 0 {
		return e
	}
	lo, hi := e.Connectors[0].LocalPosition, e.Connectors[0].LocalPosition
	for _, c := range e.Connectors[1:] {
		lo = lo.Min(c.LocalPosition)
		hi = hi.Max(c.LocalPosition)
	}
	offset := lo.Add(hi).Scale(0.5)
	for i := range e.Connectors {
		e.Connectors[i].LocalPosition = e.Connectors[i].LocalPosition.Sub(offset)
	}
	for i := range e.Routes {
		if e.Routes[i].Curve != nil {
			e.Routes[i].Center = e.Routes[i].Center.Sub(offset)
		}
	}
	return e
}

func angleSlug(a float64) string {
	return strings.ReplaceAll(angleText(a), ".", "_")
}

func angleText(a float64) string {
	return strconv.FormatFloat(a, 'f', -1, 64)
}
