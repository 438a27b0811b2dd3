package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/railyard/pkg/geom"
)

const eps = 1e-9

func TestStandardCatalogFamilies(t *testing.T) {
	c := New()
	assert.Len(t, c.ByType(Straight), 4)
	assert.Len(t, c.ByType(Curve), 18)
	assert.Len(t, c.ByType(Switch), 2)
	assert.Len(t, c.ByType(CurvedSwitch), 2)
	assert.Len(t, c.ByType(Crossing), 2)
	assert.Equal(t, 28, c.Len())
	assert.Len(t, c.IDs(), 28)
}

func TestStraight168(t *testing.T) {
	e, ok := New().Get("track.straight_168mm")
	require.True(t, ok)
	assert.Equal(t, Straight, e.Type)
	assert.InDelta(t, 0.168, e.LengthM, eps)

	a, _ := e.Connector(ConnA)
	b, _ := e.Connector(ConnB)
	assert.True(t, a.LocalPosition.ApproxEqual(geom.V(-0.084, 0, 0), eps))
	assert.True(t, b.LocalPosition.ApproxEqual(geom.V(0.084, 0, 0), eps))
	assert.True(t, a.LocalForward.ApproxEqual(geom.V(-1, 0, 0), eps))
	assert.True(t, b.LocalForward.ApproxEqual(geom.V(1, 0, 0), eps))
}

func TestCurveConnectorsFollowFormulas(t *testing.T) {
	e, ok := New().Get("track.curve_r1_45deg_left")
	require.True(t, ok)
	assert.InDelta(t, geom.ArcLength(0.371, 45), e.LengthM, eps)
	require.NotNil(t, e.Curve)
	assert.Equal(t, geom.Left, e.Curve.Direction)

	a, _ := e.Connector(ConnA)
	b, _ := e.Connector(ConnB)
	chord := b.LocalPosition.Sub(a.LocalPosition)
	assert.True(t, chord.ApproxEqual(geom.CurveEndPosition(0.371, 45, geom.Left), eps))
	assert.True(t, b.LocalForward.ApproxEqual(geom.CurveExitDirection(45, geom.Left), eps))

	// Connectors are centered about the origin.
	mid := a.LocalPosition.Add(b.LocalPosition).Scale(0.5)
	assert.True(t, mid.ApproxEqual(geom.Vec3{}, eps))

	// Both ends lie on the arc around the route center.
	r, ok := e.Route(RouteMain)
	require.True(t, ok)
	assert.InDelta(t, 0.371, a.LocalPosition.Dist(r.Center), eps)
	assert.InDelta(t, 0.371, b.LocalPosition.Dist(r.Center), eps)
}

func TestCurveIDsForFractionalAngles(t *testing.T) {
	c := New()
	assert.True(t, c.Has("track.curve_r2_22_5deg_right"))
	assert.True(t, c.Has("track.curve_r4_90deg_left"))
	assert.False(t, c.Has("track.curve_r3_45deg_left"))
}

func TestSwitchRoutes(t *testing.T) {
	e, ok := New().Get("track.switch_left")
	require.True(t, ok)
	assert.True(t, e.IsSwitch())
	assert.Equal(t, RouteStraight, e.DefaultRoute)
	assert.ElementsMatch(t, []RouteID{RouteStraight, RouteDiverging}, e.RouteIDs())
	assert.Equal(t, []ConnectorID{ConnCommon, ConnStraight, ConnDiverging}, e.ConnectorIDs())

	div, _ := e.Route(RouteDiverging)
	assert.Equal(t, ConnCommon, div.From)
	assert.Equal(t, ConnDiverging, div.To)
	assert.InDelta(t, geom.ArcLength(RadiusR2, SwitchDivergeDeg), div.LengthM, eps)
}

func TestCurvedSwitchRoutesShareCommon(t *testing.T) {
	e, ok := New().Get("track.curved_switch_right")
	require.True(t, ok)
	assert.Equal(t, RouteOuter, e.DefaultRoute)
	for _, r := range e.Routes {
		assert.Equal(t, ConnCommon, r.From)
		require.NotNil(t, r.Curve)
		assert.Equal(t, geom.Right, r.Curve.Direction)
	}
	inner, _ := e.Connector(ConnInner)
	outer, _ := e.Connector(ConnOuter)
	assert.Greater(t, inner.LocalPosition.Dist(outer.LocalPosition), 0.01)
}

func TestCrossingRoutesIntersectAtCenter(t *testing.T) {
	e, ok := New().Get("track.diamond_crossing_left")
	require.True(t, ok)
	assert.Empty(t, e.DefaultRoute)
	assert.Len(t, e.Routes, 2)

	c, _ := e.Connector(ConnC)
	d, _ := e.Connector(ConnD)
	assert.True(t, c.LocalPosition.Add(d.LocalPosition).ApproxEqual(geom.Vec3{}, eps))
	angle := math.Acos(d.LocalForward.Dot(geom.UnitX))
	assert.InDelta(t, geom.DegToRad(CrossingAngleDeg), angle, eps)
}

func TestEveryEntryIsConsistent(t *testing.T) {
	for _, e := range New().All() {
		t.Run(e.ID, func(t *testing.T) {
			require.Len(t, e.Connectors, e.Type.ConnectorCount())
			for _, r := range e.Routes {
				from, ok := e.Connector(r.From)
				require.True(t, ok)
				to, ok := e.Connector(r.To)
				require.True(t, ok)
				if r.Curve == nil {
					assert.InDelta(t, r.LengthM, from.LocalPosition.Dist(to.LocalPosition), 1e-9)
					assert.InDelta(t, -1, from.LocalForward.Dot(to.LocalForward), 1e-9)
					continue
				}
				assert.InDelta(t, r.Curve.RadiusM, from.LocalPosition.Dist(r.Center), 1e-9)
				assert.InDelta(t, r.Curve.RadiusM, to.LocalPosition.Dist(r.Center), 1e-9)
			}
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	e, _ := c.Get("track.curve_r1_45deg_left")
	e.Connectors[0].LocalPosition = geom.V(9, 9, 9)
	e.Curve.RadiusM = 9

	again, _ := c.Get("track.curve_r1_45deg_left")
	assert.NotEqual(t, 9.0, again.Connectors[0].LocalPosition.X)
	assert.InDelta(t, 0.371, again.Curve.RadiusM, eps)
}

func TestNewFromEntriesValidation(t *testing.T) {
	good := straightEntry(0.1)

	_, err := NewFromEntries(good, good)
	assert.Error(t, err, "duplicate id")

	bad := straightEntry(0.1)
	bad.Connectors = bad.Connectors[:1]
	_, err = NewFromEntries(bad)
	assert.Error(t, err, "connector count")

	sw := switchEntry(geom.Left)
	sw.DefaultRoute = "NOPE"
	_, err = NewFromEntries(sw)
	assert.Error(t, err, "missing default route")

	c, err := NewFromEntries()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("track.straight_168mm")
	assert.False(t, ok)
}

func TestParsePieceType(t *testing.T) {
	for _, pt := range []PieceType{Straight, Curve, Switch, CurvedSwitch, Crossing} {
		got, err := ParsePieceType(pt.String())
		require.NoError(t, err)
		assert.Equal(t, pt, got)
	}
	_, err := ParsePieceType("turntable")
	assert.Error(t, err)
}
