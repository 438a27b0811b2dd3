package layout

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/graph"
)

// sampleLayout is a switch with a straight on each leg and a curve on the
// common end, offset along Z.
func sampleLayout(t *testing.T, z float64) *Layout {
	t.Helper()
	l := newLayout(t)
	sw := place(t, l, switchLeft, 0, z, 0)
	_, err := l.Extend(sw.ID, catalog.ConnStraight, straight168, catalog.ConnA)
	require.NoError(t, err)
	_, err = l.Extend(sw.ID, catalog.ConnDiverging, straight168, catalog.ConnA)
	require.NoError(t, err)
	_, err = l.Extend(sw.ID, catalog.ConnCommon, curveR1_45L, catalog.ConnB)
	require.NoError(t, err)
	require.NoError(t, l.SetSwitchState(sw.ID, catalog.RouteDiverging))
	return l
}

// shape describes graph connectivity by endpoint positions, independent of
// ids.
func shape(l *Layout) []string {
	g := l.Graph()
	var out []string
	for _, e := range g.Edges() {
		a, _ := g.Node(e.From)
		b, _ := g.Node(e.To)
		pa, pb := key(a.Position), key(b.Position)
		if pb < pa {
			pa, pb = pb, pa
		}
		out = append(out, fmt.Sprintf("%s-%s:%.6f", pa, pb, e.LengthM))
	}
	slices.Sort(out)
	return out
}

func key(v geom.Vec3) string {
	r := func(f float64) float64 { return math.Round(f*1e6) / 1e6 }
	return fmt.Sprintf("(%.6f,%.6f,%.6f)", r(v.X), r(v.Y), r(v.Z))
}

func TestExportImportRoundTrip(t *testing.T) {
	src := sampleLayout(t, 0)
	doc := src.Export()
	assert.Len(t, doc.Pieces, 4)
	assert.Len(t, doc.GraphNodes, src.Graph().NodeCount())
	assert.Len(t, doc.GraphEdges, src.Graph().EdgeCount())

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	decoded, err := Decode(&buf)
	require.NoError(t, err)

	dst := newLayout(t)
	rep, err := dst.Import(decoded)
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)
	assert.Zero(t, rep.Remapped)
	assert.Empty(t, rep.Rebuilt)
	assert.Equal(t, 4, rep.Pieces)

	assert.Equal(t, doc, dst.Export())
	assert.Equal(t, shape(src), shape(dst))
	assert.Equal(t, src.Stats(), dst.Stats())
	requireValid(t, dst)
}

func TestImportedLayoutKeepsWorking(t *testing.T) {
	dst := newLayout(t)
	_, err := dst.Import(sampleLayout(t, 0).Export())
	require.NoError(t, err)

	p := place(t, dst, straight168, 5, 5, 0)
	assert.Equal(t, "p5", string(p.ID), "piece ids continue after imported ones")
	requireValid(t, dst)
}

func TestImportRemapsCollidingIDs(t *testing.T) {
	l := sampleLayout(t, 0)
	before := shape(l)
	other := sampleLayout(t, 1)

	rep, err := l.Import(other.Export())
	require.NoError(t, err)
	assert.Positive(t, rep.Remapped)
	assert.Len(t, l.Pieces(), 8)

	want := append(slices.Clone(before), shape(other)...)
	slices.Sort(want)
	assert.Equal(t, want, shape(l))
	requireValid(t, l)
}

func TestImportFusesFacingOpenEnds(t *testing.T) {
	src := newLayout(t)
	place(t, src, straight168, 0.084, 0, 0)

	dst := newLayout(t)
	a := place(t, dst, straight168, -0.084, 0, 0)

	rep, err := dst.Import(src.Export())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Pieces)
	assert.Equal(t, 1, rep.Fused)
	assert.Empty(t, rep.Rebuilt)

	nodes, edges := counts(dst)
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)
	st := dst.Stats()
	assert.Equal(t, 2, st.OpenEnds)
	assert.Equal(t, 1, st.Sections)

	pieces := dst.Pieces()
	require.Len(t, pieces, 2)
	b := pieces[1]
	assert.Equal(t, a.Connectors[catalog.ConnB], b.Connectors[catalog.ConnA])
	requireValid(t, dst)

	placed := newLayout(t)
	place(t, placed, straight168, -0.084, 0, 0)
	place(t, placed, straight168, 0.084, 0, 0)
	assert.Equal(t, shape(placed), shape(dst))
}

func TestValidateReportsUnjoinedFacingEnds(t *testing.T) {
	l := newLayout(t)
	place(t, l, straight168, -0.084, 0, 0)

	// A second straight on its own nodes, touching the first one's B end.
	s := l.st
	na := s.graph.CreateNode(geom.V(0, 0, 0))
	nb := s.graph.CreateNode(geom.V(0.168, 0, 0))
	e, err := s.graph.AddEdge(na.ID, nb.ID, 0.168, graph.StraightCurve, "p2")
	require.NoError(t, err)
	s.pieces["p2"] = &PlacedPiece{
		ID:         "p2",
		CatalogID:  straight168,
		Transform:  geom.At(geom.V(0.084, 0, 0), 0),
		Connectors: map[catalog.ConnectorID]graph.NodeID{catalog.ConnA: na.ID, catalog.ConnB: nb.ID},
		Edges:      []RouteEdge{{Edge: e.ID, Route: catalog.RouteMain}},
	}
	s.bind(na.ID, ConnectorRef{Piece: "p2", Connector: catalog.ConnA})
	s.bind(nb.ID, ConnectorRef{Piece: "p2", Connector: catalog.ConnB})

	r := l.Validate()
	require.False(t, r.OK())
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Message, "not joined")
}

func TestImportDuplicateIDsBlock(t *testing.T) {
	doc := sampleLayout(t, 0).Export()
	doc.Pieces = append(doc.Pieces, doc.Pieces[0])

	l := newLayout(t)
	_, err := l.Import(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptDocument))
	assert.Empty(t, l.Pieces())

	doc = sampleLayout(t, 0).Export()
	doc.GraphNodes = append(doc.GraphNodes, doc.GraphNodes[0])
	_, err = l.Import(doc)
	assert.True(t, errors.Is(err, ErrCorruptDocument))
}

func TestImportSkipsUnknownCatalogID(t *testing.T) {
	l := newLayout(t)
	place(t, l, straight168, 0, 0, 0)
	place(t, l, straight168, 1, 0, 0)
	doc := l.Export()
	doc.Pieces[1].CatalogID = "track.gone"

	dst := newLayout(t)
	rep, err := dst.Import(doc)
	require.NoError(t, err)
	assert.Len(t, dst.Pieces(), 1)
	assert.Equal(t, 1, dst.Graph().EdgeCount())
	assert.Equal(t, 2, dst.Graph().NodeCount())
	assert.NotEmpty(t, rep.Warnings)
	requireValid(t, dst)
}

func TestImportRebuildsPieceWithMissingEdge(t *testing.T) {
	src := sampleLayout(t, 0)
	doc := src.Export()
	dropped := doc.GraphEdges[0].ID
	doc.GraphEdges = doc.GraphEdges[1:]

	dst := newLayout(t)
	rep, err := dst.Import(doc)
	require.NoError(t, err)
	require.Len(t, rep.Rebuilt, 1)
	assert.Equal(t, shape(src), shape(dst))
	assert.False(t, slices.ContainsFunc(dst.Export().GraphEdges, func(e EdgeDoc) bool { return e.ID == dropped }))
	requireValid(t, dst)
}

func TestImportEdgeWithMissingNode(t *testing.T) {
	doc := sampleLayout(t, 0).Export()
	doc.GraphEdges[0].StartNodeID = "n404"

	dst := newLayout(t)
	rep, err := dst.Import(doc)
	require.NoError(t, err)
	assert.True(t, slices.ContainsFunc(rep.Warnings, func(w string) bool {
		return strings.Contains(w, "missing node")
	}))
	requireValid(t, dst)
}

func TestImportResetsInvalidSwitchState(t *testing.T) {
	doc := sampleLayout(t, 0).Export()
	for i := range doc.Pieces {
		if doc.Pieces[i].CatalogID == switchLeft {
			doc.Pieces[i].SwitchState = "SIDEWAYS"
		}
	}
	dst := newLayout(t)
	rep, err := dst.Import(doc)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.Warnings)
	for _, p := range dst.Pieces() {
		if p.CatalogID == switchLeft {
			assert.Equal(t, catalog.RouteStraight, p.SwitchState)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"))
	assert.True(t, errors.Is(err, ErrCorruptDocument))
}

func TestDocumentJSONShape(t *testing.T) {
	l := newLayout(t)
	place(t, l, curveR1_45L, 0, 0, 0)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, l.Export()))
	js := buf.String()
	for _, field := range []string{
		`"catalogId"`, `"transform"`, `"rotation"`, `"w"`, `"connectors"`, `"nodeId"`,
		`"generatedEdgeIds"`, `"graphNodes"`, `"graphEdges"`, `"startNodeId"`, `"endNodeId"`,
		`"lengthM"`, `"arcCenter"`, `"radiusM"`, `"angleDeg"`, `"pieceId"`,
	} {
		assert.Contains(t, js, field)
	}
	assert.NotContains(t, js, `"switchState"`)
}
