package graph

import (
	"errors"
	"testing"

	"github.com/chazu/railyard/pkg/geom"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// line builds a chain of straight edges along X, one per segment.
func line(t *testing.T, g *Graph, owner PieceID, xs ...float64) []*Edge {
	t.Helper()
	var edges []*Edge
	prev, _ := g.MergeOrCreateNode(geom.V(xs[0], 0, 0), 0.002)
	for _, x := range xs[1:] {
		next, _ := g.MergeOrCreateNode(geom.V(x, 0, 0), 0.002)
		e, err := g.AddEdge(prev.ID, next.ID, x-prev.Position.X, StraightCurve, owner)
		if err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
		edges = append(edges, e)
		prev = next
	}
	return edges
}

func mustValid(t *testing.T, g *Graph) {
	t.Helper()
	if r := Validate(g); !r.OK() {
		t.Fatalf("graph invalid: %v", r.Errors)
	}
}

// ---------------------------------------------------------------------------
// Ids
// ---------------------------------------------------------------------------

func TestIDSource(t *testing.T) {
	s := NewIDSource("p")
	if got := s.Next(); got != "p1" {
		t.Errorf("first id = %q, want p1", got)
	}
	s.Observe("p9")
	s.Observe("q50")
	s.Observe("p3")
	if got := s.Next(); got != "p10" {
		t.Errorf("after observe = %q, want p10", got)
	}
}

func TestCompareIDs(t *testing.T) {
	if CompareIDs(NodeID("n2"), NodeID("n10")) >= 0 {
		t.Error("n2 should sort before n10")
	}
	if CompareIDs(NodeID("n10"), NodeID("n10")) != 0 {
		t.Error("equal ids should compare 0")
	}
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

func TestMergeOrCreateNode(t *testing.T) {
	g := New()
	a, created := g.MergeOrCreateNode(geom.V(0, 0, 0), 0.002)
	if !created {
		t.Fatal("first node should be created")
	}
	b, created := g.MergeOrCreateNode(geom.V(0.001, 0, 0), 0.002)
	if created || b.ID != a.ID {
		t.Errorf("node within tolerance should merge, got %s created=%v", b.ID, created)
	}
	c, created := g.MergeOrCreateNode(geom.V(0.01, 0, 0), 0.002)
	if !created || c.ID == a.ID {
		t.Error("node outside tolerance should be new")
	}
	if g.NodeCount() != 2 {
		t.Errorf("node count = %d, want 2", g.NodeCount())
	}
}

func TestFindNearbyNodePrefersNearest(t *testing.T) {
	g := New()
	far := g.CreateNode(geom.V(0.0015, 0, 0))
	near := g.CreateNode(geom.V(0.0005, 0, 0))

	got, ok := g.FindNearbyNode(geom.Vec3{}, 0.002)
	if !ok || got.ID != near.ID {
		t.Errorf("nearest = %v, want %s", got, near.ID)
	}
	within := g.NodesWithin(geom.Vec3{}, 0.002)
	if len(within) != 2 || within[1].ID != far.ID {
		t.Errorf("NodesWithin order wrong: %v", within)
	}
	if _, ok := g.FindNearbyNode(geom.V(1, 1, 1), 0.002); ok {
		t.Error("no node expected far away")
	}
}

func TestInsertNodeRejectsDuplicate(t *testing.T) {
	g := New()
	if _, err := g.InsertNode("n5", geom.Vec3{}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.InsertNode("n5", geom.Vec3{}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	if n := g.CreateNode(geom.V(1, 0, 0)); n.ID != "n6" {
		t.Errorf("fresh id after insert = %s, want n6", n.ID)
	}
}

func TestRemoveNode(t *testing.T) {
	g := New()
	line(t, g, "p1", 0, 1)
	n, _ := g.FindNearbyNode(geom.Vec3{}, 0.001)
	if err := g.RemoveNode(n.ID); err == nil {
		t.Error("removing a node with edges should fail")
	}
	lone := g.CreateNode(geom.V(5, 0, 0))
	if err := g.RemoveNode(lone.ID); err != nil {
		t.Errorf("RemoveNode: %v", err)
	}
	if err := g.RemoveNode("missing"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

func TestAddEdgeUpdatesIncidence(t *testing.T) {
	g := New()
	edges := line(t, g, "p1", 0, 0.168, 0.336)
	mid, _ := g.FindNearbyNode(geom.V(0.168, 0, 0), 0.001)
	if mid.Degree() != 2 {
		t.Errorf("middle degree = %d, want 2", mid.Degree())
	}
	if got := mid.IncidentEdges(); len(got) != 2 || got[0] != edges[0].ID {
		t.Errorf("incident edges = %v", got)
	}
	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("counts = %d/%d, want 3/2", g.NodeCount(), g.EdgeCount())
	}
	mustValid(t, g)
}

func TestAddEdgeErrors(t *testing.T) {
	g := New()
	a := g.CreateNode(geom.Vec3{})
	if _, err := g.AddEdge(a.ID, "nope", 1, StraightCurve, "p1"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
	if _, err := g.AddEdge(a.ID, a.ID, 1, StraightCurve, "p1"); !errors.Is(err, ErrSelfLoop) {
		t.Errorf("err = %v, want ErrSelfLoop", err)
	}
	if g.EdgeCount() != 0 {
		t.Error("failed AddEdge must not leave an edge behind")
	}
}

func TestMergeNodes(t *testing.T) {
	g := New()
	a := g.CreateNode(geom.V(0, 0, 0))
	b := g.CreateNode(geom.V(1, 0, 0))
	c := g.CreateNode(geom.V(1, 0, 0))
	d := g.CreateNode(geom.V(2, 0, 0))
	left, err := g.AddEdge(a.ID, b.ID, 1, StraightCurve, "p1")
	if err != nil {
		t.Fatal(err)
	}
	right, err := g.AddEdge(c.ID, d.ID, 1, StraightCurve, "p2")
	if err != nil {
		t.Fatal(err)
	}

	if err := g.MergeNodes(c.ID, b.ID); err != nil {
		t.Fatalf("MergeNodes: %v", err)
	}
	if g.NodeCount() != 3 {
		t.Errorf("node count = %d, want 3", g.NodeCount())
	}
	if _, ok := g.Node(c.ID); ok {
		t.Error("merged node should be gone")
	}
	e, _ := g.Edge(right.ID)
	if e.From != b.ID || e.To != d.ID {
		t.Errorf("edge %s runs %s-%s, want %s-%s", e.ID, e.From, e.To, b.ID, d.ID)
	}
	n, _ := g.Node(b.ID)
	if n.Degree() != 2 || !n.HasEdge(left.ID) || !n.HasEdge(right.ID) {
		t.Errorf("node %s edges = %v", b.ID, n.IncidentEdges())
	}
	mustValid(t, g)

	if err := g.MergeNodes(a.ID, b.ID); !errors.Is(err, ErrSelfLoop) {
		t.Errorf("err = %v, want ErrSelfLoop for nodes sharing an edge", err)
	}
	if err := g.MergeNodes("n99", b.ID); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}
	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Error("failed merges must not change the graph")
	}
}

func TestRemoveEdgeDropsEmptyNodes(t *testing.T) {
	g := New()
	edges := line(t, g, "p1", 0, 1, 2)
	if err := g.RemoveEdge(edges[0].ID); err != nil {
		t.Fatal(err)
	}
	if g.NodeCount() != 2 {
		t.Errorf("node count = %d, want 2", g.NodeCount())
	}
	if _, ok := g.FindNearbyNode(geom.Vec3{}, 0.001); ok {
		t.Error("dangling start node should be gone")
	}
	mustValid(t, g)

	if err := g.RemoveEdge(edges[0].ID); !errors.Is(err, ErrUnknownEdge) {
		t.Errorf("err = %v, want ErrUnknownEdge", err)
	}
	if err := g.RemoveEdge(edges[1].ID); err != nil {
		t.Fatal(err)
	}
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Error("graph should be empty")
	}
}

func TestEdgeOther(t *testing.T) {
	e := &Edge{From: "n1", To: "n2"}
	if e.Other("n1") != "n2" || e.Other("n2") != "n1" || e.Other("n3") != "" {
		t.Error("Other returned wrong endpoint")
	}
}

func TestEdgesOwnedBy(t *testing.T) {
	g := New()
	line(t, g, "p1", 0, 1)
	line(t, g, "p2", 1, 2, 3)
	if got := len(g.EdgesOwnedBy("p2")); got != 2 {
		t.Errorf("p2 edges = %d, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// Clone
// ---------------------------------------------------------------------------

func TestCloneIsIndependent(t *testing.T) {
	g := New()
	edges := line(t, g, "p1", 0, 1, 2)
	c := g.Clone()

	if err := c.RemoveEdge(edges[0].ID); err != nil {
		t.Fatal(err)
	}
	if g.EdgeCount() != 2 || g.NodeCount() != 3 {
		t.Error("mutating the clone changed the original")
	}
	if _, ok := c.FindNearbyNode(geom.V(2, 0, 0), 0.001); !ok {
		t.Error("clone index lost a node")
	}
	mustValid(t, c)

	a := g.CreateNode(geom.V(9, 0, 0))
	b := c.CreateNode(geom.V(9, 0, 0))
	if a.ID != b.ID {
		t.Errorf("id sequences diverged: %s vs %s", a.ID, b.ID)
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidateCatchesBrokenIncidence(t *testing.T) {
	g := New()
	edges := line(t, g, "p1", 0, 1)
	n, _ := g.FindNearbyNode(geom.Vec3{}, 0.001)
	delete(n.incident, edges[0].ID)

	r := Validate(g)
	if r.OK() {
		t.Fatal("expected validation errors")
	}
	if r.Errors[0].Severity != SeverityError {
		t.Errorf("severity = %s", r.Errors[0].Severity)
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{NodeID: "n1", Message: "bad", Severity: SeverityError}
	if got := e.Error(); got != "[error] node n1: bad" {
		t.Errorf("Error() = %q", got)
	}
	w := ValidationError{Message: "meh", Severity: SeverityWarning}
	if got := w.Error(); got != "[warning] meh" {
		t.Errorf("Error() = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

func TestShortestRoute(t *testing.T) {
	g := New()
	line(t, g, "p1", 0, 1, 2)
	a, _ := g.FindNearbyNode(geom.Vec3{}, 0.001)
	c, _ := g.FindNearbyNode(geom.V(2, 0, 0), 0.001)

	r, err := g.ShortestRoute(a.ID, c.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Nodes) != 3 || len(r.Edges) != 2 || r.LengthM != 2 {
		t.Errorf("route = %+v", r)
	}

	_, err = g.ShortestRoute(a.ID, c.ID, func(e *Edge) bool { return e.From != a.ID })
	if !errors.Is(err, ErrNoRoute) {
		t.Errorf("err = %v, want ErrNoRoute", err)
	}
}

func TestShortestRoutePicksShorterParallelEdge(t *testing.T) {
	g := New()
	a := g.CreateNode(geom.Vec3{})
	b := g.CreateNode(geom.V(1, 0, 0))
	long, _ := g.AddEdge(a.ID, b.ID, 1.5, Arc(1, 90, geom.Vec3{}), "p1")
	short, _ := g.AddEdge(a.ID, b.ID, 1.0, StraightCurve, "p1")

	r, err := g.ShortestRoute(a.ID, b.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Edges[0] != short.ID {
		t.Errorf("route used %s, want %s", r.Edges[0], short.ID)
	}

	r, err = g.ShortestRoute(a.ID, b.ID, func(e *Edge) bool { return e.ID == long.ID })
	if err != nil || r.Edges[0] != long.ID {
		t.Errorf("filtered route = %+v, %v", r, err)
	}
}

func TestSections(t *testing.T) {
	g := New()
	line(t, g, "p1", 0, 1)
	line(t, g, "p2", 5, 6, 7)
	sections := g.Sections(nil)
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}
	if len(sections[0]) != 2 || len(sections[1]) != 3 {
		t.Errorf("section sizes = %d, %d", len(sections[0]), len(sections[1]))
	}
}
