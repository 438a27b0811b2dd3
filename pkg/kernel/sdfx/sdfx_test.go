package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/kernel"
	"github.com/chazu/railyard/pkg/layout"
)

func mustBox(t *testing.T, k *SdfxKernel, x, y, z float64) kernel.Solid {
	t.Helper()
	s, err := k.Box(geom.V(x, y, z))
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	return s
}

func expectBounds(t *testing.T, s kernel.Solid, wantMin, wantMax geom.Vec3, tol float64) {
	t.Helper()
	min, max := s.BoundingBox()
	if !min.ApproxEqual(wantMin, tol) {
		t.Errorf("min = %s, expected ~%s", min, wantMin)
	}
	if !max.ApproxEqual(wantMax, tol) {
		t.Errorf("max = %s, expected ~%s", max, wantMax)
	}
}

func TestBox(t *testing.T) {
	k := New()
	box := mustBox(t, k, 0.1, 0.05, 0.025)
	mesh, err := k.ToMesh(box, 32)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	// Verify vertex and index array sizes are consistent.
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
}

func TestBoundingBox(t *testing.T) {
	k := New()
	box := mustBox(t, k, 100, 50, 25)
	expectBounds(t, box, geom.V(-50, -25, -12.5), geom.V(50, 25, 12.5), 0.01)
}

func TestTranslate(t *testing.T) {
	k := New()
	box := k.Translate(mustBox(t, k, 10, 10, 10), geom.V(100, 200, 300))
	expectBounds(t, box, geom.V(95, 195, 295), geom.V(105, 205, 305), 0.5)
}

func TestUnion(t *testing.T) {
	k := New()
	box1 := mustBox(t, k, 50, 50, 50)
	box2 := k.Translate(mustBox(t, k, 50, 50, 50), geom.V(30, 0, 0))
	u := k.Union(box1, box2)
	expectBounds(t, u, geom.V(-25, -25, -25), geom.V(55, 25, 25), 0.01)

	mesh, err := k.ToMesh(u, 32)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
	if k.Union(box1) != box1 {
		t.Error("single-solid union should return its input")
	}
}

func TestRotateYaw(t *testing.T) {
	k := New()
	// A long box along X, moved out to x=50 and yawed a quarter turn,
	// ends up along Z on the negative side.
	box := k.Translate(mustBox(t, k, 100, 10, 10), geom.V(50, 0, 0))
	rotated := k.Rotate(box, geom.YawQuat(90))
	min, max := rotated.BoundingBox()

	const tol = 1.0
	if math.Abs((max.X-min.X)-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", max.X-min.X)
	}
	if math.Abs((max.Z-min.Z)-100) > tol {
		t.Errorf("rotated Z extent = %f, expected ~100", max.Z-min.Z)
	}
	if max.Z > tol {
		t.Errorf("rotated box should lie on -Z, max.Z = %f", max.Z)
	}
}

func TestRotateIdentityIsNoop(t *testing.T) {
	k := New()
	box := mustBox(t, k, 1, 2, 3)
	if k.Rotate(box, geom.IdentityQuat) != box {
		t.Error("identity rotation should return its input")
	}
}

func TestPieceFootprint(t *testing.T) {
	cat := catalog.New()
	e, _ := cat.Get("track.straight_168mm")
	f := kernel.Footprinter{Kernel: New()}

	box, err := f.Footprint(e, geom.At(geom.V(1, 0, 0), 0))
	if err != nil {
		t.Fatalf("Footprint failed: %v", err)
	}
	if box.Min.X > 1-0.084 || box.Max.X < 1+0.084 {
		t.Errorf("footprint %s..%s does not cover the rail ends", box.Min, box.Max)
	}
	if w := box.Max.Z - box.Min.Z; math.Abs(w-kernel.TrackWidthM) > 1e-3 {
		t.Errorf("footprint width = %f, expected ~%f", w, kernel.TrackWidthM)
	}
}

func TestPieceMesh(t *testing.T) {
	cat := catalog.New()
	l := layout.New(cat, layout.DefaultOptions())
	p, err := l.PlacePiece("track.curve_r1_45deg_left", geom.At(geom.V(0.5, 0, 0.5), 30))
	if err != nil {
		t.Fatalf("PlacePiece failed: %v", err)
	}
	e, _ := cat.Get(p.CatalogID)

	mesh, err := kernel.PieceMesh(New(), e, p, 48)
	if err != nil {
		t.Fatalf("PieceMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if mesh.PieceID != string(p.ID) {
		t.Errorf("PieceID = %q, want %q", mesh.PieceID, p.ID)
	}
	min, max, _ := mesh.Bounds()
	if min[1] < -0.002 || max[1] > kernel.TrackHeightM+0.002 {
		t.Errorf("mesh height range %f..%f outside the track bed", min[1], max[1])
	}
}
