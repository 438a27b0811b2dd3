// Package kernel defines the solid geometry interface used to give track
// pieces a physical body. Implementations (sdfx) build solids from boxes
// and rigid transforms; the rest of the system only sees bounding boxes
// and triangle meshes.
package kernel

import "github.com/chazu/railyard/pkg/geom"

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max geom.Vec3)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Box creates a box of the given size centered on the origin.
	Box(size geom.Vec3) (Solid, error)

	// Union combines solids. At least one is required.
	Union(solids ...Solid) Solid

	// Transforms
	Translate(s Solid, v geom.Vec3) Solid
	Rotate(s Solid, q geom.Quat) Solid

	// ToMesh tessellates a solid. cells sets the resolution along the
	// longest bounding box axis.
	ToMesh(s Solid, cells int) (*Mesh, error)
}
