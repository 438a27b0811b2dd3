package geom

// Transform is a rigid placement: rotate, then translate.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
}

// Identity is the transform at the origin with no rotation.
var Identity = Transform{Rotation: IdentityQuat}

// At returns a transform at p rotated by yawDeg about +Y.
func At(p Vec3, yawDeg float64) Transform {
	return Transform{Position: p, Rotation: YawQuat(yawDeg)}
}

// Apply maps a local point to world space.
func (t Transform) Apply(local Vec3) Vec3 {
	return t.Position.Add(t.Rotation.Rotate(local))
}

// ApplyDir maps a local direction to world space. Translation is ignored.
func (t Transform) ApplyDir(local Vec3) Vec3 {
	return t.Rotation.Rotate(local)
}

// Normalize returns t with a unit rotation.
func (t Transform) Normalize() Transform {
	return Transform{Position: t.Position, Rotation: t.Rotation.Normalize()}
}

// ApproxEqual compares position within posTol and rotation within rotTol.
func (t Transform) ApproxEqual(o Transform, posTol, rotTol float64) bool {
	return t.Position.ApproxEqual(o.Position, posTol) && t.Rotation.ApproxEqual(o.Rotation, rotTol)
}
