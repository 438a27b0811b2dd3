package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a point or direction in 3D space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// V is shorthand for Vec3{x, y, z}.
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

var (
	UnitX = Vec3{X: 1}
	UnitY = Vec3{Y: 1}
	UnitZ = Vec3{Z: 1}
)

func (v Vec3) vec() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
func fromR3(v r3.Vec) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }
func (v Vec3) Add(o Vec3) Vec3 { return fromR3(r3.Add(v.vec(), o.vec())) }
func (v Vec3) Sub(o Vec3) Vec3 { return fromR3(r3.Sub(v.vec(), o.vec())) }
func (v Vec3) Scale(f float64) Vec3 {
	return fromR3(r3.Scale(f, v.vec()))
}
func (v Vec3) Neg() Vec3 { return v.Scale(-1) }
func (v Vec3) Dot(o Vec3) float64 { return r3.Dot(v.vec(), o.vec()) }
func (v Vec3) Cross(o Vec3) Vec3 { return fromR3(r3.Cross(v.vec(), o.vec())) }
func (v Vec3) Len() float64 { return r3.Norm(v.vec()) }
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }
func (v Vec3) IsZero() bool { return v == Vec3{} }
func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
func (v Vec3) Slice() []float64 { return []float64{v.X, v.Y, v.Z} }
func (v Vec3) String() string { return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z) }
func (v Vec3) ApproxEqual(o Vec3, tol float64) bool { return v.Dist(o) <= tol }

// Unit returns v scaled to length 1. The zero vector is returned unchanged.
func (v Vec3) Unit() Vec3 {
	if v.IsZero() {
		return v
	}
	return fromR3(r3.Unit(v.vec()))
}

// Lerp interpolates between v and o.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// Min returns the componentwise minimum.
func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{math.Min(v.X, o.X), math.Min(v.Y, o.Y), math.Min(v.Z, o.Z)}
}

// Max returns the componentwise maximum.
func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{math.Max(v.X, o.X), math.Max(v.Y, o.Y), math.Max(v.Z, o.Z)}
}
