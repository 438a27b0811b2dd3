package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quat is a rotation quaternion. The zero value is not a valid rotation;
// use IdentityQuat.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuat is the rotation that leaves every vector unchanged.
var IdentityQuat = Quat{W: 1}

func (q Quat) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quat {
	return Quat{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// QuatFromAxisAngle builds a rotation of angleRad radians about axis.
func QuatFromAxisAngle(axis Vec3, angleRad float64) Quat {
	if axis.IsZero() {
		return IdentityQuat
	}
	return fromNumber(quat.Number(r3.NewRotation(angleRad, axis.Unit().vec())))
}

// YawQuat rotates by deg degrees about world +Y. Positive yaw turns +X
// toward -Z.
func YawQuat(deg float64) Quat {
	return QuatFromAxisAngle(UnitY, DegToRad(deg))
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	return fromR3(r3.Rotation(q.number()).Rotate(v.vec()))
}

// Mul composes rotations: (q.Mul(p)).Rotate(v) == q.Rotate(p.Rotate(v)).
func (q Quat) Mul(p Quat) Quat {
	return fromNumber(quat.Mul(q.number(), p.number()))
}

// Conj returns the inverse of a unit quaternion.
func (q Quat) Conj() Quat {
	return fromNumber(quat.Conj(q.number()))
}

// Norm is the quaternion magnitude.
func (q Quat) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalize returns q scaled to unit length with a non-negative W. A zero
// quaternion normalizes to identity. Quaternions already of unit length
// are returned bit for bit.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) {
		return IdentityQuat
	}
	out := q
	if math.Abs(n-1) > 1e-12 {
		out = fromNumber(quat.Scale(1/n, q.number()))
	}
	if out.W < 0 {
		out = Quat{X: -out.X, Y: -out.Y, Z: -out.Z, W: -out.W}
	}
	return out
}

// AxisAngle decomposes a unit quaternion. The identity yields (+Y, 0).
func (q Quat) AxisAngle() (Vec3, float64) {
	q = q.Normalize()
	s := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if s < 1e-12 {
		return UnitY, 0
	}
	angle := 2 * math.Atan2(s, q.W)
	return Vec3{q.X / s, q.Y / s, q.Z / s}, angle
}

// YawDeg returns the heading of the rotated +X axis about +Y, in degrees.
func (q Quat) YawDeg() float64 {
	f := q.Rotate(UnitX)
	return RadToDeg(math.Atan2(-f.Z, f.X))
}

// ApproxEqual reports whether q and p represent the same rotation.
func (q Quat) ApproxEqual(p Quat, tol float64) bool {
	a, b := q.Normalize(), p.Normalize()
	d := math.Abs(a.W*b.W + a.X*b.X + a.Y*b.Y + a.Z*b.Z)
	return 1-d <= tol
}

// RotationBetween returns the shortest rotation taking direction a onto
// direction b. For opposite vectors the rotation is a half turn about +Y
// when a is horizontal, otherwise about an axis perpendicular to a.
func RotationBetween(a, b Vec3) Quat {
	a, b = a.Unit(), b.Unit()
	d := a.Dot(b)
	if d > 1-1e-12 {
		return IdentityQuat
	}
	if d < -1+1e-12 {
		axis := UnitY
		if math.Abs(a.Y) > 1e-9 {
			axis = a.Cross(UnitX)
			if axis.Len() < 1e-9 {
				axis = a.Cross(UnitZ)
			}
		}
		return QuatFromAxisAngle(axis, math.Pi)
	}
	return QuatFromAxisAngle(a.Cross(b), math.Acos(d))
}

func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }
