package geom

import "math"

// Direction is the turning sense of a curve seen from above.
type Direction int

const (
	Left  Direction = 1
	Right Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Valid reports whether d is Left or Right.
func (d Direction) Valid() bool { return d == Left || d == Right }

// ArcLength is the length of a circular arc.
func ArcLength(radiusM, angleDeg float64) float64 {
	return radiusM * DegToRad(angleDeg)
}

// CurveEndPosition is the end point of a curve starting at the origin
// tangent to +X, with its center of curvature at (0, 0, dir*radius).
func CurveEndPosition(radiusM, angleDeg float64, dir Direction) Vec3 {
	sin, cos := math.Sincos(DegToRad(angleDeg))
	d := float64(dir)
	return Vec3{X: radiusM * sin, Z: d * radiusM * (1 - cos)}
}

// CurveExitDirection is the unit tangent at the end of such a curve.
func CurveExitDirection(angleDeg float64, dir Direction) Vec3 {
	sin, cos := math.Sincos(DegToRad(angleDeg))
	return Vec3{X: cos, Z: float64(dir) * sin}
}

// CurveCenter is the center of curvature in the same frame.
func CurveCenter(radiusM float64, dir Direction) Vec3 {
	return Vec3{Z: float64(dir) * radiusM}
}

// SampleArc returns n+1 evenly spaced points along the curve, start and
// end included.
func SampleArc(radiusM, angleDeg float64, dir Direction, n int) []Vec3 {
	if n < 1 {
		n = 1
	}
	pts := make([]Vec3, 0, n+1)
	for i := 0; i <= n; i++ {
		pts = append(pts, CurveEndPosition(radiusM, angleDeg*float64(i)/float64(n), dir))
	}
	return pts
}
