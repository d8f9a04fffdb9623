package galaxy

import "math"

// Vec3 is a double-precision cartesian coordinate.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns the unit vector, or the zero vector when v has no
// usable magnitude.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// Spherical holds the (r, theta, phi) decomposition of a cartesian point:
// radius, polar angle from +Z, and azimuth in the XY plane.
type Spherical struct {
	R     float64
	Theta float64
	Phi   float64
}

func SphericalFromCartesian(v Vec3) Spherical {
	r := v.Norm()
	if r == 0 {
		return Spherical{}
	}
	return Spherical{
		R:     r,
		Theta: math.Acos(v.Z / r),
		Phi:   math.Atan2(v.Y, v.X),
	}
}

func (s Spherical) Cartesian() Vec3 {
	sinT := math.Sin(s.Theta)
	return Vec3{
		X: s.R * sinT * math.Cos(s.Phi),
		Y: s.R * sinT * math.Sin(s.Phi),
		Z: s.R * math.Cos(s.Theta),
	}
}

// isNormal reports whether x is a normal floating point number: not zero,
// subnormal, infinite, or NaN. Orbital propagation refuses to move a body
// onto a position with a non-normal component.
func isNormal(x float64) bool {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return false
	}
	return math.Abs(x) >= 0x1p-1022
}
