package ray

import (
	"lumen/vmath/vec3"
)

// Span is a closed interval of ray parameters.
type Span struct {
	Lo, Hi float64
}

// Contains reports whether t lies in [Lo, Hi].
func (s Span) Contains(t float64) bool {
	return s.Lo <= t && t <= s.Hi
}

// Ray is the parametric line Point + t*Slope.  Slope need not be normalized.
type Ray struct {
	Point vec3.Point
	Slope vec3.T
}

func (r Ray) Eval(t float64) vec3.Point {
	return vec3.T{
		r.Point[0] + t*r.Slope[0],
		r.Point[1] + t*r.Slope[1],
		r.Point[2] + t*r.Slope[2],
	}
}

// RaySegment is a ray restricted to the parameter window TheSegment.
type RaySegment struct {
	TheRay     Ray
	TheSegment Span
}
