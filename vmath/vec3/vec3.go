// Package vec3 is the 3-component vector algebra shared by everything in the
// renderer.  The same type serves as a free vector, a point, and an RGB color.
package vec3

import (
	"math"
	"math/rand"
)

type T [3]float64

// Point is a position in world space.  It is the same representation as T.
type Point = T

// nearZeroEpsilon is the per-component magnitude below which a vector is
// considered degenerate.
const nearZeroEpsilon = 1e-8

func (v T) X() float64 { return v[0] }
func (v T) Y() float64 { return v[1] }
func (v T) Z() float64 { return v[2] }

func (v T) NormSquared() float64 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func (v T) Norm() float64 {
	return math.Sqrt(v.NormSquared())
}

// NearZero reports whether every component of v is within a small epsilon of
// zero.
func (v T) NearZero() bool {
	return math.Abs(v[0]) < nearZeroEpsilon && math.Abs(v[1]) < nearZeroEpsilon && math.Abs(v[2]) < nearZeroEpsilon
}

// IsFinite reports whether no component is NaN or infinite.
func (v T) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Normalize returns v scaled to unit length.  The caller must ensure v is not
// the zero vector.
func Normalize(v T) T {
	l := v.Norm()
	return T{
		v[0] / l,
		v[1] / l,
		v[2] / l,
	}
}

func AddVV(a, b T) T {
	return T{
		a[0] + b[0],
		a[1] + b[1],
		a[2] + b[2],
	}
}

func SubVV(a, b T) T {
	return T{
		a[0] - b[0],
		a[1] - b[1],
		a[2] - b[2],
	}
}

// MulVV is the componentwise product.
func MulVV(a, b T) T {
	return T{
		a[0] * b[0],
		a[1] * b[1],
		a[2] * b[2],
	}
}

func MulVS(a T, b float64) T {
	return T{
		a[0] * b,
		a[1] * b,
		a[2] * b,
	}
}

func DivVS(a T, b float64) T {
	return T{
		a[0] / b,
		a[1] / b,
		a[2] / b,
	}
}

func Neg(a T) T {
	return T{-a[0], -a[1], -a[2]}
}

func IProd(a, b T) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func CProd(a, b T) T {
	return T{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Lerp blends from a (t == 0) to b (t == 1).
func Lerp(a, b T, t float64) T {
	return AddVV(MulVS(a, 1.0-t), MulVS(b, t))
}

// Reflect mirrors a about the plane with unit normal n.
func Reflect(a, n T) T {
	return SubVV(a, MulVS(n, 2*IProd(a, n)))
}

// Refract bends the unit vector uv through a surface with unit normal n (facing
// against uv), where etaRatio is the ratio of the incident index of refraction
// to the transmitted one.
func Refract(uv, n T, etaRatio float64) T {
	cosTheta := math.Min(IProd(Neg(uv), n), 1.0)
	perp := MulVS(AddVV(uv, MulVS(n, cosTheta)), etaRatio)
	parallel := MulVS(n, -math.Sqrt(math.Abs(1.0-perp.NormSquared())))
	return AddVV(perp, parallel)
}

// UniformIn draws a float uniformly from [lo, hi).
func UniformIn(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// UniformCubeDistribution draws each component uniformly from [lo, hi).
func UniformCubeDistribution(lo, hi float64, rng *rand.Rand) T {
	return T{
		UniformIn(rng, lo, hi),
		UniformIn(rng, lo, hi),
		UniformIn(rng, lo, hi),
	}
}

// UniformInUnitSphereDistribution rejection-samples a point strictly inside the
// unit ball.
func UniformInUnitSphereDistribution(rng *rand.Rand) T {
	for {
		candidate := UniformCubeDistribution(-1.0, 1.0, rng)
		if candidate.NormSquared() < 1.0 {
			return candidate
		}
	}
}

// UniformUnitDistribution draws a direction uniformly from the surface of the
// unit sphere.
func UniformUnitDistribution(rng *rand.Rand) T {
	for {
		candidate := UniformInUnitSphereDistribution(rng)
		// The origin itself can't be normalized.
		if candidate.NormSquared() != 0.0 {
			return Normalize(candidate)
		}
	}
}

// HemisphereDistribution draws a point in the unit ball on the same side of the
// plane as normal.
func HemisphereDistribution(normal T, rng *rand.Rand) T {
	candidate := UniformInUnitSphereDistribution(rng)
	if IProd(candidate, normal) < 0.0 {
		return Neg(candidate)
	}
	return candidate
}

// UniformInUnitDiskDistribution rejection-samples a point inside the unit disk
// in the z == 0 plane.  Used for lens sampling.
func UniformInUnitDiskDistribution(rng *rand.Rand) T {
	for {
		candidate := T{UniformIn(rng, -1.0, 1.0), UniformIn(rng, -1.0, 1.0), 0}
		if candidate.NormSquared() < 1.0 {
			return candidate
		}
	}
}
