package contact

import (
	"lumen/ray"
	"lumen/vmath/vec3"
)

// Contact records where a ray struck a surface.
//
// N always opposes the incoming ray R.  FrontFace is true when R arrived from
// the outside of the surface.  MaterialIndex refers into the material table of
// the scene that produced the contact.
type Contact struct {
	T             float64
	R             ray.Ray
	P             vec3.Point
	N             vec3.T
	FrontFace     bool
	MaterialIndex int
}

// New builds a Contact from a unit outward normal, flipping it to face the
// incoming ray if necessary.
func New(t float64, r ray.Ray, outwardNormal vec3.T, materialIndex int) Contact {
	frontFace := vec3.IProd(r.Slope, outwardNormal) < 0.0
	n := outwardNormal
	if !frontFace {
		n = vec3.Neg(outwardNormal)
	}
	return Contact{
		T:             t,
		R:             r,
		P:             r.Eval(t),
		N:             n,
		FrontFace:     frontFace,
		MaterialIndex: materialIndex,
	}
}
