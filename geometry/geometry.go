package geometry

import (
	"errors"
	"fmt"
	"math"

	"lumen/contact"
	"lumen/ray"
	"lumen/vmath/vec3"
)

var ErrDegenerate = errors.New("degenerate geometry")

// Geometry is anything a ray can strike.
//
// Hit returns the nearest contact whose parameter lies in query.TheSegment, and
// false if there is none.
type Geometry interface {
	Hit(query ray.RaySegment) (contact.Contact, bool)
}

// Sphere is a Geometry with an explicit center and radius.
type Sphere struct {
	Center        vec3.Point
	Radius        float64
	MaterialIndex int
}

// NewSphere checks that the sphere can produce unit normals.
func NewSphere(center vec3.Point, radius float64, materialIndex int) (*Sphere, error) {
	if !center.IsFinite() {
		return nil, fmt.Errorf("%w: sphere center %v is not finite", ErrDegenerate, center)
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: sphere radius %v must be positive and finite", ErrDegenerate, radius)
	}
	if materialIndex < 0 {
		return nil, fmt.Errorf("negative material index %d", materialIndex)
	}
	return &Sphere{
		Center:        center,
		Radius:        radius,
		MaterialIndex: materialIndex,
	}, nil
}

func (s *Sphere) Hit(query ray.RaySegment) (contact.Contact, bool) {
	r := query.TheRay
	oc := vec3.SubVV(r.Point, s.Center)

	a := r.Slope.NormSquared()
	halfB := vec3.IProd(oc, r.Slope)
	c := oc.NormSquared() - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return contact.Contact{}, false
	}
	sqrtD := math.Sqrt(discriminant)

	// Nearest root first, then the far one.
	root := (-halfB - sqrtD) / a
	if !query.TheSegment.Contains(root) {
		root = (-halfB + sqrtD) / a
		if !query.TheSegment.Contains(root) {
			return contact.Contact{}, false
		}
	}

	outwardNormal := vec3.DivVS(vec3.SubVV(r.Eval(root), s.Center), s.Radius)
	return contact.New(root, r, outwardNormal, s.MaterialIndex), true
}
