package material

import (
	"math"
	"math/rand"

	"lumen/contact"
	"lumen/ray"
	"lumen/vmath/vec3"
)

// ScatterInfo is the outgoing half of a bounce: the ray to follow next, and the
// color that multiplies whatever that ray brings back.
type ScatterInfo struct {
	Attenuation vec3.T
	Scattered   ray.Ray
}

// Material decides what happens to a ray at a contact.  A false return means
// the ray was absorbed.
type Material interface {
	Scatter(c contact.Contact, rng *rand.Rand) (ScatterInfo, bool)
}

type DiffuseModel int

const (
	// DiffuseUnitVector scatters toward normal + a random unit vector, which
	// yields a cosine-weighted distribution.
	DiffuseUnitVector DiffuseModel = iota

	// DiffuseHemisphere scatters uniformly into the hemisphere around the
	// normal.
	DiffuseHemisphere
)

type Lambertian struct {
	Albedo vec3.T
	Model  DiffuseModel
}

func (l *Lambertian) Scatter(c contact.Contact, rng *rand.Rand) (ScatterInfo, bool) {
	var dir vec3.T
	switch l.Model {
	case DiffuseHemisphere:
		dir = vec3.HemisphereDistribution(c.N, rng)
	default:
		dir = vec3.AddVV(c.N, vec3.UniformUnitDistribution(rng))
	}

	// The random vector can nearly cancel the normal.
	if dir.NearZero() {
		dir = c.N
	}

	return ScatterInfo{
		Attenuation: l.Albedo,
		Scattered:   ray.Ray{Point: c.P, Slope: dir},
	}, true
}

// Metal is a specular reflector.  Fuzz perturbs the mirror direction by up to
// that fraction of a unit vector; 0 is a perfect mirror.
type Metal struct {
	Albedo vec3.T
	Fuzz   float64
}

// NewMetal clamps fuzz into [0, 1].
func NewMetal(albedo vec3.T, fuzz float64) *Metal {
	return &Metal{
		Albedo: albedo,
		Fuzz:   math.Max(0, math.Min(fuzz, 1)),
	}
}

func (m *Metal) Scatter(c contact.Contact, rng *rand.Rand) (ScatterInfo, bool) {
	reflected := vec3.Reflect(vec3.Normalize(c.R.Slope), c.N)
	if m.Fuzz != 0 {
		reflected = vec3.AddVV(reflected, vec3.MulVS(vec3.UniformInUnitSphereDistribution(rng), m.Fuzz))
	}

	// Fuzzed reflections that dive under the surface are absorbed.
	if vec3.IProd(reflected, c.N) <= 0 {
		return ScatterInfo{}, false
	}

	return ScatterInfo{
		Attenuation: m.Albedo,
		Scattered:   ray.Ray{Point: c.P, Slope: reflected},
	}, true
}

// Dielectric is a clear refractor such as glass or water, surrounded by a
// medium of index 1.
//
// With Schlick set, rays that could refract are instead reflected with the
// Schlick approximation of the Fresnel reflectance.  Without it only total
// internal reflection reflects.
type Dielectric struct {
	IndexOfRefraction float64
	Schlick           bool
}

var transparent = vec3.T{1, 1, 1}

func (d *Dielectric) Scatter(c contact.Contact, rng *rand.Rand) (ScatterInfo, bool) {
	refractionRatio := d.IndexOfRefraction
	if c.FrontFace {
		refractionRatio = 1.0 / d.IndexOfRefraction
	}

	unitDirection := vec3.Normalize(c.R.Slope)
	cosTheta := math.Min(vec3.IProd(vec3.Neg(unitDirection), c.N), 1.0)
	sinTheta := math.Sqrt(1.0 - cosTheta*cosTheta)

	var dir vec3.T
	switch {
	case refractionRatio*sinTheta > 1.0:
		// Total internal reflection.
		dir = vec3.Reflect(unitDirection, c.N)
	case d.Schlick && schlick(cosTheta, refractionRatio) > rng.Float64():
		dir = vec3.Reflect(unitDirection, c.N)
	default:
		dir = vec3.Refract(unitDirection, c.N, refractionRatio)
	}

	return ScatterInfo{
		Attenuation: transparent,
		Scattered:   ray.Ray{Point: c.P, Slope: dir},
	}, true
}

func schlick(cosine, refractionRatio float64) float64 {
	r0 := (1 - refractionRatio) / (1 + refractionRatio)
	r0 = r0 * r0
	return r0 + (1-r0)*math.Pow(1-cosine, 5)
}
