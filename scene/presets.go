package scene

import (
	"fmt"
	"math/rand"
	"sort"

	"lumen/camera"
	"lumen/material"
	"lumen/rgb"
	"lumen/vmath/vec3"
)

// PresetFunc builds a ready-to-render scene, with one camera matching
// aspectRatio.  rng drives any random placement.
type PresetFunc func(aspectRatio float64, rng *rand.Rand) (*Scene, error)

var Presets = map[string]PresetFunc{
	"single-sphere": SingleSphere,
	"materials":     Materials,
	"random":        RandomSpheres,
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type sphereSpec struct {
	center   vec3.T
	radius   float64
	material int
}

func (s *Scene) addSpheres(specs []sphereSpec) error {
	for _, sp := range specs {
		if err := s.AddSphere(sp.center, sp.radius, sp.material); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scene) addThinLens(p camera.Params) error {
	c, err := camera.NewThinLens(p)
	if err != nil {
		return fmt.Errorf("while creating camera: %w", err)
	}
	s.AddCamera(c)
	return nil
}

// SingleSphere is a red diffuse sphere of radius 0.5 at (0, 0, -1) resting on
// a large ground sphere, seen by a pinhole camera at the origin.
func SingleSphere(aspectRatio float64, rng *rand.Rand) (*Scene, error) {
	s := &Scene{}
	ground := s.AddMaterial(&material.Lambertian{Albedo: vec3.T{0.5, 0.5, 0.5}})
	red := s.AddMaterial(&material.Lambertian{Albedo: rgb.Red})

	if err := s.addSpheres([]sphereSpec{
		{vec3.T{0, -100.5, -1}, 100, ground},
		{vec3.T{0, 0, -1}, 0.5, red},
	}); err != nil {
		return nil, err
	}

	if err := s.addThinLens(camera.Params{
		Eye:         vec3.T{0, 0, 0},
		LookAt:      vec3.T{0, 0, -1},
		Up:          vec3.T{0, 1, 0},
		VFOV:        90,
		AspectRatio: aspectRatio,
		FocusDist:   1,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Materials shows one of each material side by side: hollow glass on the
// left, diffuse in the middle, fuzzy metal on the right.
func Materials(aspectRatio float64, rng *rand.Rand) (*Scene, error) {
	s := &Scene{}
	ground := s.AddMaterial(&material.Lambertian{Albedo: vec3.T{0.8, 0.8, 0.0}})
	center := s.AddMaterial(&material.Lambertian{Albedo: vec3.T{0.1, 0.2, 0.5}})
	glass := s.AddMaterial(&material.Dielectric{IndexOfRefraction: 1.5})
	bubble := s.AddMaterial(&material.Dielectric{IndexOfRefraction: 1.0 / 1.5})
	metal := s.AddMaterial(material.NewMetal(vec3.T{0.8, 0.6, 0.2}, 0.3))

	if err := s.addSpheres([]sphereSpec{
		{vec3.T{0, -100.5, -1}, 100, ground},
		{vec3.T{0, 0, -1}, 0.5, center},
		{vec3.T{-1, 0, -1}, 0.5, glass},
		{vec3.T{-1, 0, -1}, 0.4, bubble},
		{vec3.T{1, 0, -1}, 0.5, metal},
	}); err != nil {
		return nil, err
	}

	eye := vec3.T{3, 3, 2}
	lookAt := vec3.T{0, 0, -1}
	if err := s.addThinLens(camera.Params{
		Eye:         eye,
		LookAt:      lookAt,
		Up:          vec3.T{0, 1, 0},
		VFOV:        20,
		AspectRatio: aspectRatio,
		Aperture:    0.5,
		FocusDist:   vec3.SubVV(eye, lookAt).Norm(),
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// RandomSpheres is a field of small random spheres around three large ones.
func RandomSpheres(aspectRatio float64, rng *rand.Rand) (*Scene, error) {
	s := &Scene{}
	ground := s.AddMaterial(&material.Lambertian{Albedo: vec3.T{0.5, 0.5, 0.5}})
	// Small glass spheres all share one material.
	glass := s.AddMaterial(&material.Dielectric{IndexOfRefraction: 1.5})

	if err := s.AddSphere(vec3.T{0, -1000, 0}, 1000, ground); err != nil {
		return nil, err
	}

	keepClear := vec3.T{4, 0.2, 0}
	for a := -11; a < 11; a++ {
		for b := -11; b < 11; b++ {
			chooseMat := rng.Float64()
			center := vec3.T{float64(a) + 0.9*rng.Float64(), 0.2, float64(b) + 0.9*rng.Float64()}
			if vec3.SubVV(center, keepClear).Norm() <= 0.9 {
				continue
			}

			var mtl int
			switch {
			case chooseMat < 0.8:
				albedo := vec3.MulVV(vec3.UniformCubeDistribution(0, 1, rng), vec3.UniformCubeDistribution(0, 1, rng))
				mtl = s.AddMaterial(&material.Lambertian{Albedo: albedo})
			case chooseMat < 0.95:
				albedo := vec3.UniformCubeDistribution(0.5, 1, rng)
				mtl = s.AddMaterial(material.NewMetal(albedo, vec3.UniformIn(rng, 0, 0.5)))
			default:
				mtl = glass
			}

			if err := s.AddSphere(center, 0.2, mtl); err != nil {
				return nil, err
			}
		}
	}

	diffuse := s.AddMaterial(&material.Lambertian{Albedo: vec3.T{0.4, 0.2, 0.1}})
	mirror := s.AddMaterial(material.NewMetal(vec3.T{0.7, 0.6, 0.5}, 0))
	if err := s.addSpheres([]sphereSpec{
		{vec3.T{0, 1, 0}, 1, glass},
		{vec3.T{-4, 1, 0}, 1, diffuse},
		{vec3.T{4, 1, 0}, 1, mirror},
	}); err != nil {
		return nil, err
	}

	if err := s.addThinLens(camera.Params{
		Eye:         vec3.T{13, 2, 3},
		LookAt:      vec3.T{0, 0, 0},
		Up:          vec3.T{0, 1, 0},
		VFOV:        20,
		AspectRatio: aspectRatio,
		Aperture:    0.1,
		FocusDist:   10,
	}); err != nil {
		return nil, err
	}
	return s, nil
}
