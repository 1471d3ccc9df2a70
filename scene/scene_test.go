package scene

import (
	"math"
	"math/rand"
	"testing"

	"lumen/camera"
	"lumen/geometry"
	"lumen/material"
	"lumen/ray"
	"lumen/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func query(origin, dir vec3.T) ray.RaySegment {
	return ray.RaySegment{
		TheRay:     ray.Ray{Point: origin, Slope: dir},
		TheSegment: ray.Span{Lo: 0.001, Hi: math.Inf(1)},
	}
}

func TestHitReturnsNearestInAnyOrder(t *testing.T) {
	near := &geometry.Sphere{Center: vec3.T{0, 0, -2}, Radius: 0.5, MaterialIndex: 0}
	far := &geometry.Sphere{Center: vec3.T{0, 0, -5}, Radius: 1, MaterialIndex: 1}

	orders := [][]geometry.Geometry{{near, far}, {far, near}}
	for _, order := range orders {
		s := &Scene{}
		for _, g := range order {
			s.AddGeometry(g)
		}

		c, ok := s.Hit(query(vec3.T{}, vec3.T{0, 0, -1}))
		if !ok {
			t.Fatalf("ray through both spheres missed")
		}
		if math.Abs(c.T-1.5) > 1e-12 {
			t.Errorf("T: got %v, want 1.5", c.T)
		}
		if c.MaterialIndex != 0 {
			t.Errorf("MaterialIndex: got %d, want the near sphere's 0", c.MaterialIndex)
		}
	}
}

func TestHitEmptyAndClear(t *testing.T) {
	s := &Scene{}
	if _, ok := s.Hit(query(vec3.T{}, vec3.T{0, 1, 0})); ok {
		t.Errorf("empty scene reported a hit")
	}

	s.AddGeometry(&geometry.Sphere{Center: vec3.T{0, 3, 0}, Radius: 1})
	if _, ok := s.Hit(query(vec3.T{}, vec3.T{0, 1, 0})); !ok {
		t.Errorf("expected a hit before Clear")
	}
	s.Clear()
	if _, ok := s.Hit(query(vec3.T{}, vec3.T{0, 1, 0})); ok {
		t.Errorf("cleared scene reported a hit")
	}
}

func TestSceneIsAGeometry(t *testing.T) {
	inner := &Scene{}
	inner.AddGeometry(&geometry.Sphere{Center: vec3.T{0, 0, -3}, Radius: 1})

	outer := &Scene{}
	outer.AddGeometry(inner)
	outer.AddGeometry(&geometry.Sphere{Center: vec3.T{0, 0, -10}, Radius: 1})

	c, ok := outer.Hit(query(vec3.T{}, vec3.T{0, 0, -1}))
	if !ok || math.Abs(c.T-2) > 1e-12 {
		t.Errorf("nested scene: got (%v, %v), want T=2", c.T, ok)
	}
}

func TestValidate(t *testing.T) {
	cam, err := camera.NewThinLens(camera.Params{
		Eye: vec3.T{}, LookAt: vec3.T{0, 0, -1}, Up: vec3.T{0, 1, 0},
		VFOV: 90, AspectRatio: 1, FocusDist: 1,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s := &Scene{}
	if err := s.Validate(); err == nil {
		t.Errorf("scene without camera should not validate")
	}
	s.AddCamera(cam)

	m := s.AddMaterial(&material.Lambertian{Albedo: vec3.T{0.5, 0.5, 0.5}})
	if err := s.AddSphere(vec3.T{0, 0, -1}, 0.5, m); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	s.AddGeometry(&geometry.Sphere{Center: vec3.T{0, 0, -1}, Radius: 0.5, MaterialIndex: 7})
	if err := s.Validate(); err == nil {
		t.Errorf("dangling material index should not validate")
	}

	if err := s.AddSphere(vec3.T{0, 0, -1}, 0, m); err == nil {
		t.Errorf("zero-radius sphere should be rejected")
	}
}

func TestPresetsBuildAndValidate(t *testing.T) {
	for _, name := range PresetNames() {
		s, err := Presets[name](16.0/9.0, rand.New(rand.NewSource(1)))
		if err != nil {
			t.Errorf("%s: Unexpected error: %v", name, err)
			continue
		}
		if err := s.Validate(); err != nil {
			t.Errorf("%s: invalid scene: %v", name, err)
		}
		if len(s.Cameras) != 1 {
			t.Errorf("%s: got %d cameras, want 1", name, len(s.Cameras))
		}
	}

	if diff := cmp.Diff(PresetNames(), []string{"materials", "random", "single-sphere"}); diff != "" {
		t.Errorf("bad preset names; diff (-got +want)\n%s", diff)
	}
}

func TestSingleSpherePresetHitsUnitSphere(t *testing.T) {
	s, err := SingleSphere(1, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	c, ok := s.Hit(query(vec3.T{}, vec3.T{0, 0, -1}))
	if !ok {
		t.Fatalf("ray at the sphere missed")
	}
	if math.Abs(c.T-0.5) > 1e-12 {
		t.Errorf("T: got %v, want 0.5", c.T)
	}
	if diff := cmp.Diff(c.N, vec3.T{0, 0, 1}, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("bad normal; diff (-got +want)\n%s", diff)
	}
	if _, ok := s.Material(c).(*material.Lambertian); !ok {
		t.Errorf("got material %T, want *material.Lambertian", s.Material(c))
	}
}

func TestRandomPresetSharesGlass(t *testing.T) {
	s, err := RandomSpheres(1.5, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	uses := map[int]int{}
	for _, g := range s.Geometries {
		if sp, ok := g.(*geometry.Sphere); ok {
			if _, ok := s.Materials[sp.MaterialIndex].(*material.Dielectric); ok {
				uses[sp.MaterialIndex]++
			}
		}
	}
	if len(uses) != 1 {
		t.Fatalf("got %d distinct glass materials, want 1", len(uses))
	}
	for _, n := range uses {
		if n < 2 {
			t.Errorf("glass material used by %d spheres, want at least 2", n)
		}
	}
}
