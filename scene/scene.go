package scene

import (
	"errors"
	"fmt"

	"lumen/camera"
	"lumen/contact"
	"lumen/geometry"
	"lumen/material"
	"lumen/ray"
	"lumen/vmath/vec3"
)

// Scene is a flat, insertion-ordered aggregate of geometry, together with the
// material table that geometry indexes into and the cameras that view it.
//
// A Scene must not be mutated while a render is reading it.
type Scene struct {
	Materials  []material.Material
	Geometries []geometry.Geometry
	Cameras    []camera.Camera
}

// AddMaterial is a convenience function to register a material and get its
// index.  Any number of geometries may share the index.
func (s *Scene) AddMaterial(m material.Material) int {
	s.Materials = append(s.Materials, m)
	return len(s.Materials) - 1
}

func (s *Scene) AddGeometry(g geometry.Geometry) int {
	s.Geometries = append(s.Geometries, g)
	return len(s.Geometries) - 1
}

// AddSphere constructs and registers a sphere in one step.
func (s *Scene) AddSphere(center vec3.Point, radius float64, materialIndex int) error {
	sphere, err := geometry.NewSphere(center, radius, materialIndex)
	if err != nil {
		return fmt.Errorf("while creating sphere at %v: %w", center, err)
	}
	s.AddGeometry(sphere)
	return nil
}

func (s *Scene) AddCamera(c camera.Camera) int {
	s.Cameras = append(s.Cameras, c)
	return len(s.Cameras) - 1
}

// Clear drops all geometry.  Materials and cameras are kept.
func (s *Scene) Clear() {
	s.Geometries = nil
}

// Hit scans every geometry, shrinking the upper bound of the window each time a
// closer contact turns up, so the result is the nearest contact overall.
func (s *Scene) Hit(query ray.RaySegment) (contact.Contact, bool) {
	var nearest contact.Contact
	found := false
	for _, g := range s.Geometries {
		c, ok := g.Hit(query)
		if !ok {
			continue
		}
		query.TheSegment.Hi = c.T
		nearest = c
		found = true
	}
	return nearest, found
}

// Material returns the material a contact refers to.
func (s *Scene) Material(c contact.Contact) material.Material {
	return s.Materials[c.MaterialIndex]
}

// Validate checks that the scene can be rendered: there is a camera, and every
// material index refers to a registered material.
func (s *Scene) Validate() error {
	if len(s.Cameras) == 0 {
		return errors.New("scene has no camera")
	}
	for i, m := range s.Materials {
		if m == nil {
			return fmt.Errorf("material %d is nil", i)
		}
	}
	for i, g := range s.Geometries {
		if err := s.validateGeometry(g); err != nil {
			return fmt.Errorf("geometry %d: %w", i, err)
		}
	}
	return nil
}

func (s *Scene) validateGeometry(g geometry.Geometry) error {
	switch g := g.(type) {
	case nil:
		return errors.New("geometry is nil")
	case *geometry.Sphere:
		if g.MaterialIndex < 0 || g.MaterialIndex >= len(s.Materials) {
			return fmt.Errorf("material index %d out of range [0, %d)", g.MaterialIndex, len(s.Materials))
		}
	}
	return nil
}
