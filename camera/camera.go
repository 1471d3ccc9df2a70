package camera

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"lumen/ray"
	"lumen/vmath/vec3"
)

var ErrDegenerate = errors.New("degenerate camera")

// Camera turns a pixel (plus random jitter) into a primary ray.  Row 0 is the
// top of the image.
type Camera interface {
	ImageToRay(curRow, imgRows, curCol, imgCols int, rng *rand.Rand) ray.Ray
}

// Params are the scene-setup values a ThinLens is derived from.
type Params struct {
	Eye    vec3.Point
	LookAt vec3.Point
	Up     vec3.T

	// Vertical field of view, in degrees.
	VFOV        float64
	AspectRatio float64

	// Aperture is the lens diameter.  Zero gives a pinhole camera.
	Aperture  float64
	FocusDist float64
}

// ThinLens is a camera with a finite circular aperture focused on the plane
// FocusDist in front of the eye.  Immutable after construction.
type ThinLens struct {
	origin          vec3.Point
	lowerLeftCorner vec3.Point
	horizontal      vec3.T
	vertical        vec3.T
	u, v, w         vec3.T
	lensRadius      float64
}

func NewThinLens(p Params) (*ThinLens, error) {
	if !(p.VFOV > 0 && p.VFOV < 180) {
		return nil, fmt.Errorf("%w: vertical field of view %v outside (0, 180)", ErrDegenerate, p.VFOV)
	}
	if !(p.AspectRatio > 0) || math.IsInf(p.AspectRatio, 0) {
		return nil, fmt.Errorf("%w: aspect ratio %v must be positive", ErrDegenerate, p.AspectRatio)
	}
	if !(p.Aperture >= 0) {
		return nil, fmt.Errorf("%w: aperture %v must be non-negative", ErrDegenerate, p.Aperture)
	}
	if !(p.FocusDist > 0) || math.IsInf(p.FocusDist, 0) {
		return nil, fmt.Errorf("%w: focus distance %v must be positive", ErrDegenerate, p.FocusDist)
	}

	back := vec3.SubVV(p.Eye, p.LookAt)
	if back.NearZero() {
		return nil, fmt.Errorf("%w: eye %v and look-at point coincide", ErrDegenerate, p.Eye)
	}
	w := vec3.Normalize(back)

	side := vec3.CProd(p.Up, w)
	if side.NearZero() {
		return nil, fmt.Errorf("%w: up vector %v is parallel to the view direction", ErrDegenerate, p.Up)
	}
	u := vec3.Normalize(side)
	v := vec3.CProd(w, u)

	viewportHeight := 2.0 * math.Tan(p.VFOV*math.Pi/180.0/2.0)
	viewportWidth := p.AspectRatio * viewportHeight

	horizontal := vec3.MulVS(u, viewportWidth*p.FocusDist)
	vertical := vec3.MulVS(v, viewportHeight*p.FocusDist)

	lowerLeftCorner := p.Eye
	lowerLeftCorner = vec3.SubVV(lowerLeftCorner, vec3.DivVS(horizontal, 2))
	lowerLeftCorner = vec3.SubVV(lowerLeftCorner, vec3.DivVS(vertical, 2))
	lowerLeftCorner = vec3.SubVV(lowerLeftCorner, vec3.MulVS(w, p.FocusDist))

	return &ThinLens{
		origin:          p.Eye,
		lowerLeftCorner: lowerLeftCorner,
		horizontal:      horizontal,
		vertical:        vertical,
		u:               u,
		v:               v,
		w:               w,
		lensRadius:      p.Aperture / 2,
	}, nil
}

// GenerateRay maps viewport coordinates s (left to right) and t (bottom to top),
// both nominally in [0, 1], to a ray leaving a random point on the lens.
func (c *ThinLens) GenerateRay(s, t float64, rng *rand.Rand) ray.Ray {
	origin := c.origin
	if c.lensRadius > 0 {
		rd := vec3.MulVS(vec3.UniformInUnitDiskDistribution(rng), c.lensRadius)
		origin = vec3.AddVV(origin, vec3.AddVV(vec3.MulVS(c.u, rd[0]), vec3.MulVS(c.v, rd[1])))
	}

	target := vec3.AddVV(c.lowerLeftCorner, vec3.AddVV(vec3.MulVS(c.horizontal, s), vec3.MulVS(c.vertical, t)))
	return ray.Ray{
		Point: origin,
		Slope: vec3.SubVV(target, origin),
	}
}

func (c *ThinLens) ImageToRay(curRow, imgRows, curCol, imgCols int, rng *rand.Rand) ray.Ray {
	s := (float64(curCol) + rng.Float64()) / spanOf(imgCols)
	t := (float64(imgRows-1-curRow) + rng.Float64()) / spanOf(imgRows)
	return c.GenerateRay(s, t, rng)
}

// spanOf is the divisor that maps pixel indices [0, n-1] onto [0, 1].
func spanOf(n int) float64 {
	if n <= 1 {
		return 1
	}
	return float64(n - 1)
}
