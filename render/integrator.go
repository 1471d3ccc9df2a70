package render

import (
	"math"
	"math/rand"

	"lumen/ray"
	"lumen/rgb"
	"lumen/scene"
	"lumen/vmath/vec3"
)

// RayColor estimates the light arriving along r.  depth is the number of
// bounces still allowed; at zero the path contributes black.
//
// The bounce chain is followed iteratively, carrying the product of the
// attenuations seen so far.
func RayColor(s *scene.Scene, r ray.Ray, depth int, rng *rand.Rand, opts *Options) vec3.T {
	throughput := rgb.White
	for ; depth > 0; depth-- {
		c, ok := s.Hit(ray.RaySegment{
			TheRay:     r,
			TheSegment: ray.Span{Lo: opts.Epsilon, Hi: math.Inf(1)},
		})
		if !ok {
			return vec3.MulVV(throughput, opts.Background.At(r.Slope))
		}

		info, ok := s.Material(c).Scatter(c, rng)
		if !ok {
			return rgb.Black
		}

		throughput = vec3.MulVV(throughput, info.Attenuation)
		r = info.Scattered
	}
	return rgb.Black
}
