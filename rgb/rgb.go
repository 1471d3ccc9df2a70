// Package rgb holds the linear-RGB color conventions: named colors, the sky
// gradient, and the mapping from accumulated samples to 8-bit display values.
package rgb

import (
	"math"

	"lumen/vmath/vec3"
)

var (
	Black   = vec3.T{0, 0, 0}
	White   = vec3.T{1, 1, 1}
	SkyBlue = vec3.T{0.5, 0.7, 1.0}
	Red     = vec3.T{1, 0, 0}
)

// Gradient is the background seen by rays that escape the scene.  It blends
// from Horizon (looking straight down) to Sky (looking straight up) by the
// y-component of the unit ray direction.
type Gradient struct {
	Horizon vec3.T
	Sky     vec3.T
}

func DefaultGradient() Gradient {
	return Gradient{Horizon: White, Sky: SkyBlue}
}

func (g Gradient) At(dir vec3.T) vec3.T {
	t := 0.5 * (vec3.Normalize(dir)[1] + 1.0)
	return vec3.Lerp(g.Horizon, g.Sky, t)
}

// Pixel is a tone-mapped, quantized color.
type Pixel [3]uint8

// maxChannel keeps the quantized value at most 255.
const maxChannel = 0.999

// ToneMap averages samples accumulated into sum, applies gamma 2 (square
// root), clamps to [0, 0.999] and scales to [0, 255].
func ToneMap(sum vec3.T, samples int) Pixel {
	if samples <= 0 {
		return Pixel{}
	}
	scale := 1.0 / float64(samples)

	p := Pixel{}
	for i := range sum {
		linear := sum[i] * scale
		// NaN and negative samples map to black.
		if !(linear > 0) {
			continue
		}
		gamma := math.Min(math.Sqrt(linear), maxChannel)
		p[i] = uint8(256 * gamma)
	}
	return p
}
