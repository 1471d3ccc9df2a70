package render

import (
	"fmt"
	"math"
	"runtime"

	"lumen/rgb"
)

// Options is the complete render configuration.
type Options struct {
	// MaxDepth bounds the number of bounces followed per camera ray.
	MaxDepth int

	// TargetSubsamples is the number of samples each pixel should hold once
	// the render finishes.  Pixels that already hold that many are skipped.
	TargetSubsamples int

	Workers      int
	RowsPerChunk int

	// Epsilon is the lower end of the hit window for every ray.
	Epsilon float64

	Background rgb.Gradient

	Seed int64
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:         50,
		TargetSubsamples: 100,
		Workers:          runtime.NumCPU(),
		RowsPerChunk:     8,
		Epsilon:          0.001,
		Background:       rgb.DefaultGradient(),
	}
}

func (o *Options) Validate() error {
	if o.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be positive, got %d", o.MaxDepth)
	}
	if o.TargetSubsamples <= 0 {
		return fmt.Errorf("target subsamples must be positive, got %d", o.TargetSubsamples)
	}
	if o.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	if o.RowsPerChunk <= 0 {
		return fmt.Errorf("rows per chunk must be positive, got %d", o.RowsPerChunk)
	}
	if !(o.Epsilon >= 0) || math.IsInf(o.Epsilon, 1) {
		return fmt.Errorf("epsilon must be finite and non-negative, got %v", o.Epsilon)
	}
	return nil
}
