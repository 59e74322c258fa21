// Package threshold turns a resampled lattice into a visibility mask and a
// per-voxel opacity ramp that any renderer can consume.
package threshold

import (
	"math"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/stats"
)

// Result is aligned element-for-element with the lattice values.
type Result struct {
	Mask    []bool
	Opacity []float64
	Stats   stats.Distribution
}

// MaskedCount returns the number of visible voxels.
func (r Result) MaskedCount() int {
	n := 0
	for _, m := range r.Mask {
		if m {
			n++
		}
	}
	return n
}

// MaskAndOpacity marks voxels strictly above threshold and ramps opacity
// linearly from 0 at the threshold to 1 at the field maximum.
func MaskAndOpacity(f *field.RegularField, threshold float64) Result {
	r := Result{
		Mask:    make([]bool, len(f.Values)),
		Opacity: make([]float64, len(f.Values)),
		Stats:   stats.Analyze(f.Values, threshold),
	}

	for i, v := range f.Values {
		r.Mask[i] = v > threshold
	}

	max := r.Stats.Max
	if math.IsNaN(max) || max <= threshold {
		// nothing above threshold: opacity stays 0
		return r
	}
	span := max - threshold
	for i, v := range f.Values {
		if !r.Mask[i] {
			continue
		}
		o := (v - threshold) / span
		if math.IsNaN(o) {
			// +Inf over an infinite span
			o = 1
		}
		r.Opacity[i] = clamp(o, 0, 1)
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
