// Package pipeline chains loading, lattice inference, resampling,
// distribution analysis and thresholding into a single batch run.
package pipeline

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fieldgrid/internal/config"
	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/lattice"
	"github.com/banshee-data/fieldgrid/internal/resample"
	"github.com/banshee-data/fieldgrid/internal/stats"
	"github.com/banshee-data/fieldgrid/internal/threshold"
)

// Kind names the input variant a run was built from.
type Kind string

const (
	KindCoordinates Kind = "coordinates"
	KindFlat        Kind = "flat"
)

// Result is the output of one run.
type Result struct {
	Kind Kind
	// Dims is the lattice shape, inferred for flat input.
	Dims field.Dims
	// Inferred is true when Dims came from InferDims rather than the
	// configured resolution.
	Inferred bool

	Field     *field.RegularField
	Input     stats.Distribution
	Threshold threshold.Result
}

// Run processes s with cfg. A nil cfg uses the defaults.
//
// Flat samples must form a perfect cube and are laid onto a unit-spaced
// lattice at the origin in x-fastest order. Coordinate samples are
// resampled at the configured resolution, or at the inferred one when
// auto_resolution is set.
func Run(cfg *config.PipelineConfig, s field.Samples) (*Result, error) {
	if cfg == nil {
		cfg = config.EmptyPipelineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	th := cfg.GetThreshold()

	res := &Result{}
	start := time.Now()

	switch v := s.(type) {
	case field.FlatSamples:
		res.Kind = KindFlat
		dims, err := lattice.InferDims(v, cfg.GetCoordinateTolerance())
		if err != nil {
			opsf("cannot lay out %d flat values: %v", v.Len(), err)
			return nil, err
		}
		f, err := flatField(v.Values, dims)
		if err != nil {
			return nil, err
		}
		res.Dims, res.Inferred, res.Field = dims, true, f
		diagf("flat input: %d values as %s lattice", v.Len(), dims)

	case field.CoordinateSamples:
		res.Kind = KindCoordinates
		if !v.Valued {
			return nil, &field.MissingColumnError{Columns: 3, Want: "x y z value"}
		}
		dims, inferred, err := resolution(cfg, v)
		if err != nil {
			return nil, err
		}
		opts := resample.Options{
			FillValue:     cfg.GetFillValue(),
			MaxElements:   cfg.GetMaxLatticeElements(),
			SnapTolerance: cfg.GetSnapTolerance(),
		}
		f, err := resample.Resample(v.Points, dims, opts)
		if err != nil {
			opsf("resample %d points onto %s failed: %v", v.Len(), dims, err)
			return nil, err
		}
		res.Dims, res.Inferred, res.Field = dims, inferred, f
		diagf("resampled %d points onto %s lattice (inferred=%v)", v.Len(), dims, inferred)

	default:
		return nil, fmt.Errorf("unsupported samples type %T", s)
	}
	tracef("lattice stage took %v", time.Since(start))

	res.Input = stats.Analyze(s.Scalars(), th)
	res.Threshold = threshold.MaskAndOpacity(res.Field, th)
	diagf("threshold %v: %d of %d input values above, %d of %d voxels visible",
		th, res.Input.CountAbove, res.Input.Count, res.Threshold.MaskedCount(), len(res.Field.Values))
	tracef("run took %v", time.Since(start))

	return res, nil
}

// resolution picks the lattice shape for coordinate samples. Inferred axes
// with a single level are raised to 2 nodes so the lattice spans the box.
func resolution(cfg *config.PipelineConfig, s field.CoordinateSamples) (field.Dims, bool, error) {
	if !cfg.GetAutoResolution() {
		return field.Dims(cfg.GetResolution()), false, nil
	}
	dims, err := lattice.InferDims(s, cfg.GetCoordinateTolerance())
	if err != nil {
		opsf("auto resolution failed: %v", err)
		return field.Dims{}, false, fmt.Errorf("infer resolution: %w", err)
	}
	for axis, n := range dims {
		if n < 2 {
			opsf("axis %d has %d distinct level(s), using 2 nodes", axis, n)
			dims[axis] = 2
		}
	}
	return dims, true, nil
}

// flatField lays values onto the unit-spaced lattice [0, d-1] per axis.
func flatField(values []float64, dims field.Dims) (*field.RegularField, error) {
	max := r3.Vec{X: float64(dims[0] - 1), Y: float64(dims[1] - 1), Z: float64(dims[2] - 1)}
	spec := field.NewGridSpec(r3.Vec{}, max, dims)
	out := make([]float64, len(values))
	copy(out, values)
	return field.NewRegularField(spec, out)
}
