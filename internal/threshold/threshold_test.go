package threshold

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fieldgrid/internal/field"
)

func lattice(t *testing.T, values ...float64) *field.RegularField {
	t.Helper()
	spec := field.NewGridSpec(r3.Vec{}, r3.Vec{X: float64(len(values) - 1)}, field.Dims{len(values), 1, 1})
	f, err := field.NewRegularField(spec, values)
	require.NoError(t, err)
	return f
}

func TestMaskAndOpacity_Ramp(t *testing.T) {
	r := MaskAndOpacity(lattice(t, 50, 150, 250), 100)

	assert.Equal(t, []bool{false, true, true}, r.Mask)
	assert.Equal(t, 0.0, r.Opacity[0])
	assert.InDelta(t, 1.0/3, r.Opacity[1], 1e-12)
	assert.Equal(t, 1.0, r.Opacity[2])
	assert.Equal(t, 2, r.Stats.CountAbove)
	assert.InDelta(t, 0.667, r.Stats.FractionAbove, 1e-3)
	assert.Equal(t, 2, r.MaskedCount())
}

func TestMaskAndOpacity_StrictBoundary(t *testing.T) {
	r := MaskAndOpacity(lattice(t, 100, 100, 200), 100)
	assert.Equal(t, []bool{false, false, true}, r.Mask)
	assert.Equal(t, []float64{0, 0, 1}, r.Opacity)
}

func TestMaskAndOpacity_NothingAbove(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"max below", []float64{1, 2, 3}},
		{"max equal", []float64{1, 2, 100}},
		{"all nan", []float64{math.NaN(), math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MaskAndOpacity(lattice(t, tt.values...), 100)
			assert.Zero(t, r.MaskedCount())
			for i, o := range r.Opacity {
				assert.Equal(t, 0.0, o, "voxel %d", i)
			}
		})
	}
}

func TestMaskAndOpacity_NaNVoxels(t *testing.T) {
	r := MaskAndOpacity(lattice(t, math.NaN(), 300, 200), 100)
	assert.False(t, r.Mask[0])
	assert.Equal(t, 0.0, r.Opacity[0])
	assert.Equal(t, 1.0, r.Opacity[1])
	assert.Equal(t, 0.5, r.Opacity[2])
}

func TestMaskAndOpacity_InfiniteMaximum(t *testing.T) {
	r := MaskAndOpacity(lattice(t, 50, 500, math.Inf(1)), 100)
	assert.Equal(t, []bool{false, true, true}, r.Mask)
	assert.Equal(t, 0.0, r.Opacity[1])
	assert.Equal(t, 1.0, r.Opacity[2])
}

func TestMaskAndOpacity_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	values := make([]float64, 4*4*4)
	for i := range values {
		values[i] = rng.ExpFloat64() * 120
	}
	spec := field.NewGridSpec(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, field.Dims{4, 4, 4})
	f, err := field.NewRegularField(spec, values)
	require.NoError(t, err)

	for _, th := range []float64{-1, 0, 50, 100, 250, 1e6} {
		r := MaskAndOpacity(f, th)
		require.Len(t, r.Mask, len(values))
		require.Len(t, r.Opacity, len(values))
		assert.Equal(t, r.Stats.CountAbove, r.MaskedCount(), "threshold %v", th)
		for i, v := range values {
			assert.GreaterOrEqual(t, r.Opacity[i], 0.0)
			assert.LessOrEqual(t, r.Opacity[i], 1.0)
			if v <= th {
				assert.Equal(t, 0.0, r.Opacity[i])
			}
		}
	}
}

func TestMaskAndOpacity_DoesNotModifyField(t *testing.T) {
	f := lattice(t, 300, 50, 200)
	MaskAndOpacity(f, 100)
	assert.Equal(t, []float64{300, 50, 200}, f.Values)
}
