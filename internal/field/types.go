package field

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PointSample is one simulator output location and its scalar quantity.
type PointSample struct {
	X, Y, Z float64
	Value   float64
}

// Pos returns the sample location as a vector.
func (p PointSample) Pos() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// ScatteredField is an ordered, immutable sequence of samples. Coordinates
// need not be unique.
type ScatteredField []PointSample

// Values returns the scalar column in sample order.
func (f ScatteredField) Values() []float64 {
	out := make([]float64, len(f))
	for i, p := range f {
		out[i] = p.Value
	}
	return out
}

// Axis returns the coordinates along one axis (0=x, 1=y, 2=z).
func (f ScatteredField) Axis(axis int) []float64 {
	out := make([]float64, len(f))
	for i, p := range f {
		switch axis {
		case 0:
			out[i] = p.X
		case 1:
			out[i] = p.Y
		case 2:
			out[i] = p.Z
		default:
			panic("illegal axis")
		}
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the sample coordinates.
// An empty field returns zero vectors.
func (f ScatteredField) Bounds() (min, max r3.Vec) {
	if len(f) == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	min = f[0].Pos()
	max = min
	for _, p := range f[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return min, max
}

// Samples is the loaded input, resolved once at load time into either
// CoordinateSamples or FlatSamples.
type Samples interface {
	// Len returns the number of rows.
	Len() int
	// Scalars returns the value column, or nil when no value column exists.
	Scalars() []float64

	isSamples()
}

// CoordinateSamples holds rows with explicit x y z columns. Valued is false
// when the input had exactly three columns.
type CoordinateSamples struct {
	Points ScatteredField
	Valued bool
}

func (c CoordinateSamples) Len() int { return len(c.Points) }

func (c CoordinateSamples) Scalars() []float64 {
	if !c.Valued {
		return nil
	}
	return c.Points.Values()
}

func (CoordinateSamples) isSamples() {}

// FlatSamples is a bare list of values with no coordinates.
type FlatSamples struct {
	Values []float64
}

func (s FlatSamples) Len() int { return len(s.Values) }

func (s FlatSamples) Scalars() []float64 { return s.Values }

func (FlatSamples) isSamples() {}

// Dims is a lattice shape (nx, ny, nz).
type Dims [3]int

// Elements returns nx*ny*nz. ok is false when a component is negative or
// the product overflows int.
func (d Dims) Elements() (n int, ok bool) {
	n = 1
	for _, v := range d {
		if v < 0 {
			return 0, false
		}
		if v != 0 && n > math.MaxInt/v {
			return 0, false
		}
		n *= v
	}
	return n, true
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%d", d[0], d[1], d[2])
}

// GridSpec describes a uniform lattice. Spacing[i] = (Max[i]-Origin[i]) /
// (Dims[i]-1), or zero for a single-node axis.
type GridSpec struct {
	Origin  r3.Vec
	Spacing r3.Vec
	Dims    Dims

	// Max is the far corner. Node Dims[i]-1 sits exactly on it.
	Max r3.Vec
}

// NewGridSpec builds the lattice spanning [min, max] with dims nodes per axis.
func NewGridSpec(min, max r3.Vec, dims Dims) GridSpec {
	return GridSpec{
		Origin: min,
		Max:    max,
		Dims:   dims,
		Spacing: r3.Vec{
			X: axisSpacing(min.X, max.X, dims[0]),
			Y: axisSpacing(min.Y, max.Y, dims[1]),
			Z: axisSpacing(min.Z, max.Z, dims[2]),
		},
	}
}

func axisSpacing(lo, hi float64, n int) float64 {
	if n <= 1 {
		return 0
	}
	return (hi - lo) / float64(n-1)
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// AxisCoord returns the coordinate of node i along axis, with linspace
// semantics: the last node equals Max exactly.
func (g GridSpec) AxisCoord(axis, i int) float64 {
	n := g.Dims[axis]
	if n > 1 && i == n-1 {
		return component(g.Max, axis)
	}
	return component(g.Origin, axis) + float64(i)*component(g.Spacing, axis)
}

// AxisCoords returns all node coordinates along axis.
func (g GridSpec) AxisCoords(axis int) []float64 {
	out := make([]float64, g.Dims[axis])
	for i := range out {
		out[i] = g.AxisCoord(axis, i)
	}
	return out
}

// RegularField is a dense lattice of values in x-fastest order.
type RegularField struct {
	Spec   GridSpec
	Values []float64
}

// NewRegularField checks that values matches the lattice size.
func NewRegularField(spec GridSpec, values []float64) (*RegularField, error) {
	n, ok := spec.Dims.Elements()
	if !ok {
		return nil, fmt.Errorf("lattice %s overflows", spec.Dims)
	}
	if len(values) != n {
		return nil, fmt.Errorf("lattice %s needs %d values, got %d", spec.Dims, n, len(values))
	}
	return &RegularField{Spec: spec, Values: values}, nil
}

// Index maps lattice indices to the flat array position.
func (f *RegularField) Index(i, j, k int) int {
	d := f.Spec.Dims
	return i + d[0]*(j+d[1]*k)
}

// At returns the value at lattice node (i, j, k).
func (f *RegularField) At(i, j, k int) float64 {
	return f.Values[f.Index(i, j, k)]
}

// Coord returns the location of lattice node (i, j, k).
func (f *RegularField) Coord(i, j, k int) r3.Vec {
	return r3.Vec{
		X: f.Spec.AxisCoord(0, i),
		Y: f.Spec.AxisCoord(1, j),
		Z: f.Spec.AxisCoord(2, k),
	}
}

// Unflatten is the inverse of Index.
func (f *RegularField) Unflatten(idx int) (i, j, k int) {
	d := f.Spec.Dims
	i = idx % d[0]
	j = (idx / d[0]) % d[1]
	k = idx / (d[0] * d[1])
	return i, j, k
}

// Lookup returns the value at the lattice node that coincides with p to
// within tol on every axis.
func (f *RegularField) Lookup(p r3.Vec, tol float64) (float64, bool) {
	var idx [3]int
	for axis := 0; axis < 3; axis++ {
		n := f.Spec.Dims[axis]
		step := component(f.Spec.Spacing, axis)
		c := component(p, axis)
		i := 0
		if step != 0 {
			i = int(math.Round((c - component(f.Spec.Origin, axis)) / step))
		}
		if i < 0 || i >= n {
			return 0, false
		}
		if math.Abs(f.Spec.AxisCoord(axis, i)-c) > tol {
			return 0, false
		}
		idx[axis] = i
	}
	return f.At(idx[0], idx[1], idx[2]), true
}
