// Package resample projects scattered samples onto a uniform lattice using
// linear barycentric interpolation over a Delaunay tetrahedralization.
//
// Coordinates are normalized per axis to [0, 1] before triangulating. The
// affine map preserves barycentric weights, so interpolated values are the
// same as in the input units, while anisotropic reservoir extents
// (kilometres laterally, metres vertically) stay well conditioned.
package resample

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fieldgrid/internal/delaunay"
	"github.com/banshee-data/fieldgrid/internal/field"
)

// DefaultMaxElements caps the lattice at 2^24 nodes (128 MiB of float64).
const DefaultMaxElements = 1 << 24

// DefaultSnapTolerance is the per-axis distance, as a fraction of the axis
// extent, within which a lattice node takes a sample's value directly.
const DefaultSnapTolerance = 1e-9

// rankRel is the singular value ratio under which a direction is considered
// absent from the point cloud.
const rankRel = 1e-10

// Options controls Resample.
type Options struct {
	// FillValue is assigned to nodes outside the convex hull of the samples.
	FillValue float64
	// MaxElements rejects lattices with more nodes. Zero disables the check.
	MaxElements int
	// SnapTolerance is relative to each axis extent.
	SnapTolerance float64
}

// DefaultOptions returns fill 0, DefaultMaxElements and DefaultSnapTolerance.
func DefaultOptions() Options {
	return Options{
		FillValue:     0,
		MaxElements:   DefaultMaxElements,
		SnapTolerance: DefaultSnapTolerance,
	}
}

// CheckResolution validates a lattice request without allocating it.
func CheckResolution(res field.Dims, maxElements int) (int, error) {
	for _, n := range res {
		if n < 2 {
			return 0, &field.InvalidResolutionError{
				Resolution: res,
				Reason:     "every axis needs at least 2 nodes",
			}
		}
	}
	n, ok := res.Elements()
	if !ok {
		return 0, &field.InvalidResolutionError{
			Resolution:  res,
			Elements:    math.MaxInt,
			MaxElements: maxElements,
			Reason:      "element count overflows",
		}
	}
	if maxElements > 0 && n > maxElements {
		return 0, &field.InvalidResolutionError{
			Resolution:  res,
			Elements:    n,
			MaxElements: maxElements,
			Reason:      "exceeds element ceiling",
		}
	}
	return n, nil
}

// Resample interpolates f onto a lattice with res nodes per axis spanning
// the bounding box of f. Nodes outside the convex hull of the valued samples
// get opts.FillValue.
//
// Errors: *field.InvalidResolutionError for res[i] < 2 or too many nodes,
// *field.InterpolationDegenerateError when the samples span no volume.
// Samples with NaN values are skipped for interpolation but still count
// towards the bounding box. Samples sharing a location are merged into one
// vertex carrying their mean, so a node on a duplicated site reproduces the
// mean rather than any single sample.
func Resample(f field.ScatteredField, res field.Dims, opts Options) (*field.RegularField, error) {
	n, err := CheckResolution(res, opts.MaxElements)
	if err != nil {
		return nil, err
	}
	if opts.SnapTolerance < 0 || math.IsNaN(opts.SnapTolerance) {
		return nil, fmt.Errorf("snap tolerance must be non-negative, got %v", opts.SnapTolerance)
	}
	diagf("lattice %s: %d nodes, %.1f MiB", res, n, float64(n)*8/(1<<20))

	valid := make(field.ScatteredField, 0, len(f))
	for _, p := range f {
		if !math.IsNaN(p.Value) {
			valid = append(valid, p)
		}
	}
	if dropped := len(f) - len(valid); dropped > 0 {
		opsf("skipping %d sample(s) with NaN values", dropped)
	}

	lo, hi := f.Bounds()
	norm := newNormalizer(lo, hi)

	verts, sums, counts := dedupe(valid, norm)
	if len(verts) < 4 {
		return nil, &field.InterpolationDegenerateError{
			Points: len(verts),
			Rank:   coordRank(verts),
			Reason: "fewer than 4 distinct sample locations",
		}
	}
	if rank := coordRank(verts); rank < 3 {
		return nil, &field.InterpolationDegenerateError{
			Points: len(verts),
			Rank:   rank,
			Reason: "samples are coplanar or colinear",
		}
	}

	mesh, err := delaunay.New(verts)
	if err != nil {
		if errors.Is(err, delaunay.ErrFlat) || errors.Is(err, delaunay.ErrTooFewPoints) {
			return nil, &field.InterpolationDegenerateError{Points: len(verts), Rank: 3, Reason: err.Error()}
		}
		return nil, fmt.Errorf("triangulate: %w", err)
	}

	// Fold near-duplicates merged by the triangulation into their vertex.
	for i, a := range mesh.Alias {
		if a != i {
			sums[a] += sums[i]
			counts[a] += counts[i]
		}
	}
	values := make([]float64, len(verts))
	tree := make(vertexPoints, 0, len(verts))
	for i := range verts {
		if mesh.Alias[i] != i {
			continue
		}
		values[i] = sums[i] / float64(counts[i])
		tree = append(tree, vertexPoint{pos: verts[i], idx: i})
	}
	diagf("triangulated %d vertices (%d samples) into %d tetrahedra", len(tree), len(valid), len(mesh.Tets))

	spec := field.NewGridSpec(lo, hi, res)
	kd := kdtree.New(tree, false)

	xs := norm.axis(0, spec.AxisCoords(0))
	ys := norm.axis(1, spec.AxisCoords(1))
	zs := norm.axis(2, spec.AxisCoords(2))

	out := make([]float64, n)
	var snapped, interpolated, filled int
	idx := 0
	for k, z := range zs {
		for _, y := range ys {
			for _, x := range xs {
				q := r3.Vec{X: x, Y: y, Z: z}
				near, _ := kd.Nearest(vertexPoint{pos: q, idx: -1})
				v := near.(vertexPoint)

				switch {
				case within(v.pos, q, opts.SnapTolerance):
					out[idx] = values[v.idx]
					snapped++
				default:
					t, w, ok := mesh.Locate(q, mesh.VertexTet(v.idx))
					if !ok {
						out[idx] = opts.FillValue
						filled++
						break
					}
					var sum float64
					for c, vi := range mesh.Tets[t] {
						sum += w[c] * values[vi]
					}
					out[idx] = sum
					interpolated++
				}
				idx++
			}
		}
		tracef("slice z=%d/%d done", k+1, len(zs))
	}
	diagf("nodes: %d snapped, %d interpolated, %d outside hull (fill %v)", snapped, interpolated, filled, opts.FillValue)

	return field.NewRegularField(spec, out)
}

func within(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

// normalizer maps the bounding box onto the unit cube. A zero-extent axis
// maps to 0.
type normalizer struct {
	lo    r3.Vec
	scale r3.Vec
}

func newNormalizer(lo, hi r3.Vec) normalizer {
	inv := func(ext float64) float64 {
		if ext == 0 {
			return 0
		}
		return 1 / ext
	}
	return normalizer{
		lo:    lo,
		scale: r3.Vec{X: inv(hi.X - lo.X), Y: inv(hi.Y - lo.Y), Z: inv(hi.Z - lo.Z)},
	}
}

func (n normalizer) apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: (p.X - n.lo.X) * n.scale.X,
		Y: (p.Y - n.lo.Y) * n.scale.Y,
		Z: (p.Z - n.lo.Z) * n.scale.Z,
	}
}

func (n normalizer) axis(axis int, coords []float64) []float64 {
	var lo, scale float64
	switch axis {
	case 0:
		lo, scale = n.lo.X, n.scale.X
	case 1:
		lo, scale = n.lo.Y, n.scale.Y
	default:
		lo, scale = n.lo.Z, n.scale.Z
	}
	out := make([]float64, len(coords))
	for i, c := range coords {
		out[i] = (c - lo) * scale
	}
	return out
}

// dedupe collapses samples at identical normalized locations, keeping first
// occurrence order. Values are accumulated for averaging.
func dedupe(f field.ScatteredField, norm normalizer) (verts []r3.Vec, sums []float64, counts []int) {
	seen := make(map[r3.Vec]int, len(f))
	for _, p := range f {
		q := norm.apply(p.Pos())
		if i, ok := seen[q]; ok {
			sums[i] += p.Value
			counts[i]++
			continue
		}
		seen[q] = len(verts)
		verts = append(verts, q)
		sums = append(sums, p.Value)
		counts = append(counts, 1)
	}
	return verts, sums, counts
}

// coordRank is the numerical rank of the centred coordinate matrix.
func coordRank(pts []r3.Vec) int {
	if len(pts) < 2 {
		return 0
	}
	var c r3.Vec
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	c = r3.Scale(1/float64(len(pts)), c)

	data := make([]float64, 0, 3*len(pts))
	for _, p := range pts {
		d := r3.Sub(p, c)
		data = append(data, d.X, d.Y, d.Z)
	}
	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(len(pts), 3, data), mat.SVDNone) {
		return 0
	}
	s := svd.Values(nil)
	if len(s) == 0 || s[0] == 0 {
		return 0
	}
	rank := 0
	for _, v := range s {
		if v > s[0]*rankRel {
			rank++
		}
	}
	return rank
}
