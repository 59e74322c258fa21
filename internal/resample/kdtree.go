package resample

import (
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// vertexPoint is a triangulation vertex in normalized coordinates.
type vertexPoint struct {
	pos r3.Vec
	idx int
}

// Compare implements kdtree.Comparable.
func (p vertexPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(vertexPoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	case 2:
		return p.pos.Z - q.pos.Z
	default:
		panic("illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (p vertexPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance.
func (p vertexPoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.pos, c.(vertexPoint).pos))
}

// vertexPoints satisfies kdtree.Interface.
type vertexPoints []vertexPoint

func (p vertexPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p vertexPoints) Len() int                              { return len(p) }
func (p vertexPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot uses median of medians so tree shape, and therefore tie-breaking
// between equidistant vertices, is reproducible.
func (p vertexPoints) Pivot(d kdtree.Dim) int {
	plane := vertexPlane{vertexPoints: p, Dim: d}
	return kdtree.Partition(plane, kdtree.MedianOfMedians(plane))
}

// vertexPlane implements kdtree.SortSlicer along one dimension.
type vertexPlane struct {
	vertexPoints
	kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	return p.vertexPoints[i].Compare(p.vertexPoints[j], p.Dim) < 0
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertexPoints: p.vertexPoints[start:end], Dim: p.Dim}
}

func (p vertexPlane) Swap(i, j int) {
	p.vertexPoints[i], p.vertexPoints[j] = p.vertexPoints[j], p.vertexPoints[i]
}
