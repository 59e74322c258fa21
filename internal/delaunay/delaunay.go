// Package delaunay builds 3-D Delaunay tetrahedralizations and locates
// query points in them with barycentric weights.
//
// Construction is incremental Bowyer-Watson with a single symbolic vertex at
// infinity. Every hull face carries a ghost tetrahedron joining it to that
// vertex; a ghost's circumsphere is the open half-space beyond its face, plus
// the face's circumdisk when a point is coplanar with it. Points outside the
// current hull therefore grow the hull instead of relying on a finite
// enclosing tetrahedron, and the finished mesh covers the convex hull
// exactly.
//
// Every cavity is grown until all of its boundary faces are strictly visible
// from the inserted point, which keeps the mesh valid when many points are
// co-spherical (as on structured simulator lattices). Insertion order is the
// input order after the four seed points and no randomness is used, so equal
// inputs give identical meshes.
package delaunay

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// orientRel scales the orientation tolerance by radius^3.
	orientRel = 1e-12

	// duplicateRel is the distance, relative to the bounding radius, under
	// which an inserted point is treated as an existing vertex.
	duplicateRel = 1e-10

	// baryTol is how far negative a barycentric weight may be while the
	// query still counts as inside.
	baryTol = 1e-10
)

// ErrTooFewPoints is returned when fewer than four points are supplied.
var ErrTooFewPoints = errors.New("delaunay: need at least 4 points")

// ErrFlat is returned when the points span no volume.
var ErrFlat = errors.New("delaunay: points span no volume")

// Mesh is a tetrahedralization of a point set. All tetrahedra are
// positively oriented and together they fill the convex hull.
type Mesh struct {
	// Points are the input points, indexed as supplied.
	Points []r3.Vec
	// Tets lists vertex indices into Points.
	Tets [][4]int
	// Neighbors[t][i] is the tetrahedron across the face opposite vertex i
	// of Tets[t], or -1 on the hull.
	Neighbors [][4]int
	// Alias[i] is the vertex that input point i was merged into. It is i for
	// every point that became a vertex.
	Alias []int

	vertexTet []int
}

type tet struct {
	v      [4]int
	n      [4]int
	center r3.Vec
	r2     float64
	// ghost is the slot holding the vertex at infinity, or -1.
	ghost int
	dead  bool
}

type builder struct {
	pts []r3.Vec
	// inf is the index standing for the vertex at infinity. It has no
	// coordinates and only ever appears in ghost tetrahedra.
	inf     int
	tets    []tet
	last    int
	eps     float64
	dupDist float64
	alias   []int
}

// Orient returns six times the signed volume of (a, b, c, d). It is positive
// when d lies on the side of plane abc that a right-handed abc faces.
func Orient(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a)))
}

// New tetrahedralizes points. Points closer together than a tiny fraction of
// the bounding radius are merged; see Mesh.Alias.
func New(points []r3.Vec) (*Mesh, error) {
	n := len(points)
	if n < 4 {
		return nil, ErrTooFewPoints
	}

	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	radius := 0.5 * r3.Norm(r3.Sub(hi, lo))
	if radius == 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, ErrFlat
	}

	b := &builder{
		pts:     points,
		inf:     n,
		eps:     orientRel * radius * radius * radius,
		dupDist: duplicateRel * radius,
		alias:   make([]int, n),
	}
	for i := range b.alias {
		b.alias[i] = -1
	}
	if !b.seed() {
		return nil, ErrFlat
	}

	for i := 0; i < n; i++ {
		if b.alias[i] >= 0 {
			continue
		}
		if err := b.insert(i); err != nil {
			return nil, fmt.Errorf("insert point %d: %w", i, err)
		}
	}
	return b.finish(), nil
}

// seed builds the first real tetrahedron from four well-spread points and
// closes each of its faces with a ghost. It reports false when the points
// span no volume.
func (b *builder) seed() bool {
	p := b.pts
	i0, i1 := 0, -1
	var best float64
	for i := range p {
		if d := r3.Norm(r3.Sub(p[i], p[i0])); d > best {
			i1, best = i, d
		}
	}
	if i1 < 0 || best <= b.dupDist {
		return false
	}

	e := r3.Sub(p[i1], p[i0])
	i2 := -1
	best = 0
	for i := range p {
		if a := r3.Norm(r3.Cross(e, r3.Sub(p[i], p[i0]))); a > best {
			i2, best = i, a
		}
	}
	if i2 < 0 {
		return false
	}

	i3 := -1
	best = 0
	for i := range p {
		if o := math.Abs(Orient(p[i0], p[i1], p[i2], p[i])); o > best {
			i3, best = i, o
		}
	}
	if i3 < 0 || best <= b.eps {
		return false
	}

	v := [4]int{i0, i1, i2, i3}
	if b.orient(v) < 0 {
		v[0], v[1] = v[1], v[0]
	}
	none := [4]int{-1, -1, -1, -1}
	b.tets = append(b.tets, b.newTet(v, none))
	for k := 0; k < 4; k++ {
		g := v
		g[k] = b.inf
		// Swap two finite slots so the outside of the face is positive.
		a, c := (k+1)%4, (k+2)%4
		g[a], g[c] = g[c], g[a]
		b.tets = append(b.tets, b.newTet(g, none))
	}
	b.link([]int{0, 1, 2, 3, 4})

	for _, vi := range v {
		b.alias[vi] = vi
	}
	b.last = 0
	return true
}

// link connects every pair of the given tetrahedra that share a face.
func (b *builder) link(ids []int) {
	open := make(map[[3]int]face, 2*len(ids))
	for _, t := range ids {
		for i := 0; i < 4; i++ {
			key := faceKey(b.tets[t].v, i)
			if o, ok := open[key]; ok {
				b.tets[t].n[i] = o.tet
				b.tets[o.tet].n[o.local] = t
				delete(open, key)
			} else {
				open[key] = face{tet: t, local: i}
			}
		}
	}
}

func faceKey(v [4]int, skip int) [3]int {
	var key [3]int
	c := 0
	for k := 0; k < 4; k++ {
		if k != skip {
			key[c] = v[k]
			c++
		}
	}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	if key[1] > key[2] {
		key[1], key[2] = key[2], key[1]
	}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	return key
}

func (b *builder) orient(v [4]int) float64 {
	return Orient(b.pts[v[0]], b.pts[v[1]], b.pts[v[2]], b.pts[v[3]])
}

func (b *builder) newTet(v [4]int, nb [4]int) tet {
	t := tet{v: v, n: nb, ghost: -1}
	for i, vi := range v {
		if vi == b.inf {
			t.ghost = i
			return t
		}
	}

	a := b.pts[v[0]]
	u := r3.Sub(b.pts[v[1]], a)
	w := r3.Sub(b.pts[v[2]], a)
	x := r3.Sub(b.pts[v[3]], a)
	den := 2 * r3.Dot(u, r3.Cross(w, x))
	num := r3.Add(r3.Add(
		r3.Scale(r3.Norm2(u), r3.Cross(w, x)),
		r3.Scale(r3.Norm2(w), r3.Cross(x, u))),
		r3.Scale(r3.Norm2(x), r3.Cross(u, w)))
	off := r3.Scale(1/den, num)
	t.center = r3.Add(a, off)
	t.r2 = r3.Norm2(off)
	return t
}

// conflict reports whether p lies inside the circumsphere of tetrahedron ti.
// For a ghost that is the open half-space beyond its hull face; a point on
// the face plane conflicts when it is inside the face's circumdisk, which is
// where that plane cuts the circumsphere of the real tetrahedron behind it.
func (b *builder) conflict(ti int, p r3.Vec) bool {
	t := &b.tets[ti]
	if t.ghost < 0 {
		return r3.Norm2(r3.Sub(p, t.center)) < t.r2*(1-1e-12)
	}
	o := b.orientWith(t.v, t.ghost, p)
	switch {
	case o > b.eps:
		return true
	case o < -b.eps:
		return false
	}
	return b.conflict(t.n[t.ghost], p)
}

// locate walks from the last created tetrahedron towards p. It returns the
// real tetrahedron containing p, or a ghost whose face p lies strictly
// beyond. A scan is the fallback if the walk does not settle.
func (b *builder) locate(p r3.Vec) (int, error) {
	t := b.last
	if g := b.tets[t].ghost; g >= 0 {
		t = b.tets[t].n[g]
	}
	for steps := 0; steps < len(b.tets); steps++ {
		cur := &b.tets[t]
		worst, worstVal := -1, -b.eps
		for i := 0; i < 4; i++ {
			o := b.orientWith(cur.v, i, p)
			if o < worstVal {
				worst, worstVal = i, o
			}
		}
		if worst < 0 {
			return t, nil
		}
		t = cur.n[worst]
		if b.tets[t].ghost >= 0 {
			return t, nil
		}
	}

	for i := range b.tets {
		t := &b.tets[i]
		if t.dead || t.ghost >= 0 {
			continue
		}
		inside := true
		for k := 0; k < 4 && inside; k++ {
			inside = b.orientWith(t.v, k, p) >= -b.eps
		}
		if inside {
			return i, nil
		}
	}
	for i := range b.tets {
		t := &b.tets[i]
		if !t.dead && t.ghost >= 0 && b.orientWith(t.v, t.ghost, p) > b.eps {
			return i, nil
		}
	}
	return -1, fmt.Errorf("no tetrahedron contains the point")
}

// orientWith is the orientation of v with slot i replaced by p. Slot i must
// hold the vertex at infinity if v has one.
func (b *builder) orientWith(v [4]int, i int, p r3.Vec) float64 {
	var q [4]r3.Vec
	for k := 0; k < 4; k++ {
		if k == i {
			q[k] = p
		} else {
			q[k] = b.pts[v[k]]
		}
	}
	return Orient(q[0], q[1], q[2], q[3])
}

// fits reports whether replacing vertex i of tetrahedron ti by point pi
// gives a valid tetrahedron. Real results must be positively oriented. A
// new ghost joins a horizon edge to pi, and the hull face across that edge
// must not lie outside the new face.
func (b *builder) fits(ti, i, pi int) bool {
	t := &b.tets[ti]
	p := b.pts[pi]
	if t.ghost < 0 || t.ghost == i {
		return b.orientWith(t.v, i, p) > b.eps
	}

	nb := &b.tets[t.n[i]]
	apex := -1
	for _, u := range nb.v {
		if u != t.v[0] && u != t.v[1] && u != t.v[2] && u != t.v[3] {
			apex = u
		}
	}
	if apex < 0 {
		return false
	}
	v := t.v
	v[i] = pi
	return b.orientWith(v, t.ghost, b.pts[apex]) <= b.eps
}

type face struct {
	tet   int
	local int
}

func (b *builder) insert(pi int) error {
	p := b.pts[pi]
	seed, err := b.locate(p)
	if err != nil {
		return err
	}

	cavity := []int{seed}
	in := map[int]bool{seed: true}
	for k := 0; k < len(cavity); k++ {
		for _, nb := range b.tets[cavity[k]].n {
			if in[nb] {
				continue
			}
			if b.conflict(nb, p) {
				in[nb] = true
				cavity = append(cavity, nb)
			}
		}
	}

	for _, t := range cavity {
		for _, vi := range b.tets[t].v {
			if vi != b.inf && r3.Norm(r3.Sub(b.pts[vi], p)) <= b.dupDist {
				b.alias[pi] = b.alias[vi]
				return nil
			}
		}
	}
	b.alias[pi] = pi

	// Grow until every boundary face fits p.
	var boundary []face
	for {
		boundary = boundary[:0]
		grown := false
		for k := 0; k < len(cavity); k++ {
			t := cavity[k]
			for i := 0; i < 4; i++ {
				nb := b.tets[t].n[i]
				if in[nb] {
					continue
				}
				if b.fits(t, i, pi) {
					boundary = append(boundary, face{tet: t, local: i})
					continue
				}
				in[nb] = true
				cavity = append(cavity, nb)
				grown = true
			}
		}
		if !grown {
			break
		}
	}
	if len(boundary) == 0 {
		return fmt.Errorf("cavity covers the whole mesh")
	}

	type half struct{ tet, local int }
	open := make(map[[2]int]half, 3*len(boundary))
	for _, f := range boundary {
		old := b.tets[f.tet]
		v := old.v
		v[f.local] = pi
		nb := [4]int{-1, -1, -1, -1}
		outer := old.n[f.local]
		nb[f.local] = outer
		idx := len(b.tets)
		b.tets = append(b.tets, b.newTet(v, nb))

		for k := 0; k < 4; k++ {
			if b.tets[outer].n[k] == f.tet {
				b.tets[outer].n[k] = idx
				break
			}
		}

		for j := 0; j < 4; j++ {
			if j == f.local {
				continue
			}
			var key [2]int
			c := 0
			for k := 0; k < 4; k++ {
				if k != j && k != f.local {
					key[c] = v[k]
					c++
				}
			}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if other, ok := open[key]; ok {
				b.tets[idx].n[j] = other.tet
				b.tets[other.tet].n[other.local] = idx
				delete(open, key)
			} else {
				open[key] = half{tet: idx, local: j}
			}
		}
		b.last = idx
	}
	if len(open) != 0 {
		return fmt.Errorf("cavity re-triangulation left %d unmatched faces", len(open))
	}

	for _, t := range cavity {
		b.tets[t].dead = true
	}
	return nil
}

// finish drops dead and ghost tetrahedra. Faces that bordered a ghost are
// the hull and get neighbour -1.
func (b *builder) finish() *Mesh {
	n := len(b.pts)
	remap := make([]int, len(b.tets))
	var keep []int
	for i := range b.tets {
		remap[i] = -1
		if b.tets[i].dead || b.tets[i].ghost >= 0 {
			continue
		}
		remap[i] = len(keep)
		keep = append(keep, i)
	}

	m := &Mesh{
		Points:    b.pts,
		Tets:      make([][4]int, len(keep)),
		Neighbors: make([][4]int, len(keep)),
		Alias:     b.alias,
		vertexTet: make([]int, n),
	}
	for i := range m.vertexTet {
		m.vertexTet[i] = -1
	}
	for ni, oi := range keep {
		t := b.tets[oi]
		m.Tets[ni] = t.v
		for k := 0; k < 4; k++ {
			m.Neighbors[ni][k] = remap[t.n[k]]
			if m.vertexTet[t.v[k]] < 0 {
				m.vertexTet[t.v[k]] = ni
			}
		}
	}
	return m
}

// VertexTet returns a tetrahedron incident to vertex v, or -1 when v was
// merged into another vertex or lies on no remaining tetrahedron.
func (m *Mesh) VertexTet(v int) int {
	if v < 0 || v >= len(m.vertexTet) {
		return -1
	}
	return m.vertexTet[v]
}

// Barycentric returns the weights of q with respect to tetrahedron t.
func (m *Mesh) Barycentric(t int, q r3.Vec) [4]float64 {
	v := m.Tets[t]
	p := [4]r3.Vec{m.Points[v[0]], m.Points[v[1]], m.Points[v[2]], m.Points[v[3]]}
	vol := Orient(p[0], p[1], p[2], p[3])
	var w [4]float64
	for i := 0; i < 4; i++ {
		s := p
		s[i] = q
		w[i] = Orient(s[0], s[1], s[2], s[3]) / vol
	}
	return w
}

// Locate finds the tetrahedron containing q by walking from start (any
// valid index; out-of-range values start at 0). ok is false when q lies
// outside the convex hull.
func (m *Mesh) Locate(q r3.Vec, start int) (t int, w [4]float64, ok bool) {
	if len(m.Tets) == 0 {
		return -1, w, false
	}
	if start < 0 || start >= len(m.Tets) {
		start = 0
	}

	t = start
	for steps := 0; steps <= len(m.Tets); steps++ {
		w = m.Barycentric(t, q)
		worst := -1
		worstVal := -baryTol
		for i, wi := range w {
			if wi < worstVal {
				worst, worstVal = i, wi
			}
		}
		if worst < 0 {
			return t, w, true
		}
		next := m.Neighbors[t][worst]
		if next < 0 {
			return -1, w, false
		}
		t = next
	}

	for i := range m.Tets {
		w = m.Barycentric(i, q)
		if w[0] >= -baryTol && w[1] >= -baryTol && w[2] >= -baryTol && w[3] >= -baryTol {
			return i, w, true
		}
	}
	return -1, w, false
}
