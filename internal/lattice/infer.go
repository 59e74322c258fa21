// Package lattice infers the regular lattice shape implied by loaded samples.
package lattice

import (
	"fmt"
	"io"
	"log"
	"math"
	"sort"

	"github.com/banshee-data/fieldgrid/internal/field"
)

var diagLogger *log.Logger

// SetDiagWriter routes inference diagnostics (divisor lists, axis counts) to
// w. nil disables them.
func SetDiagWriter(w io.Writer) {
	if w == nil {
		diagLogger = nil
		return
	}
	diagLogger = log.New(w, "[lattice] ", log.LstdFlags|log.Lmicroseconds)
}

func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// InferDims returns the lattice shape the samples represent.
//
// With coordinates, each axis count is the number of distinct values along
// that axis, where sorted neighbours no more than tol apart are the same
// level. The counts must multiply to the number of samples.
//
// Without coordinates the count must be a perfect cube.
//
// Both branches fail with *field.AmbiguousGridError rather than guessing.
func InferDims(s field.Samples, tol float64) (field.Dims, error) {
	if tol < 0 || math.IsNaN(tol) {
		return field.Dims{}, fmt.Errorf("coordinate tolerance must be non-negative, got %v", tol)
	}
	n := s.Len()

	switch v := s.(type) {
	case field.CoordinateSamples:
		if n == 0 {
			return field.Dims{}, &field.AmbiguousGridError{N: 0, HasCoordinates: true}
		}
		var dims field.Dims
		for axis := 0; axis < 3; axis++ {
			dims[axis] = DistinctCount(v.Points.Axis(axis), tol)
		}
		diagf("distinct axis values: %s for %d points", dims, n)
		if total, ok := dims.Elements(); !ok || total != n {
			return field.Dims{}, &field.AmbiguousGridError{
				N:              n,
				HasCoordinates: true,
				AxisCounts:     dims,
				Divisors:       Divisors(n),
			}
		}
		return dims, nil

	case field.FlatSamples:
		divs := Divisors(n)
		diagf("%d values, divisors %v", n, divs)
		d := CubeRoot(n)
		if n == 0 || d*d*d != n {
			return field.Dims{}, &field.AmbiguousGridError{N: n, Divisors: divs}
		}
		return field.Dims{d, d, d}, nil

	default:
		return field.Dims{}, fmt.Errorf("unsupported samples type %T", s)
	}
}

// DistinctCount counts the levels in values. Sorted neighbours closer than or
// equal to tol collapse into one level, so a run of small steps chains into a
// single level. tol == 0 is exact equality.
func DistinctCount(values []float64, tol float64) int {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	count := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] > tol {
			count++
		}
	}
	return count
}

// CubeRoot returns floor(cbrt(n)) for n >= 0, exact in integers.
func CubeRoot(n int) int {
	if n <= 0 {
		return 0
	}
	d := int(math.Cbrt(float64(n)))
	for d > 0 && cube(d) > n {
		d--
	}
	for cube(d+1) <= n {
		d++
	}
	return d
}

func cube(d int) int { return d * d * d }

// Divisors returns every positive divisor of n in ascending order.
func Divisors(n int) []int {
	if n <= 0 {
		return nil
	}
	var low, high []int
	for i := 1; i*i <= n; i++ {
		if n%i != 0 {
			continue
		}
		low = append(low, i)
		if j := n / i; j != i {
			high = append(high, j)
		}
	}
	for i := len(high) - 1; i >= 0; i-- {
		low = append(low, high[i])
	}
	return low
}
