package field

import (
	"fmt"
	"strings"
)

// AmbiguousGridError reports that the sample count or coordinate structure
// does not imply a unique lattice shape.
type AmbiguousGridError struct {
	// N is the number of samples.
	N int
	// HasCoordinates is true when AxisCounts holds distinct-value counts.
	HasCoordinates bool
	AxisCounts     Dims
	// Divisors lists every divisor of N, ascending.
	Divisors []int
}

func (e *AmbiguousGridError) Error() string {
	if e.HasCoordinates {
		return fmt.Sprintf("ambiguous grid: distinct axis counts %s multiply to %d, not %d points (divisors of %d: %s)",
			e.AxisCounts, e.AxisCounts[0]*e.AxisCounts[1]*e.AxisCounts[2], e.N, e.N, formatInts(e.Divisors))
	}
	return fmt.Sprintf("ambiguous grid: %d values are not a perfect cube (divisors: %s)", e.N, formatInts(e.Divisors))
}

// InvalidResolutionError reports a degenerate or oversized lattice request.
type InvalidResolutionError struct {
	Resolution  Dims
	Elements    int
	MaxElements int
	Reason      string
}

func (e *InvalidResolutionError) Error() string {
	if e.MaxElements > 0 && e.Elements > e.MaxElements {
		return fmt.Sprintf("invalid resolution %s: %s (%d elements, ceiling %d)", e.Resolution, e.Reason, e.Elements, e.MaxElements)
	}
	return fmt.Sprintf("invalid resolution %s: %s", e.Resolution, e.Reason)
}

// InterpolationDegenerateError reports scattered geometry that cannot be
// tetrahedralized (too few points, coplanar, colinear).
type InterpolationDegenerateError struct {
	Points int
	Rank   int
	Reason string
}

func (e *InterpolationDegenerateError) Error() string {
	return fmt.Sprintf("degenerate geometry: %s (%d distinct points, rank %d)", e.Reason, e.Points, e.Rank)
}

// MissingColumnError reports input rows without the columns a stage needs.
type MissingColumnError struct {
	Columns int
	Want    string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column: have %d column(s), need %s", e.Columns, e.Want)
}

func formatInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
