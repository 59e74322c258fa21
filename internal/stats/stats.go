// Package stats summarises a scalar distribution against a threshold.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Distribution describes a set of values relative to a threshold.
// Min, Max, Mean, Median and StdDev ignore NaNs and are NaN when no finite
// value is present. StdDev is the population standard deviation.
type Distribution struct {
	Count    int     `json:"count"`
	NaNCount int     `json:"nan_count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`

	Threshold     float64   `json:"threshold"`
	CountAbove    int       `json:"count_above_threshold"`
	FractionAbove float64   `json:"fraction_above_threshold"`
	UniqueAbove   []float64 `json:"unique_above_threshold"`
}

// Analyze computes the distribution of values. CountAbove uses a strict
// comparison and FractionAbove divides by len(values), NaNs included.
func Analyze(values []float64, threshold float64) Distribution {
	d := Distribution{
		Count:     len(values),
		Threshold: threshold,
		Min:       math.NaN(),
		Max:       math.NaN(),
		Mean:      math.NaN(),
		Median:    math.NaN(),
		StdDev:    math.NaN(),
	}

	sorted := sortedNonNaN(values)
	d.NaNCount = len(values) - len(sorted)

	if len(sorted) > 0 {
		d.Min = sorted[0]
		d.Max = sorted[len(sorted)-1]
		d.Mean, d.StdDev = stat.PopMeanStdDev(sorted, nil)
		d.Median = median(sorted)
	}

	for i, v := range sorted {
		if v <= threshold {
			continue
		}
		d.CountAbove++
		if len(d.UniqueAbove) == 0 || sorted[i-1] != v {
			d.UniqueAbove = append(d.UniqueAbove, v)
		}
	}
	if len(values) > 0 {
		d.FractionAbove = float64(d.CountAbove) / float64(len(values))
	}
	return d
}

// sortedNonNaN returns the non-NaN values in ascending order.
func sortedNonNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// median of an ascending slice; even lengths average the two middle values.
func median(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Histogram is an equal-width binning. Edges has len(Counts)+1 entries.
// For a log histogram the edges are in log10 units.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
	Log    bool      `json:"log,omitempty"`

	// Skipped counts values left out: NaN and infinite, plus non-positive
	// ones in a log histogram.
	Skipped int `json:"skipped"`
}

// NewHistogram bins the finite values into bins equal-width buckets
// spanning [min, max].
func NewHistogram(values []float64, bins int) (Histogram, error) {
	if bins < 1 {
		return Histogram{}, fmt.Errorf("histogram needs at least 1 bin, got %d", bins)
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)
	h := histogram(sorted, bins)
	h.Skipped = len(values) - len(sorted)
	return h, nil
}

// NewLogHistogram bins log10 of the positive values.
func NewLogHistogram(values []float64, bins int) (Histogram, error) {
	if bins < 1 {
		return Histogram{}, fmt.Errorf("histogram needs at least 1 bin, got %d", bins)
	}
	logs := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 && !math.IsInf(v, 1) {
			logs = append(logs, math.Log10(v))
		}
	}
	sort.Float64s(logs)
	h := histogram(logs, bins)
	h.Log = true
	h.Skipped = len(values) - len(logs)
	return h, nil
}

func histogram(sorted []float64, bins int) Histogram {
	h := Histogram{
		Edges:  make([]float64, bins+1),
		Counts: make([]float64, bins),
	}
	if len(sorted) == 0 {
		floats.Span(h.Edges, 0, 1)
		return h
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	floats.Span(h.Edges, lo, hi)

	// stat.Histogram wants the maximum strictly below the last divider.
	dividers := make([]float64, len(h.Edges))
	copy(dividers, h.Edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	stat.Histogram(h.Counts, dividers, sorted, nil)
	return h
}
