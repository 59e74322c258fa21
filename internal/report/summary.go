package report

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/banshee-data/fieldgrid/internal/stats"
	"github.com/banshee-data/fieldgrid/internal/version"
)

// maxUniqueListed caps the distinct above-threshold values copied into the
// summary.
const maxUniqueListed = 100

// Summary is the content of summary.json. JSON has no NaN, so undefined
// statistics are written as null.
type Summary struct {
	RunID     string `json:"run_id"`
	Version   string `json:"version"`
	CreatedAt string `json:"created_at"`
	Input     string `json:"input,omitempty"`

	Kind         string       `json:"kind"`
	Dims         [3]int       `json:"dims"`
	DimsInferred bool         `json:"dims_inferred"`
	Grid         GridSummary  `json:"grid"`
	FillValue    *float64     `json:"fill_value"`
	Threshold    float64      `json:"threshold"`
	InputStats   StatsSummary `json:"input_stats"`
	LatticeStats StatsSummary `json:"lattice_stats"`
	MaskedVoxels int          `json:"masked_voxels"`

	Files []string `json:"files"`
}

// GridSummary describes the lattice geometry.
type GridSummary struct {
	Origin  [3]float64 `json:"origin"`
	Spacing [3]float64 `json:"spacing"`
	Max     [3]float64 `json:"max"`
}

// StatsSummary is stats.Distribution with NaN mapped to null.
type StatsSummary struct {
	Count         int       `json:"count"`
	NaNCount      int       `json:"nan_count"`
	Min           *float64  `json:"min"`
	Max           *float64  `json:"max"`
	Mean          *float64  `json:"mean"`
	Median        *float64  `json:"median"`
	StdDev        *float64  `json:"std_dev"`
	CountAbove    int       `json:"count_above_threshold"`
	FractionAbove float64   `json:"fraction_above_threshold"`
	UniqueAbove   int       `json:"unique_above_count"`
	Unique        []float64 `json:"unique_above,omitempty"`
	Truncated     bool      `json:"unique_above_truncated,omitempty"`
}

func newSummary(id string, now time.Time, run Run, files []string) Summary {
	res := run.Result
	spec := res.Field.Spec
	return Summary{
		RunID:        id,
		Version:      version.String(),
		CreatedAt:    now.UTC().Format(time.RFC3339),
		Input:        run.Input,
		Kind:         string(res.Kind),
		Dims:         [3]int(res.Dims),
		DimsInferred: res.Inferred,
		Grid: GridSummary{
			Origin:  [3]float64{spec.Origin.X, spec.Origin.Y, spec.Origin.Z},
			Spacing: [3]float64{spec.Spacing.X, spec.Spacing.Y, spec.Spacing.Z},
			Max:     [3]float64{spec.Max.X, spec.Max.Y, spec.Max.Z},
		},
		FillValue:    finite(run.FillValue),
		Threshold:    res.Input.Threshold,
		InputStats:   summarize(res.Input),
		LatticeStats: summarize(res.Threshold.Stats),
		MaskedVoxels: res.Threshold.MaskedCount(),
		Files:        files,
	}
}

func summarize(d stats.Distribution) StatsSummary {
	s := StatsSummary{
		Count:         d.Count,
		NaNCount:      d.NaNCount,
		Min:           finite(d.Min),
		Max:           finite(d.Max),
		Mean:          finite(d.Mean),
		Median:        finite(d.Median),
		StdDev:        finite(d.StdDev),
		CountAbove:    d.CountAbove,
		FractionAbove: d.FractionAbove,
		UniqueAbove:   len(d.UniqueAbove),
	}
	for _, v := range d.UniqueAbove {
		if len(s.Unique) == maxUniqueListed {
			s.Truncated = true
			break
		}
		if !math.IsInf(v, 0) {
			s.Unique = append(s.Unique, v)
		}
	}
	return s
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (s Summary) encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
