// Command fieldgrid resamples a scattered 3-D scalar field onto a regular
// lattice, summarises its distribution against a threshold and optionally
// writes a report directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/fieldgrid/internal/config"
	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/lattice"
	"github.com/banshee-data/fieldgrid/internal/pipeline"
	"github.com/banshee-data/fieldgrid/internal/report"
	"github.com/banshee-data/fieldgrid/internal/resample"
	"github.com/banshee-data/fieldgrid/internal/security"
	"github.com/banshee-data/fieldgrid/internal/stats"
	"github.com/banshee-data/fieldgrid/internal/version"
)

// Options holds the parsed command line.
type Options struct {
	Input          string
	ConfigPath     string
	Skip           int
	Resolution     string
	Threshold      float64
	Fill           string
	Tolerance      float64
	AutoResolution bool
	OutputDir      string
	RunID          string
	InferOnly      bool
	Verbose        bool
	Trace          bool
	Version        bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func main() {
	log.SetFlags(log.LstdFlags)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (Options, error) {
	opts := Options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("fieldgrid", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.Input, "input", "", "Path to whitespace-delimited samples (x y z value, or one value per row)")
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a pipeline config JSON (see config/pipeline.defaults.json)")
	fs.IntVar(&opts.Skip, "skip", 0, "Header rows to skip")
	fs.StringVar(&opts.Resolution, "resolution", "", "Lattice nodes per axis as nx,ny,nz (default 50,50,50)")
	fs.Float64Var(&opts.Threshold, "threshold", config.DefaultThreshold, "Visibility threshold (strictly greater is visible)")
	fs.StringVar(&opts.Fill, "fill", "", "Value for lattice nodes outside the sample hull (number or nan; default 0)")
	fs.Float64Var(&opts.Tolerance, "tol", 0, "Coordinate tolerance for distinct-level counting")
	fs.BoolVar(&opts.AutoResolution, "auto-resolution", false, "Infer the lattice resolution from distinct coordinate levels")
	fs.StringVar(&opts.OutputDir, "output", "", "Directory to write a run report into (no report when empty)")
	fs.StringVar(&opts.RunID, "run-id", "", "Run directory name under -output (default: random UUID)")
	fs.BoolVar(&opts.InferOnly, "infer-only", false, "Only infer and print the lattice dimensions")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable diagnostic logging")
	fs.BoolVar(&opts.Trace, "trace", false, "Enable trace logging")
	fs.BoolVar(&opts.Version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// run is main without the exit, returning the process status.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}
	if opts.Version {
		fmt.Fprintln(stdout, version.String())
		return 0
	}
	if opts.Input == "" {
		fmt.Fprintln(stderr, "error: -input is required")
		return 2
	}

	setLogWriters(stderr, opts)
	defer setLogWriters(nil, Options{})

	cfg, err := buildConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	samples, err := field.LoadSamples(fsutil.OSFileSystem{}, opts.Input, cfg.GetSkipRows())
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	printInput(stdout, opts.Input, samples, cfg.GetCoordinateTolerance())

	if opts.InferOnly {
		dims, err := lattice.InferDims(samples, cfg.GetCoordinateTolerance())
		if err != nil {
			reportError(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "Inferred dimensions: %s\n", dims)
		return 0
	}

	result, err := pipeline.Run(cfg, samples)
	if err != nil {
		reportError(stderr, err)
		return 1
	}
	printResults(stdout, result)

	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			fmt.Fprintf(stderr, "error: failed to create output directory: %v\n", err)
			return 1
		}
		w := report.NewWriter(opts.OutputDir)
		w.CheckPath = security.ValidatePathWithinDirectory
		w.HistogramBins = cfg.GetHistogramBins()
		w.HeatmapSlices = cfg.GetHeatmapSlices()

		m, err := w.WriteAll(report.Run{
			ID:        opts.RunID,
			Input:     opts.Input,
			Values:    samples.Scalars(),
			FillValue: cfg.GetFillValue(),
			Result:    result,
		})
		if err != nil {
			fmt.Fprintf(stderr, "error: report not written: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "\nReport written to: %s\n", m.Dir)
		for _, f := range m.Files {
			fmt.Fprintf(stdout, "  %s\n", f)
		}
	}
	return 0
}

// buildConfig loads -config (or starts empty) and applies explicit flags
// on top.
func buildConfig(opts Options) (*config.PipelineConfig, error) {
	cfg := config.EmptyPipelineConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadPipelineConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.set["skip"] {
		cfg.SetSkipRows(opts.Skip)
	}
	if opts.set["resolution"] {
		r, err := parseResolution(opts.Resolution)
		if err != nil {
			return nil, err
		}
		cfg.SetResolution(r)
	}
	if opts.set["threshold"] {
		cfg.SetThreshold(opts.Threshold)
	}
	if opts.set["fill"] {
		v, err := strconv.ParseFloat(strings.TrimSpace(opts.Fill), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -fill %q: %w", opts.Fill, err)
		}
		cfg.SetFillValue(v)
	}
	if opts.set["tol"] {
		cfg.SetCoordinateTolerance(opts.Tolerance)
	}
	if opts.set["auto-resolution"] {
		cfg.SetAutoResolution(opts.AutoResolution)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseResolution accepts "nx,ny,nz" or a single "n" for a cube.
func parseResolution(s string) ([3]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) == 1 {
		parts = []string{parts[0], parts[0], parts[0]}
	}
	if len(parts) != 3 {
		return [3]int{}, fmt.Errorf("invalid -resolution %q: want nx,ny,nz", s)
	}
	var r [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, fmt.Errorf("invalid -resolution %q: %w", s, err)
		}
		r[i] = n
	}
	return r, nil
}

func setLogWriters(stderr io.Writer, opts Options) {
	var diag, trace io.Writer
	if opts.Verbose || opts.Trace {
		diag = stderr
	}
	if opts.Trace {
		trace = stderr
	}
	field.SetLogWriters(stderr, diag, trace)
	resample.SetLogWriters(stderr, diag, trace)
	pipeline.SetLogWriters(stderr, diag, trace)
	report.SetLogWriters(stderr, diag, trace)
	lattice.SetDiagWriter(diag)
}

// reportError prints the error kind and its diagnostic payload.
func reportError(w io.Writer, err error) {
	var (
		ambiguous  *field.AmbiguousGridError
		resolution *field.InvalidResolutionError
		degenerate *field.InterpolationDegenerateError
		missing    *field.MissingColumnError
	)
	switch {
	case errors.As(err, &ambiguous):
		fmt.Fprintf(w, "error: ambiguous grid: %v\n", err)
		fmt.Fprintf(w, "  samples:  %d\n", ambiguous.N)
		if ambiguous.HasCoordinates {
			fmt.Fprintf(w, "  distinct levels per axis: %s\n", ambiguous.AxisCounts)
		}
		fmt.Fprintf(w, "  divisors: %v\n", ambiguous.Divisors)
		fmt.Fprintln(w, "  hint: pass -resolution explicitly or supply coordinates")
	case errors.As(err, &resolution):
		fmt.Fprintf(w, "error: invalid resolution: %v\n", err)
		fmt.Fprintf(w, "  requested: %s\n", resolution.Resolution)
		if resolution.MaxElements > 0 {
			fmt.Fprintf(w, "  elements:  %d (ceiling %d)\n", resolution.Elements, resolution.MaxElements)
		}
	case errors.As(err, &degenerate):
		fmt.Fprintf(w, "error: interpolation degenerate: %v\n", err)
		fmt.Fprintf(w, "  distinct points: %d, coordinate rank: %d\n", degenerate.Points, degenerate.Rank)
	case errors.As(err, &missing):
		fmt.Fprintf(w, "error: missing column: %v\n", err)
		fmt.Fprintf(w, "  columns: %d, need: %s\n", missing.Columns, missing.Want)
	default:
		fmt.Fprintf(w, "error: %v\n", err)
	}
}

func printInput(w io.Writer, path string, s field.Samples, tol float64) {
	fmt.Fprintln(w, "=== Input ===")
	fmt.Fprintf(w, "File: %s\n", path)

	switch v := s.(type) {
	case field.CoordinateSamples:
		fmt.Fprintf(w, "Rows: %d (coordinates, value column: %v)\n", v.Len(), v.Valued)
		for axis, name := range []string{"X", "Y", "Z"} {
			vals := v.Points.Axis(axis)
			d := stats.Analyze(vals, 0)
			fmt.Fprintf(w, "%s range: [%g, %g] (%d distinct)\n", name, d.Min, d.Max, lattice.DistinctCount(vals, tol))
		}
	case field.FlatSamples:
		fmt.Fprintf(w, "Rows: %d (values only)\n", v.Len())
		fmt.Fprintf(w, "Divisors: %v\n", lattice.Divisors(v.Len()))
	}
}

func printResults(w io.Writer, r *pipeline.Result) {
	spec := r.Field.Spec
	source := "configured"
	if r.Inferred {
		source = "inferred"
	}

	fmt.Fprintln(w, "\n=== Lattice ===")
	fmt.Fprintf(w, "Dimensions: %s (%s)\n", r.Dims, source)
	fmt.Fprintf(w, "Origin: (%g, %g, %g)\n", spec.Origin.X, spec.Origin.Y, spec.Origin.Z)
	fmt.Fprintf(w, "Spacing: (%g, %g, %g)\n", spec.Spacing.X, spec.Spacing.Y, spec.Spacing.Z)

	fmt.Fprintln(w, "\n=== Input Distribution ===")
	printDistribution(w, r.Input)

	fmt.Fprintln(w, "\n=== Lattice Distribution ===")
	printDistribution(w, r.Threshold.Stats)
	fmt.Fprintf(w, "Visible voxels: %d of %d\n", r.Threshold.MaskedCount(), len(r.Field.Values))
}

func printDistribution(w io.Writer, d stats.Distribution) {
	fmt.Fprintf(w, "Count: %d (NaN: %d)\n", d.Count, d.NaNCount)
	fmt.Fprintf(w, "Min: %g  Max: %g\n", d.Min, d.Max)
	fmt.Fprintf(w, "Mean: %g  Median: %g  StdDev: %g\n", d.Mean, d.Median, d.StdDev)
	fmt.Fprintf(w, "Above %g: %d (%.2f%%), %d unique\n", d.Threshold, d.CountAbove, d.FractionAbove*100, len(d.UniqueAbove))
}
