// Package report writes the artifacts of a run into a fresh run directory:
// a JSON summary, distribution histograms, per-slice heatmaps and an ASCII
// export of the visible voxels. Either every artifact is written or the
// run directory is removed.
package report

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/fieldgrid/internal/config"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/pipeline"
	"github.com/banshee-data/fieldgrid/internal/security"
	"github.com/banshee-data/fieldgrid/internal/timeutil"
)

// Artifact file names inside a run directory.
const (
	SummaryFile     = "summary.json"
	LinearHistFile  = "distribution_linear.png"
	LogHistFile     = "distribution_log.png"
	SlicesFile      = "slices.html"
	VoxelExportFile = "voxels.asc"
)

// Run is everything the writer needs from one pipeline run.
type Run struct {
	// ID names the run directory. Empty generates a UUID.
	ID string
	// Input is the source path, recorded in the summary.
	Input string
	// Values are the input scalars the histograms are drawn from.
	Values    []float64
	FillValue float64
	Result    *pipeline.Result
}

// Manifest lists what WriteAll produced.
type Manifest struct {
	RunID string
	Dir   string
	Files []string
}

// Writer writes run artifacts through FS under Dir.
type Writer struct {
	FS  fsutil.FileSystem
	Dir string

	// HistogramBins and HeatmapSlices default to the config defaults.
	HistogramBins int
	HeatmapSlices int

	// Clock stamps the summary. Defaults to the wall clock.
	Clock timeutil.Clock

	// CheckPath confines each artifact path to the run directory. Defaults
	// to the lexical security.CheckWithinDirectory; on-disk runs can use
	// security.ValidatePathWithinDirectory to also resolve symlinks.
	CheckPath func(path, dir string) error
}

// NewWriter returns a Writer on the local filesystem.
func NewWriter(dir string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Dir: dir}
}

type artifact struct {
	name   string
	render func(io.Writer) error
}

// WriteAll renders every artifact for run into Dir/run-<id>. It refuses to
// reuse an existing run directory and removes the directory again if any
// artifact fails.
func (w *Writer) WriteAll(run Run) (Manifest, error) {
	if run.Result == nil || run.Result.Field == nil {
		return Manifest{}, fmt.Errorf("report: run has no result")
	}

	id := run.ID
	if id == "" {
		id = uuid.NewString()
	}
	id = security.SanitizeFilename(id)
	runDir := filepath.Join(w.Dir, "run-"+id)
	check := w.checkPath()

	if err := check(runDir, w.Dir); err != nil {
		return Manifest{}, err
	}
	if w.FS.Exists(runDir) {
		return Manifest{}, fmt.Errorf("run directory %s already exists", runDir)
	}
	if err := w.FS.MkdirAll(runDir, 0755); err != nil {
		return Manifest{}, fmt.Errorf("failed to create run directory: %w", err)
	}

	m := Manifest{RunID: id, Dir: runDir}
	artifacts := []artifact{
		{LinearHistFile, func(out io.Writer) error { return w.renderHistogram(out, run, false) }},
		{LogHistFile, func(out io.Writer) error { return w.renderHistogram(out, run, true) }},
		{SlicesFile, func(out io.Writer) error { return w.renderSlices(out, run) }},
		{VoxelExportFile, func(out io.Writer) error { return writeVoxels(out, run.Result) }},
	}
	for _, a := range artifacts {
		if err := w.writeFile(runDir, a, check); err != nil {
			return Manifest{}, w.rollback(runDir, err)
		}
		m.Files = append(m.Files, a.name)
	}

	clock := w.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	summary := newSummary(id, clock.Now(), run, append(append([]string(nil), m.Files...), SummaryFile))
	if err := w.writeFile(runDir, artifact{SummaryFile, summary.encode}, check); err != nil {
		return Manifest{}, w.rollback(runDir, err)
	}
	m.Files = append(m.Files, SummaryFile)

	diagf("wrote %d artifacts to %s", len(m.Files), runDir)
	return m, nil
}

func (w *Writer) checkPath() func(path, dir string) error {
	if w.CheckPath != nil {
		return w.CheckPath
	}
	return security.CheckWithinDirectory
}

// writeFile renders into memory first so a rendering failure never leaves
// a truncated file behind.
func (w *Writer) writeFile(runDir string, a artifact, check func(path, dir string) error) error {
	path := filepath.Join(runDir, a.name)
	if err := check(path, runDir); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := a.render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", a.name, err)
	}

	f, err := w.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", a.name, err)
	}
	if _, err := buf.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", a.name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", a.name, err)
	}
	tracef("%s: %d bytes", path, buf.Len())
	return nil
}

func (w *Writer) rollback(runDir string, cause error) error {
	opsf("removing %s after failure: %v", runDir, cause)
	if err := w.FS.RemoveAll(runDir); err != nil {
		opsf("failed to remove %s: %v", runDir, err)
	}
	return cause
}

func (w *Writer) bins() int {
	if w.HistogramBins > 0 {
		return w.HistogramBins
	}
	return config.DefaultHistogramBins
}

func (w *Writer) slices() int {
	if w.HeatmapSlices > 0 {
		return w.HeatmapSlices
	}
	return config.DefaultHeatmapSlices
}
