package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldgrid/internal/config"
	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/pipeline"
	"github.com/banshee-data/fieldgrid/internal/security"
	"github.com/banshee-data/fieldgrid/internal/timeutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testRun(t *testing.T) Run {
	t.Helper()
	values := make([]float64, 27)
	for i := range values {
		values[i] = float64(i)
	}
	cfg := config.EmptyPipelineConfig()
	cfg.SetThreshold(10)
	res, err := pipeline.Run(cfg, field.FlatSamples{Values: values})
	require.NoError(t, err)
	return Run{ID: "test-run", Input: "values.txt", Values: values, FillValue: 0, Result: res}
}

func newMemWriter() (*Writer, *fsutil.MemoryFileSystem) {
	mfs := fsutil.NewMemoryFileSystem()
	return &Writer{
		FS:    mfs,
		Dir:   "/out",
		Clock: timeutil.NewMockClock(time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)),
	}, mfs
}

func TestWriteAll(t *testing.T) {
	w, mfs := newMemWriter()
	run := testRun(t)

	m, err := w.WriteAll(run)
	require.NoError(t, err)

	assert.Equal(t, "test-run", m.RunID)
	assert.Equal(t, "/out/run-test-run", m.Dir)
	wantFiles := []string{LinearHistFile, LogHistFile, SlicesFile, VoxelExportFile, SummaryFile}
	if diff := cmp.Diff(wantFiles, m.Files); diff != "" {
		t.Errorf("manifest files mismatch (-want +got):\n%s", diff)
	}
	var onDisk []string
	for _, name := range wantFiles {
		onDisk = append(onDisk, filepath.Join(m.Dir, name))
	}
	assert.ElementsMatch(t, onDisk, mfs.Files("/out"))

	for _, name := range []string{LinearHistFile, LogHistFile} {
		data, err := mfs.ReadFile(filepath.Join(m.Dir, name))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s must be a PNG", name)
	}

	html, err := mfs.ReadFile(filepath.Join(m.Dir, SlicesFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
	assert.Contains(t, string(html), "above threshold")
}

func TestWriteAll_Summary(t *testing.T) {
	w, mfs := newMemWriter()
	run := testRun(t)

	m, err := w.WriteAll(run)
	require.NoError(t, err)

	data, err := mfs.ReadFile(filepath.Join(m.Dir, SummaryFile))
	require.NoError(t, err)
	var s Summary
	require.NoError(t, json.Unmarshal(data, &s))

	assert.Equal(t, "test-run", s.RunID)
	assert.Equal(t, "2026-05-04T03:02:01Z", s.CreatedAt)
	assert.Equal(t, "values.txt", s.Input)
	assert.Equal(t, "flat", s.Kind)
	assert.Equal(t, [3]int{3, 3, 3}, s.Dims)
	assert.True(t, s.DimsInferred)
	assert.Equal(t, [3]float64{1, 1, 1}, s.Grid.Spacing)
	assert.Equal(t, 10.0, s.Threshold)
	assert.Equal(t, 16, s.MaskedVoxels)
	assert.Equal(t, 16, s.InputStats.CountAbove)
	assert.Equal(t, 16, s.InputStats.UniqueAbove)
	require.NotNil(t, s.InputStats.Median)
	assert.Equal(t, 13.0, *s.InputStats.Median)
	require.NotNil(t, s.FillValue)
	assert.Equal(t, 0.0, *s.FillValue)
	assert.Equal(t, m.Files, s.Files)
}

func TestWriteAll_NaNBecomesNull(t *testing.T) {
	w, mfs := newMemWriter()
	run := testRun(t)
	run.FillValue = math.NaN()
	run.Result.Input.Min = math.NaN()

	m, err := w.WriteAll(run)
	require.NoError(t, err)

	data, err := mfs.ReadFile(filepath.Join(m.Dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fill_value": null`)
	assert.Contains(t, string(data), `"min": null`)
}

func TestWriteAll_Voxels(t *testing.T) {
	w, mfs := newMemWriter()
	m, err := w.WriteAll(testRun(t))
	require.NoError(t, err)

	data, err := mfs.ReadFile(filepath.Join(m.Dir, VoxelExportFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3+16)
	assert.Equal(t, "# Format: X Y Z Value Opacity", lines[2])
	// value 11 sits at (2,0,1) in x-fastest order
	assert.Equal(t, "2.000000 0.000000 1.000000 11.000000 0.062500", lines[3])
	assert.Equal(t, "2.000000 2.000000 2.000000 26.000000 1.000000", lines[len(lines)-1])
}

func TestWriteAll_GeneratedID(t *testing.T) {
	w, _ := newMemWriter()
	run := testRun(t)
	run.ID = ""

	m, err := w.WriteAll(run)
	require.NoError(t, err)
	assert.Len(t, m.RunID, 36)
	assert.Equal(t, "/out/run-"+m.RunID, m.Dir)
}

func TestWriteAll_SanitizesID(t *testing.T) {
	w, _ := newMemWriter()
	run := testRun(t)
	run.ID = "../../etc"

	m, err := w.WriteAll(run)
	require.NoError(t, err)
	assert.Equal(t, "/out/run-etc", m.Dir)
}

func TestWriteAll_RefusesExistingRun(t *testing.T) {
	w, _ := newMemWriter()
	run := testRun(t)

	_, err := w.WriteAll(run)
	require.NoError(t, err)
	_, err = w.WriteAll(run)
	assert.ErrorContains(t, err, "already exists")
}

func TestWriteAll_RollsBackOnFailure(t *testing.T) {
	for _, failing := range []string{LinearHistFile, SlicesFile, SummaryFile} {
		t.Run(failing, func(t *testing.T) {
			w, mfs := newMemWriter()
			boom := errors.New("disk full")
			mfs.FailCreate = func(name string) error {
				if filepath.Base(name) == failing {
					return boom
				}
				return nil
			}

			var ops bytes.Buffer
			SetLogWriters(&ops, nil, nil)
			t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

			_, err := w.WriteAll(testRun(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, boom))
			assert.False(t, mfs.Exists("/out/run-test-run"), "run directory must be removed")
			assert.Empty(t, mfs.Files("/out"))
			assert.Contains(t, ops.String(), "removing /out/run-test-run")
		})
	}
}

func TestWriteAll_NoResult(t *testing.T) {
	w, _ := newMemWriter()
	_, err := w.WriteAll(Run{ID: "x"})
	assert.Error(t, err)
}

func TestWriteAll_OnDisk(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.CheckPath = security.ValidatePathWithinDirectory
	w.HistogramBins = 10
	w.HeatmapSlices = 1

	m, err := w.WriteAll(testRun(t))
	require.NoError(t, err)
	for _, name := range m.Files {
		assert.True(t, w.FS.Exists(filepath.Join(m.Dir, name)), name)
	}
}

func TestSliceIndices(t *testing.T) {
	tests := []struct {
		nz, n int
		want  []int
	}{
		{50, 5, []int{0, 12, 25, 37, 49}},
		{3, 5, []int{0, 1, 2}},
		{10, 1, []int{5}},
		{2, 2, []int{0, 1}},
		{4, 3, []int{0, 2, 3}},
		{0, 5, nil},
		{5, 0, nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, SliceIndices(tt.nz, tt.n)); diff != "" {
			t.Errorf("SliceIndices(%d, %d) mismatch (-want +got):\n%s", tt.nz, tt.n, diff)
		}
	}
}
