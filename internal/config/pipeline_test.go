package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmptyPipelineConfigDefaults(t *testing.T) {
	cfg := EmptyPipelineConfig()

	if got := cfg.GetResolution(); got != [3]int{50, 50, 50} {
		t.Errorf("GetResolution() = %v, want [50 50 50]", got)
	}
	if cfg.GetAutoResolution() {
		t.Errorf("GetAutoResolution() = true, want false")
	}
	if got := cfg.GetThreshold(); got != 100 {
		t.Errorf("GetThreshold() = %v, want 100", got)
	}
	if got := cfg.GetFillValue(); got != 0 {
		t.Errorf("GetFillValue() = %v, want 0", got)
	}
	if got := cfg.GetMaxLatticeElements(); got != 16777216 {
		t.Errorf("GetMaxLatticeElements() = %d, want 16777216", got)
	}
	if got := cfg.GetSnapTolerance(); got != 1e-9 {
		t.Errorf("GetSnapTolerance() = %v, want 1e-9", got)
	}
	if got := cfg.GetCoordinateTolerance(); got != 0 {
		t.Errorf("GetCoordinateTolerance() = %v, want 0", got)
	}
	if got := cfg.GetSkipRows(); got != 0 {
		t.Errorf("GetSkipRows() = %d, want 0", got)
	}
	if got := cfg.GetHistogramBins(); got != 50 {
		t.Errorf("GetHistogramBins() = %d, want 50", got)
	}
	if got := cfg.GetHeatmapSlices(); got != 5 {
		t.Errorf("GetHeatmapSlices() = %d, want 5", got)
	}
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	file := MustLoadDefaultConfig()
	empty := EmptyPipelineConfig()

	if file.GetResolution() != empty.GetResolution() {
		t.Errorf("resolution: file %v, default %v", file.GetResolution(), empty.GetResolution())
	}
	if file.GetThreshold() != empty.GetThreshold() {
		t.Errorf("threshold: file %v, default %v", file.GetThreshold(), empty.GetThreshold())
	}
	if file.GetFillValue() != empty.GetFillValue() {
		t.Errorf("fill_value: file %v, default %v", file.GetFillValue(), empty.GetFillValue())
	}
	if file.GetMaxLatticeElements() != empty.GetMaxLatticeElements() {
		t.Errorf("max_lattice_elements: file %d, default %d", file.GetMaxLatticeElements(), empty.GetMaxLatticeElements())
	}
	if file.GetSnapTolerance() != empty.GetSnapTolerance() {
		t.Errorf("snap_tolerance: file %v, default %v", file.GetSnapTolerance(), empty.GetSnapTolerance())
	}
	if file.GetHistogramBins() != empty.GetHistogramBins() {
		t.Errorf("histogram_bins: file %d, default %d", file.GetHistogramBins(), empty.GetHistogramBins())
	}
	if file.GetHeatmapSlices() != empty.GetHeatmapSlices() {
		t.Errorf("heatmap_slices: file %d, default %d", file.GetHeatmapSlices(), empty.GetHeatmapSlices())
	}
	if file.GetAutoResolution() != empty.GetAutoResolution() {
		t.Errorf("auto_resolution: file %v, default %v", file.GetAutoResolution(), empty.GetAutoResolution())
	}
}

func TestLoadPipelineConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")

	testJSON := `{
  "resolution": [20, 30, 10],
  "threshold": 250.5,
  "fill_value": -1,
  "skip_rows": 2
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadPipelineConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetResolution(); got != [3]int{20, 30, 10} {
		t.Errorf("GetResolution() = %v, want [20 30 10]", got)
	}
	if got := cfg.GetThreshold(); got != 250.5 {
		t.Errorf("GetThreshold() = %v, want 250.5", got)
	}
	if got := cfg.GetFillValue(); got != -1 {
		t.Errorf("GetFillValue() = %v, want -1", got)
	}
	if got := cfg.GetSkipRows(); got != 2 {
		t.Errorf("GetSkipRows() = %d, want 2", got)
	}

	// Omitted fields keep their defaults.
	if got := cfg.GetHistogramBins(); got != DefaultHistogramBins {
		t.Errorf("GetHistogramBins() = %d, want %d", got, DefaultHistogramBins)
	}
	if cfg.GetAutoResolution() {
		t.Errorf("GetAutoResolution() = true, want false")
	}
}

func TestLoadPipelineConfigFillNaN(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nan.json")
	if err := os.WriteFile(configPath, []byte(`{"fill_value": 3, "fill_nan": true}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadPipelineConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if got := cfg.GetFillValue(); !math.IsNaN(got) {
		t.Errorf("GetFillValue() = %v, want NaN", got)
	}
}

func TestLoadPipelineConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"threshold": }`, "failed to parse"},
		{"resolution too small", "res.json", `{"resolution": [1, 4, 4]}`, "resolution[0]"},
		{"negative skip", "skip.json", `{"skip_rows": -1}`, "skip_rows"},
		{"negative tolerance", "tol.json", `{"coordinate_tolerance": -0.1}`, "coordinate_tolerance"},
		{"snap too large", "snap.json", `{"snap_tolerance": 0.9}`, "snap_tolerance"},
		{"zero bins", "bins.json", `{"histogram_bins": 0}`, "histogram_bins"},
		{"too many slices", "slices.json", `{"heatmap_slices": 1000}`, "heatmap_slices"},
		{"negative ceiling", "max.json", `{"max_lattice_elements": -5}`, "max_lattice_elements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			_, err := LoadPipelineConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadPipelineConfigMissingFile(t *testing.T) {
	_, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to stat") {
		t.Errorf("expected stat error, got %v", err)
	}
}

func TestLoadPipelineConfigTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	big := `{"threshold": 1` + strings.Repeat(" ", maxConfigFileSize) + `}`
	if err := os.WriteFile(path, []byte(big), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	_, err := LoadPipelineConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestSetters(t *testing.T) {
	cfg := EmptyPipelineConfig()
	cfg.SetResolution([3]int{4, 5, 6})
	cfg.SetAutoResolution(true)
	cfg.SetThreshold(12)
	cfg.SetCoordinateTolerance(0.01)
	cfg.SetSkipRows(3)

	if got := cfg.GetResolution(); got != [3]int{4, 5, 6} {
		t.Errorf("GetResolution() = %v", got)
	}
	if !cfg.GetAutoResolution() {
		t.Errorf("GetAutoResolution() = false")
	}
	if cfg.GetThreshold() != 12 || cfg.GetCoordinateTolerance() != 0.01 || cfg.GetSkipRows() != 3 {
		t.Errorf("unexpected overrides: %+v", cfg)
	}

	cfg.SetFillValue(math.NaN())
	if !math.IsNaN(cfg.GetFillValue()) {
		t.Errorf("GetFillValue() = %v, want NaN", cfg.GetFillValue())
	}
	cfg.SetFillValue(7)
	if cfg.GetFillValue() != 7 {
		t.Errorf("GetFillValue() = %v, want 7", cfg.GetFillValue())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
