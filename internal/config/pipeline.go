package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// Default values returned by the Get* accessors for unset fields. They match
// config/pipeline.defaults.json.
const (
	DefaultResolution          = 50
	DefaultThreshold           = 100.0
	DefaultMaxLatticeElements  = 1 << 24
	DefaultSnapTolerance       = 1e-9
	DefaultHistogramBins       = 50
	DefaultHeatmapSlices       = 5
	maxConfigFileSize          = 1 * 1024 * 1024 // 1MB
	maxHistogramBins           = 10000
	maxHeatmapSlices           = 64
	defaultCoordinateTolerance = 0.0
)

// PipelineConfig holds the run parameters. Unset fields fall back to the
// defaults above, so partial configs are safe.
type PipelineConfig struct {
	// Lattice
	Resolution         *[3]int `json:"resolution,omitempty"`
	AutoResolution     *bool   `json:"auto_resolution,omitempty"`
	MaxLatticeElements *int    `json:"max_lattice_elements,omitempty"`

	// Interpolation
	FillValue     *float64 `json:"fill_value,omitempty"`
	FillNaN       *bool    `json:"fill_nan,omitempty"` // overrides fill_value
	SnapTolerance *float64 `json:"snap_tolerance,omitempty"`

	// Input
	CoordinateTolerance *float64 `json:"coordinate_tolerance,omitempty"`
	SkipRows            *int     `json:"skip_rows,omitempty"`

	// Threshold and report
	Threshold     *float64 `json:"threshold,omitempty"`
	HistogramBins *int     `json:"histogram_bins,omitempty"`
	HeatmapSlices *int     `json:"heatmap_slices,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.Resolution != nil {
		for i, n := range c.Resolution {
			if n < 2 {
				return fmt.Errorf("resolution[%d] must be at least 2, got %d", i, n)
			}
		}
	}

	if c.MaxLatticeElements != nil && *c.MaxLatticeElements < 0 {
		return fmt.Errorf("max_lattice_elements must be non-negative, got %d", *c.MaxLatticeElements)
	}

	if c.Threshold != nil && !isFinite(*c.Threshold) {
		return fmt.Errorf("threshold must be finite, got %v", *c.Threshold)
	}

	if c.FillValue != nil && math.IsInf(*c.FillValue, 0) {
		return fmt.Errorf("fill_value must not be infinite, got %v", *c.FillValue)
	}

	if c.SnapTolerance != nil {
		if *c.SnapTolerance < 0 || *c.SnapTolerance > 0.5 || math.IsNaN(*c.SnapTolerance) {
			return fmt.Errorf("snap_tolerance must be between 0 and 0.5, got %v", *c.SnapTolerance)
		}
	}

	if c.CoordinateTolerance != nil {
		if *c.CoordinateTolerance < 0 || !isFinite(*c.CoordinateTolerance) {
			return fmt.Errorf("coordinate_tolerance must be non-negative, got %v", *c.CoordinateTolerance)
		}
	}

	if c.SkipRows != nil && *c.SkipRows < 0 {
		return fmt.Errorf("skip_rows must be non-negative, got %d", *c.SkipRows)
	}

	if c.HistogramBins != nil {
		if *c.HistogramBins < 1 || *c.HistogramBins > maxHistogramBins {
			return fmt.Errorf("histogram_bins must be between 1 and %d, got %d", maxHistogramBins, *c.HistogramBins)
		}
	}

	if c.HeatmapSlices != nil {
		if *c.HeatmapSlices < 1 || *c.HeatmapSlices > maxHeatmapSlices {
			return fmt.Errorf("heatmap_slices must be between 1 and %d, got %d", maxHeatmapSlices, *c.HeatmapSlices)
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// GetResolution returns the lattice resolution or the default 50x50x50.
func (c *PipelineConfig) GetResolution() [3]int {
	if c.Resolution == nil {
		return [3]int{DefaultResolution, DefaultResolution, DefaultResolution}
	}
	return *c.Resolution
}

// GetAutoResolution returns the auto_resolution value or the default.
func (c *PipelineConfig) GetAutoResolution() bool {
	if c.AutoResolution == nil {
		return false
	}
	return *c.AutoResolution
}

// GetMaxLatticeElements returns the max_lattice_elements value or the default.
func (c *PipelineConfig) GetMaxLatticeElements() int {
	if c.MaxLatticeElements == nil {
		return DefaultMaxLatticeElements
	}
	return *c.MaxLatticeElements
}

// GetFillValue returns NaN when fill_nan is set, otherwise fill_value or 0.
func (c *PipelineConfig) GetFillValue() float64 {
	if c.FillNaN != nil && *c.FillNaN {
		return math.NaN()
	}
	if c.FillValue == nil {
		return 0
	}
	return *c.FillValue
}

// GetSnapTolerance returns the snap_tolerance value or the default.
func (c *PipelineConfig) GetSnapTolerance() float64 {
	if c.SnapTolerance == nil {
		return DefaultSnapTolerance
	}
	return *c.SnapTolerance
}

// GetCoordinateTolerance returns the coordinate_tolerance value or the default.
func (c *PipelineConfig) GetCoordinateTolerance() float64 {
	if c.CoordinateTolerance == nil {
		return defaultCoordinateTolerance
	}
	return *c.CoordinateTolerance
}

// GetSkipRows returns the skip_rows value or the default.
func (c *PipelineConfig) GetSkipRows() int {
	if c.SkipRows == nil {
		return 0
	}
	return *c.SkipRows
}

// GetThreshold returns the threshold value or the default.
func (c *PipelineConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// GetHistogramBins returns the histogram_bins value or the default.
func (c *PipelineConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return DefaultHistogramBins
	}
	return *c.HistogramBins
}

// GetHeatmapSlices returns the heatmap_slices value or the default.
func (c *PipelineConfig) GetHeatmapSlices() int {
	if c.HeatmapSlices == nil {
		return DefaultHeatmapSlices
	}
	return *c.HeatmapSlices
}

// Override setters used by the CLI when a flag is given explicitly.

func (c *PipelineConfig) SetResolution(r [3]int)           { c.Resolution = &r }
func (c *PipelineConfig) SetAutoResolution(v bool)         { c.AutoResolution = ptrBool(v) }
func (c *PipelineConfig) SetThreshold(v float64)           { c.Threshold = ptrFloat64(v) }
func (c *PipelineConfig) SetCoordinateTolerance(v float64) { c.CoordinateTolerance = ptrFloat64(v) }
func (c *PipelineConfig) SetSkipRows(n int)                { c.SkipRows = ptrInt(n) }

// SetFillValue stores v, routing NaN through fill_nan since JSON cannot
// carry it.
func (c *PipelineConfig) SetFillValue(v float64) {
	if math.IsNaN(v) {
		c.FillNaN = ptrBool(true)
		c.FillValue = nil
		return
	}
	c.FillNaN = ptrBool(false)
	c.FillValue = ptrFloat64(v)
}
