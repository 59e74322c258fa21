// Package field owns the in-memory data model for simulator scalar fields.
//
// Responsibilities: scattered samples as loaded from disk, the tagged
// Samples variant (coordinates vs a flat value list), lattice geometry
// (GridSpec) and dense lattice fields (RegularField), plus the typed
// errors shared by every pipeline stage.
// Key types: PointSample, ScatteredField, Samples, GridSpec, RegularField.
//
// Dependency rule: field depends only on fsutil within this module. The
// inferencer, resampler, analyzer and mapper all build on it.
//
// Dense arrays are stored x-fastest: index = i + nx*(j + ny*k).
package field
