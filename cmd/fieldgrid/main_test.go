package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const cornerInput = `x y z perm
0 0 0 10
1 0 0 0
0 1 0 0
1 1 0 0
0 0 1 0
1 0 1 0
0 1 1 0
1 1 1 0
`

func TestRun_CoordinatesWithReport(t *testing.T) {
	input := writeInput(t, "corners.txt", cornerInput)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-input", input, "-skip", "1", "-resolution", "2,2,2", "-threshold", "5",
		"-output", out, "-run-id", "corners",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	s := stdout.String()
	assert.Contains(t, s, "Rows: 8 (coordinates, value column: true)")
	assert.Contains(t, s, "X range: [0, 1] (2 distinct)")
	assert.Contains(t, s, "Dimensions: 2x2x2 (configured)")
	assert.Contains(t, s, "Visible voxels: 1 of 8")
	assert.Contains(t, s, "Report written to: "+filepath.Join(out, "run-corners"))

	for _, name := range []string{"summary.json", "distribution_linear.png", "distribution_log.png", "slices.html", "voxels.asc"} {
		_, err := os.Stat(filepath.Join(out, "run-corners", name))
		assert.NoError(t, err, name)
	}
}

func TestRun_FlatInferOnly(t *testing.T) {
	input := writeInput(t, "flat.txt", strings.Repeat("1.5\n", 1000))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", input, "-infer-only"}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "Inferred dimensions: 10x10x10")
}

func TestRun_AmbiguousFlat(t *testing.T) {
	input := writeInput(t, "flat.txt", strings.Repeat("3\n", 999))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", input}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "error: ambiguous grid")
	assert.Contains(t, stderr.String(), "divisors: [1 3 9 27 37 111 333 999]")
}

func TestRun_ThreeColumns(t *testing.T) {
	input := writeInput(t, "xyz.txt", "0 0 0\n1 0 0\n0 1 0\n0 0 1\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", input, "-resolution", "3"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "error: missing column")
	assert.Contains(t, stderr.String(), "columns: 3")
}

func TestRun_Degenerate(t *testing.T) {
	input := writeInput(t, "plane.txt", "0 0 0 1\n1 0 0 2\n0 1 0 3\n1 1 0 4\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", input, "-resolution", "2,2,2"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "error: interpolation degenerate")
	assert.Contains(t, stderr.String(), "coordinate rank: 2")
}

func TestRun_InvalidResolutionFlag(t *testing.T) {
	input := writeInput(t, "corners.txt", cornerInput)

	for _, res := range []string{"2,2", "a,b,c", "1,2,2"} {
		var stdout, stderr bytes.Buffer
		code := run([]string{"-input", input, "-skip", "1", "-resolution", res}, &stdout, &stderr)
		assert.Equal(t, 1, code, "resolution %q", res)
		assert.Contains(t, stderr.String(), "error:")
	}
}

func TestRun_ConfigFileAndOverride(t *testing.T) {
	input := writeInput(t, "corners.txt", cornerInput)
	cfgPath := writeInput(t, "run.json", `{"skip_rows": 1, "resolution": [3, 3, 3], "threshold": 1000}`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-input", input, "-config", cfgPath, "-threshold", "-1"}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "Dimensions: 3x3x3 (configured)")
	assert.Contains(t, stdout.String(), "Visible voxels: 27 of 27")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "fieldgrid "))
}

func TestRun_MissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-input is required")
}

func TestParseResolution(t *testing.T) {
	r, err := parseResolution("4, 5 ,6")
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 5, 6}, r)

	r, err = parseResolution("7")
	require.NoError(t, err)
	assert.Equal(t, [3]int{7, 7, 7}, r)

	_, err = parseResolution("1,2,3,4")
	assert.Error(t, err)
}
