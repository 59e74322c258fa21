package field

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/fieldgrid/internal/fsutil"
)

// maxLineBytes bounds a single input row.
const maxLineBytes = 1 << 20

// LoadSamples opens path on fsys and parses it with ReadSamples. The file is
// closed on every return path.
func LoadSamples(fsys fsutil.FileSystem, path string, skipRows int) (Samples, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samples: %w", err)
	}
	defer f.Close()

	s, err := ReadSamples(f, skipRows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ReadSamples parses whitespace-delimited rows of "x y z [value]" or a single
// value column. The first skipRows lines are discarded unread; blank lines
// and lines starting with '#' are ignored. The column count of the first data
// row decides the Samples variant and every later row must match it.
func ReadSamples(r io.Reader, skipRows int) (Samples, error) {
	if skipRows < 0 {
		return nil, fmt.Errorf("skip rows must be non-negative, got %d", skipRows)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		lineNo int
		cols   int
		flat   []float64
		points ScatteredField
	)
	for sc.Scan() {
		lineNo++
		if lineNo <= skipRows {
			continue
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		if cols == 0 {
			cols = len(fields)
			switch {
			case cols == 2:
				return nil, &MissingColumnError{Columns: 2, Want: "x y z"}
			case cols > 4:
				diagf("line %d: %d columns, using first four as x y z value", lineNo, cols)
			}
		}
		if len(fields) != cols {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", lineNo, cols, len(fields))
		}

		if cols == 1 {
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			flat = append(flat, v)
			continue
		}

		var row [4]float64
		n := cols
		if n > 4 {
			n = 4
		}
		for i := 0; i < n; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", lineNo, i+1, err)
			}
			if i < 3 && (math.IsNaN(v) || math.IsInf(v, 0)) {
				return nil, fmt.Errorf("line %d column %d: non-finite coordinate %v", lineNo, i+1, v)
			}
			row[i] = v
		}
		points = append(points, PointSample{X: row[0], Y: row[1], Z: row[2], Value: row[3]})
		tracef("line %d: %+v", lineNo, points[len(points)-1])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}

	switch {
	case cols == 0:
		return nil, fmt.Errorf("no data rows after skipping %d line(s)", skipRows)
	case cols == 1:
		diagf("loaded %d flat values", len(flat))
		return FlatSamples{Values: flat}, nil
	case cols == 3:
		opsf("input has x y z but no value column; values are unavailable")
		return CoordinateSamples{Points: points, Valued: false}, nil
	default:
		diagf("loaded %d coordinate samples", len(points))
		return CoordinateSamples{Points: points, Valued: true}, nil
	}
}
