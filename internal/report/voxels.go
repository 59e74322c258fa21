package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/banshee-data/fieldgrid/internal/pipeline"
)

// writeVoxels exports visible voxels as CloudCompare-style ASCII rows of
// "X Y Z Value Opacity". A run with no visible voxels gets the header only.
func writeVoxels(out io.Writer, res *pipeline.Result) error {
	f := res.Field
	bw := bufio.NewWriter(out)

	fmt.Fprintf(bw, "# Exported voxels above threshold %g\n", res.Input.Threshold)
	fmt.Fprintf(bw, "# Lattice %s\n", f.Spec.Dims)
	fmt.Fprintf(bw, "# Format: X Y Z Value Opacity\n")

	n := 0
	for idx, v := range f.Values {
		if !res.Threshold.Mask[idx] {
			continue
		}
		i, j, k := f.Unflatten(idx)
		p := f.Coord(i, j, k)
		fmt.Fprintf(bw, "%.6f %.6f %.6f %.6f %.6f\n", p.X, p.Y, p.Z, v, res.Threshold.Opacity[idx])
		n++
	}
	diagf("exported %d voxels", n)
	return bw.Flush()
}
