package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/pipeline"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// SliceIndices picks n z-slice indices spread evenly over nz, always
// including the first and last slice when n > 1.
func SliceIndices(nz, n int) []int {
	if nz <= 0 || n <= 0 {
		return nil
	}
	if n >= nz {
		out := make([]int, nz)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if n == 1 {
		return []int{nz / 2}
	}
	out := make([]int, 0, n)
	for s := 0; s < n; s++ {
		k := int(math.Round(float64(s) * float64(nz-1) / float64(n-1)))
		if len(out) == 0 || out[len(out)-1] != k {
			out = append(out, k)
		}
	}
	return out
}

// renderSlices writes an HTML page with one scatter heatmap per selected
// z slice. Only visible voxels are plotted; colour follows the value and the
// tooltip carries the opacity.
func (w *Writer) renderSlices(out io.Writer, run Run) error {
	res := run.Result
	spec := res.Field.Spec
	th := res.Input.Threshold

	vmax := th
	for i, v := range res.Field.Values {
		if res.Threshold.Mask[i] && !math.IsInf(v, 0) && v > vmax {
			vmax = v
		}
	}
	if vmax <= th {
		vmax = th + 1
	}

	page := components.NewPage()
	for _, k := range SliceIndices(spec.Dims[2], w.slices()) {
		page.AddCharts(sliceChart(res, k, th, vmax))
	}
	if err := page.Render(out); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func sliceChart(res *pipeline.Result, k int, th, vmax float64) *charts.Scatter {
	f := res.Field
	spec := f.Spec
	data := make([]opts.ScatterData, 0)
	for j := 0; j < spec.Dims[1]; j++ {
		for i := 0; i < spec.Dims[0]; i++ {
			idx := f.Index(i, j, k)
			v := f.Values[idx]
			if !res.Threshold.Mask[idx] || math.IsInf(v, 0) {
				continue
			}
			data = append(data, opts.ScatterData{
				Value: []interface{}{spec.AxisCoord(0, i), spec.AxisCoord(1, j), v, res.Threshold.Opacity[idx]},
			})
		}
	}
	tracef("slice k=%d: %d visible voxels", k, len(data))

	xlo, xhi := axisPad(spec, 0)
	ylo, yhi := axisPad(spec, 1)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("z = %.4g (slice %d of %d)", spec.AxisCoord(2, k), k+1, spec.Dims[2]),
			Subtitle: fmt.Sprintf("lattice=%s threshold=%g visible=%d", spec.Dims, th, len(data)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: xlo, Max: xhi, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: ylo, Max: yhi, Name: "Y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(th),
			Max:        float32(vmax),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("above threshold", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: symbolSize(spec)}))
	return scatter
}

// axisPad returns the axis range widened by half a cell so edge voxels are
// not clipped.
func axisPad(spec field.GridSpec, axis int) (float64, float64) {
	lo, hi := spec.AxisCoord(axis, 0), spec.AxisCoord(axis, spec.Dims[axis]-1)
	pad := (hi - lo) / float64(2*max(spec.Dims[axis]-1, 1))
	if pad == 0 {
		pad = 0.5
	}
	return lo - pad, hi + pad
}

func symbolSize(spec field.GridSpec) int {
	n := max(spec.Dims[0], spec.Dims[1])
	switch {
	case n <= 20:
		return 20
	case n <= 60:
		return 10
	default:
		return 4
	}
}
