package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/fieldgrid/internal/stats"
)

var (
	barColor       = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}
	thresholdColor = color.RGBA{R: 0xff, G: 0x52, B: 0x52, A: 0xff}
)

// renderHistogram draws the input value distribution as a PNG, on a log10
// value axis when logScale is set, with the threshold marked.
func (w *Writer) renderHistogram(out io.Writer, run Run, logScale bool) error {
	var (
		h   stats.Histogram
		err error
	)
	if logScale {
		h, err = stats.NewLogHistogram(run.Values, w.bins())
	} else {
		h, err = stats.NewHistogram(run.Values, w.bins())
	}
	if err != nil {
		return err
	}

	p := plot.New()
	p.Y.Label.Text = "Count"
	if logScale {
		p.Title.Text = "Value distribution (log scale)"
		p.X.Label.Text = "log10(value)"
	} else {
		p.Title.Text = "Value distribution"
		p.X.Label.Text = "Value"
	}

	bins := make([]plotter.HistogramBin, len(h.Counts))
	var peak float64
	for i, c := range h.Counts {
		bins[i] = plotter.HistogramBin{Min: h.Edges[i], Max: h.Edges[i+1], Weight: c}
		if c > peak {
			peak = c
		}
	}
	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     h.Edges[1] - h.Edges[0],
		FillColor: barColor,
		LineStyle: plotter.DefaultLineStyle,
	}
	p.Add(hist)

	th := run.Result.Input.Threshold
	if logScale {
		if th > 0 {
			th = math.Log10(th)
		} else {
			th = h.Edges[0]
		}
	}
	if peak == 0 {
		peak = 1
	}
	line, err := plotter.NewLine(plotter.XYs{{X: th, Y: 0}, {X: th, Y: peak}})
	if err != nil {
		return fmt.Errorf("threshold marker: %w", err)
	}
	line.Color = thresholdColor
	line.Width = vg.Points(1.5)
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("threshold %g", run.Result.Input.Threshold), line)
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create PNG writer: %w", err)
	}
	if _, err := wt.WriteTo(out); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
