package report

import (
	"fmt"
	"image/color"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trip.review/internal/timeutil"
	"github.com/banshee-data/trip.review/internal/trip/events"
	"github.com/banshee-data/trip.review/internal/trip/pipeline"
)

var bagColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
}

// TTCPlot builds the static TTC plot: one line per bag and a vertical
// marker per event.
func TTCPlot(res *pipeline.Result, loc *time.Location) (*plot.Plot, error) {
	t0 := origin(res)
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trip %s - Time to collision (from %s)", res.Trip, timeutil.FormatClock(t0, loc))
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "TTC (s)"

	maxTTC := 0.0
	for i, b := range res.TTC {
		pts := make(plotter.XYs, 0, len(b.Samples))
		for _, s := range b.Samples {
			pts = append(pts, plotter.XY{X: timeutil.Seconds(s.Time - t0), Y: s.TTCSeconds})
			if s.TTCSeconds > maxTTC {
				maxTTC = s.TTCSeconds
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("bag %s: %w", b.Bag, err)
		}
		line.Color = bagColors[i%len(bagColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(b.Bag, line)
	}

	if maxTTC == 0 {
		maxTTC = 1
	}
	for _, e := range res.Events {
		x := timeutil.Seconds(e.Time - t0)
		marker, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: maxTTC}})
		if err != nil {
			return nil, err
		}
		marker.Width = vg.Points(0.5)
		marker.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		if e.Type == events.Turn {
			marker.Color = color.RGBA{R: 200, A: 255}
		} else {
			marker.Color = color.RGBA{B: 200, A: 255}
		}
		p.Add(marker)
	}
	return p, nil
}

// WriteTTCPlot renders the TTC plot as PNG.
func WriteTTCPlot(w io.Writer, res *pipeline.Result, loc *time.Location) error {
	p, err := TTCPlot(res, loc)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
