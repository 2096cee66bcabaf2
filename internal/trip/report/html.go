package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trip.review/internal/timeutil"
	"github.com/banshee-data/trip.review/internal/trip/events"
	"github.com/banshee-data/trip.review/internal/trip/pipeline"
	"github.com/banshee-data/trip.review/internal/trip/tracks"
)

// origin returns the earliest timestamp across the result's outputs, used
// as t=0 on chart axes.
func origin(res *pipeline.Result) int64 {
	var t0 int64
	set := false
	consider := func(t int64) {
		if !set || t < t0 {
			t0, set = t, true
		}
	}
	if frames := res.Tracks.Frames(); len(frames) > 0 {
		consider(frames[0].Time)
	}
	for _, e := range res.Events {
		consider(e.Time)
	}
	for _, b := range res.TTC {
		if len(b.Samples) > 0 {
			consider(b.Samples[0].Time)
		}
	}
	return t0
}

// WriteHTML renders the TTC series, event markers and a bird's-eye view of
// track positions as one go-echarts page.
func WriteHTML(w io.Writer, res *pipeline.Result, loc *time.Location) error {
	t0 := origin(res)
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Trip %s", res.Trip)
	page.AddCharts(ttcChart(res, t0, loc), eventChart(res.Events, t0), trackChart(res.Tracks))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

func ttcChart(res *pipeline.Result, t0 int64, loc *time.Location) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Time to collision", Subtitle: fmt.Sprintf("trip=%s start=%s", res.Trip, timeutil.FormatClock(t0, loc))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "TTC (s)", NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	for _, b := range res.TTC {
		data := make([]opts.LineData, 0, len(b.Samples))
		for _, s := range b.Samples {
			data = append(data, opts.LineData{Value: []interface{}{timeutil.Seconds(s.Time - t0), s.TTCSeconds}})
		}
		line.AddSeries(b.Bag, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

func eventChart(evs []events.Event, t0 int64) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "240px"}),
		charts.WithTitleOpts(opts.Title{Title: "Events", Subtitle: fmt.Sprintf("count=%d", len(evs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: []string{events.Turn.Label(), events.LaneChange.Label()}}),
	)
	byType := map[events.Type][]opts.ScatterData{}
	for i, e := range evs {
		byType[e.Type] = append(byType[e.Type], opts.ScatterData{
			Name:  fmt.Sprintf("%d", i),
			Value: []interface{}{timeutil.Seconds(e.Time - t0), e.Label},
		})
	}
	scatter.AddSeries(events.Turn.Label(), byType[events.Turn], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	scatter.AddSeries(events.LaneChange.Label(), byType[events.LaneChange], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	return scatter
}

// trackChart plots every emitted track position in the ego frame, one
// series per category.
func trackChart(m *tracks.TrackMap) *charts.Scatter {
	const pad = 60.0
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Track positions (ego frame)", Subtitle: fmt.Sprintf("frames=%d tracks=%d", m.Len(), len(m.TrackIDs()))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 30}),
	)
	byCat := map[string][]opts.ScatterData{}
	var order []string
	for _, f := range m.Frames() {
		for _, o := range f.Objects {
			if _, ok := byCat[o.Category]; !ok {
				order = append(order, o.Category)
			}
			// Forward up, left to the left.
			byCat[o.Category] = append(byCat[o.Category], opts.ScatterData{
				Name:  fmt.Sprintf("track %d", o.TrackID),
				Value: []interface{}{-o.Y, o.X},
			})
		}
	}
	for _, cat := range order {
		scatter.AddSeries(cat, byCat[cat], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}
	return scatter
}
