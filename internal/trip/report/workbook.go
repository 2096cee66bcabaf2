package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/trip.review/internal/timeutil"
	"github.com/banshee-data/trip.review/internal/trip/pipeline"
)

// Sheet names of the result workbook.
const (
	SheetSummary = "Summary"
	SheetEvents  = "Events"
	SheetTTC     = "TTC"
)

// WriteWorkbook writes an .xlsx summary of a run: stage outcomes, the
// scenario list and every TTC sample. Clock times are rendered in loc.
func WriteWorkbook(w io.Writer, res *pipeline.Result, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	summary := [][]any{
		{"Trip", res.Trip},
		{"Started", res.StartedAt.In(loc).Format(time.RFC3339)},
		{"Finished", res.FinishedAt.In(loc).Format(time.RFC3339)},
		{"Frames", res.Tracks.Len()},
		{"Tracks", len(res.Tracks.TrackIDs())},
		{},
		{"Stage", "Status", "Count", "Duration (ms)", "Error"},
	}
	stageHeader := len(summary)
	for _, s := range res.Stages {
		errStr := ""
		if s.Err != nil {
			errStr = s.Err.Error()
		}
		summary = append(summary, []any{s.Stage, string(s.Status), s.Count, s.Duration.Milliseconds(), errStr})
	}
	for _, warn := range res.Warnings {
		summary = append(summary, []any{"warning", warn})
	}
	if err := writeSheet(f, SheetSummary, summary, stageHeader, headerStyle); err != nil {
		return err
	}

	evRows := [][]any{{"#", "Time (ns)", "Clock", "Event", "Frame"}}
	for i, e := range res.Events {
		var seq any
		if e.FrameSeq != nil {
			seq = *e.FrameSeq
		}
		evRows = append(evRows, []any{i, e.Time, timeutil.FormatClock(e.Time, loc), e.Label, seq})
	}
	if err := writeSheet(f, SheetEvents, evRows, 1, headerStyle); err != nil {
		return err
	}

	ttcRows := [][]any{{"Bag", "Time (ns)", "Clock", "TTC (s)", "Track", "Frame time (ns)"}}
	for _, b := range res.TTC {
		for _, s := range b.Samples {
			ttcRows = append(ttcRows, []any{b.Bag, s.Time, timeutil.FormatClock(s.Time, loc), s.TTCSeconds, s.TrackID, s.FrameTime})
		}
	}
	if err := writeSheet(f, SheetTTC, ttcRows, 1, headerStyle); err != nil {
		return err
	}

	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(SheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// writeSheet creates a sheet and fills it row by row. headerRow is the
// 1-based row to style as a header; 0 means none.
func writeSheet(f *excelize.File, name string, rows [][]any, headerRow int, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return fmt.Errorf("failed to set %s!%s: %w", name, cell, err)
			}
		}
	}
	if headerRow > 0 && headerRow <= len(rows) && len(rows[headerRow-1]) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, headerRow)
		last, _ := excelize.CoordinatesToCellName(len(rows[headerRow-1]), headerRow)
		if err := f.SetCellStyle(name, first, last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		if headerRow == 1 {
			if err := f.SetPanes(name, &excelize.Panes{
				Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
			}); err != nil {
				return fmt.Errorf("failed to freeze panes: %w", err)
			}
		}
	}
	return nil
}
