package report

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/trip.review/internal/fsutil"
	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/trip/pipeline"
	"github.com/banshee-data/trip.review/internal/trip/tracks"
)

// File names written by WriteAll, relative to the output directory.
const (
	TrackMapFile = "track_map.json"
	EventsFile   = "events.csv"
	WorkbookFile = "summary.xlsx"
	HTMLFile     = "report.html"
	PlotFile     = "ttc.png"
)

// WriteAll writes every report artefact for res into dir/<trip>/ and returns
// the written paths. Artefacts whose inputs are missing are skipped.
func WriteAll(dir string, res *pipeline.Result, loc *time.Location) ([]string, error) {
	return WriteAllFS(fsutil.OSFileSystem{}, dir, res, loc)
}

// WriteAllFS is WriteAll on an arbitrary file system.
func WriteAllFS(fsys fsutil.FileSystem, dir string, res *pipeline.Result, loc *time.Location) ([]string, error) {
	base := filepath.Join(dir, fsutil.SafeName(res.Trip))
	var written []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(base, name)
		if err := fsutil.WriteWith(fsys, path, fn); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if res.Tracks != nil {
		if err := write(TrackMapFile, func(w io.Writer) error { return tracks.WriteTrackMap(w, res.Tracks) }); err != nil {
			return written, err
		}
	}
	if err := write(EventsFile, func(w io.Writer) error { return WriteEventsCSV(w, res.Events) }); err != nil {
		return written, err
	}
	for _, b := range res.TTC {
		name := fmt.Sprintf("ttc_%s.csv", fsutil.SafeName(b.Bag))
		if err := write(name, func(w io.Writer) error { return WriteTTCCSV(w, b.Samples) }); err != nil {
			return written, err
		}
	}
	if err := write(WorkbookFile, func(w io.Writer) error { return WriteWorkbook(w, res, loc) }); err != nil {
		return written, err
	}
	if err := write(HTMLFile, func(w io.Writer) error { return WriteHTML(w, res, loc) }); err != nil {
		return written, err
	}
	if res.TTCSampleCount() > 0 {
		if err := write(PlotFile, func(w io.Writer) error { return WriteTTCPlot(w, res, loc) }); err != nil {
			return written, err
		}
	}
	monitoring.Logf("[report] %s: wrote %d files to %s", res.Trip, len(written), base)
	return written, nil
}
