package detections

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/trip.review/internal/trip/channel"
)

// ExtractStats summarises one raw object table conversion.
type ExtractStats struct {
	Rows       int
	Kept       int
	Malformed  int
	Unmapped   int
	FrameCount int
}

var objectColumns = []string{"time", "x", "y", "z", "label"}

// ReadObjectCSV converts a raw lidar object table (columns time, x, y, z,
// label) into detection frames. Rows with any missing or malformed field are
// dropped, labels go through the taxonomy, and unmapped labels are dropped.
func ReadObjectCSV(r io.Reader, tax Taxonomy) ([]Frame, ExtractStats, error) {
	var stats ExtractStats
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, stats, fmt.Errorf("object table is empty: %w", channel.ErrMissingChannel)
		}
		return nil, stats, fmt.Errorf("failed to read object table header: %w", err)
	}
	idx := make(map[string]int, len(objectColumns))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range objectColumns {
		if _, ok := idx[col]; !ok {
			return nil, stats, fmt.Errorf("object table has no %q column: %w", col, channel.ErrMissingChannel)
		}
	}

	var frames []Frame
	byTime := make(map[int64]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Rows++
				stats.Malformed++
				continue
			}
			return nil, stats, fmt.Errorf("failed to read object row: %w", err)
		}
		stats.Rows++

		det, ts, ok := parseObjectRow(record, idx)
		if !ok {
			stats.Malformed++
			continue
		}
		category, mapped := tax.Classify(det.Category)
		if !mapped {
			stats.Unmapped++
			continue
		}
		det.Category = category

		i, seen := byTime[ts]
		if !seen {
			i = len(frames)
			byTime[ts] = i
			frames = append(frames, Frame{Time: ts})
		}
		frames[i].Detections = append(frames[i].Detections, det)
		stats.Kept++
	}
	frames = SortFrames(frames)
	stats.FrameCount = len(frames)
	return frames, stats, nil
}

func parseObjectRow(record []string, idx map[string]int) (Detection, int64, bool) {
	field := func(col string) (string, bool) {
		i := idx[col]
		if i >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[i])
		return v, v != "" && !strings.EqualFold(v, "nan")
	}

	rawTime, ok := field("time")
	if !ok {
		return Detection{}, 0, false
	}
	ts, ok := channel.ParseTime(rawTime)
	if !ok {
		return Detection{}, 0, false
	}
	var coords [3]float64
	for i, col := range []string{"x", "y", "z"} {
		raw, ok := field(col)
		if !ok {
			return Detection{}, 0, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Detection{}, 0, false
		}
		coords[i] = v
	}
	label, ok := field("label")
	if !ok {
		return Detection{}, 0, false
	}
	return Detection{X: coords[0], Y: coords[1], Z: coords[2], Category: label}, ts, true
}

// ExtractBags converts the raw object tables of several bags into one frame
// list, in bag order, and sums their stats.
func ExtractBags(paths []string, tax Taxonomy) ([]Frame, ExtractStats, error) {
	var all []Frame
	var total ExtractStats
	for _, path := range paths {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, total, fmt.Errorf("failed to open object table: %w", err)
		}
		frames, stats, err := ReadObjectCSV(f, tax)
		f.Close()
		if err != nil {
			return nil, total, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		all = append(all, frames...)
		total.Rows += stats.Rows
		total.Kept += stats.Kept
		total.Malformed += stats.Malformed
		total.Unmapped += stats.Unmapped
	}
	all = SortFrames(all)
	total.FrameCount = len(all)
	return all, total, nil
}
