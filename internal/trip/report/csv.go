package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/trip.review/internal/fsutil"
	"github.com/banshee-data/trip.review/internal/trip/channel"
	"github.com/banshee-data/trip.review/internal/trip/events"
	"github.com/banshee-data/trip.review/internal/trip/pipeline"
	"github.com/banshee-data/trip.review/internal/trip/ttc"
)

// WriteTTCCSV writes a TTC series as a channel table with columns time,ttc.
func WriteTTCCSV(w io.Writer, samples []ttc.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{channel.TimeColumn, "ttc"}); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{
			strconv.FormatInt(s.Time, 10),
			strconv.FormatFloat(s.TTCSeconds, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEventsCSV writes events with columns time,event,seq. seq is empty
// for events not aligned to a camera frame.
func WriteEventsCSV(w io.Writer, evs []events.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{channel.TimeColumn, "event", channel.ColSeq}); err != nil {
		return err
	}
	for _, e := range evs {
		seq := ""
		if e.FrameSeq != nil {
			seq = strconv.FormatInt(*e.FrameSeq, 10)
		}
		if err := cw.Write([]string{strconv.FormatInt(e.Time, 10), e.Label, seq}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveTTCChannels writes each bag's TTC series to <pwd>/csv/<bag>.time_to_collision
// and records the bags under the time_to_collision topic. Previously
// recorded TTC bags are forgotten first. Returns the written paths.
func SaveTTCChannels(m *channel.Manifest, bags []pipeline.BagTTC) ([]string, error) {
	delete(m.Topics, channel.TopicTTC)
	var paths []string
	for _, b := range bags {
		path := m.BagPath(b.Bag, channel.TopicTTC)
		if err := fsutil.WithinDir(path, m.Pwd); err != nil {
			return paths, err
		}
		if err := fsutil.WriteWith(fsutil.OSFileSystem{}, path, func(w io.Writer) error { return WriteTTCCSV(w, b.Samples) }); err != nil {
			return paths, fmt.Errorf("bag %s: %w", b.Bag, err)
		}
		m.AddBag(channel.TopicTTC, b.Bag)
		paths = append(paths, path)
	}
	return paths, nil
}
