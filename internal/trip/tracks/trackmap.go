package tracks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/banshee-data/trip.review/internal/trip/align"
)

// TrackedObject is a track's state as emitted for one frame.
type TrackedObject struct {
	TrackID  int
	X        float64
	Y        float64
	Yaw      float64 // radians
	Category string
}

// MarshalJSON writes the object as [x, y, yaw, category, id].
func (o TrackedObject) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.X, o.Y, o.Yaw, o.Category, o.TrackID})
}

// UnmarshalJSON accepts [x, y, yaw, category] or [x, y, yaw, category, id].
// Objects without an id decode with TrackID -1.
func (o *TrackedObject) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 4 && len(raw) != 5 {
		return fmt.Errorf("tracked object: want 4 or 5 elements, got %d", len(raw))
	}
	var vals [3]float64
	for i := range vals {
		if err := json.Unmarshal(raw[i], &vals[i]); err != nil {
			return fmt.Errorf("tracked object element %d: %w", i, err)
		}
	}
	var cat string
	if err := json.Unmarshal(raw[3], &cat); err != nil {
		return fmt.Errorf("tracked object category: %w", err)
	}
	id := -1
	if len(raw) == 5 {
		if err := json.Unmarshal(raw[4], &id); err != nil {
			return fmt.Errorf("tracked object id: %w", err)
		}
	}
	*o = TrackedObject{X: vals[0], Y: vals[1], Yaw: vals[2], Category: cat, TrackID: id}
	return nil
}

// FrameObjects is one TrackMap entry.
type FrameObjects struct {
	Time    int64
	Objects []TrackedObject
}

// TrackMap is the append-only, time-ordered tracker output.
type TrackMap struct {
	frames []FrameObjects
}

// Append adds the objects for a frame. A frame at the same time as the last
// entry replaces it; an older frame is rejected with ErrOutOfOrder.
func (m *TrackMap) Append(t int64, objects []TrackedObject) error {
	if n := len(m.frames); n > 0 {
		last := m.frames[n-1].Time
		if t < last {
			return ErrOutOfOrder
		}
		if t == last {
			m.frames[n-1].Objects = slices.Clone(objects)
			return nil
		}
	}
	m.frames = append(m.frames, FrameObjects{Time: t, Objects: slices.Clone(objects)})
	return nil
}

// Len returns the number of frames.
func (m *TrackMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.frames)
}

// Frames returns the entries in time order. The slice must not be modified.
func (m *TrackMap) Frames() []FrameObjects {
	if m == nil {
		return nil
	}
	return m.frames
}

// At returns the objects recorded at exactly time t.
func (m *TrackMap) At(t int64) ([]TrackedObject, bool) {
	i, ok := slices.BinarySearchFunc(m.Frames(), t, func(f FrameObjects, t int64) int {
		switch {
		case f.Time < t:
			return -1
		case f.Time > t:
			return 1
		}
		return 0
	})
	if !ok {
		return nil, false
	}
	return m.frames[i].Objects, true
}

// Series indexes the map for nearest-timestamp lookup.
func (m *TrackMap) Series() *align.Series[[]TrackedObject] {
	samples := make([]align.Sample[[]TrackedObject], m.Len())
	for i, f := range m.Frames() {
		samples[i] = align.Sample[[]TrackedObject]{Time: f.Time, Value: f.Objects}
	}
	s, _ := align.NewSeries(samples)
	return s
}

// TrackIDs returns the distinct track ids present anywhere in the map.
func (m *TrackMap) TrackIDs() []int {
	seen := make(map[int]struct{})
	for _, f := range m.Frames() {
		for _, o := range f.Objects {
			seen[o.TrackID] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// WriteTrackMap encodes the map as a JSON object keyed by decimal nanosecond
// timestamps, in time order.
func WriteTrackMap(w io.Writer, m *TrackMap) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m.Frames() {
		for _, o := range f.Objects {
			if !finite(o.X) || !finite(o.Y) || !finite(o.Yaw) {
				return fmt.Errorf("track %d at %d: non-finite state", o.TrackID, f.Time)
			}
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.FormatInt(f.Time, 10)))
		buf.WriteByte(':')
		objects := f.Objects
		if objects == nil {
			objects = []TrackedObject{}
		}
		enc, err := json.Marshal(objects)
		if err != nil {
			return err
		}
		buf.Write(enc)
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadTrackMap decodes a map written by WriteTrackMap.
func ReadTrackMap(r io.Reader) (*TrackMap, error) {
	var raw map[string][]TrackedObject
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode track map: %w", err)
	}
	frames := make([]FrameObjects, 0, len(raw))
	for key, objects := range raw {
		t, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("track map key %q: %w", key, err)
		}
		frames = append(frames, FrameObjects{Time: t, Objects: objects})
	}
	slices.SortFunc(frames, func(a, b FrameObjects) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return &TrackMap{frames: frames}, nil
}

// SaveTrackMap writes the map to path.
func SaveTrackMap(path string, m *TrackMap) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTrackMap(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadTrackMap reads a map from path.
func LoadTrackMap(path string) (*TrackMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrackMap(f)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
