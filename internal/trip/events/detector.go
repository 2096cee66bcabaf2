package events

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/timeutil"
	"github.com/banshee-data/trip.review/internal/trip/align"
)

// ErrMissingChannel is returned when velocity or steering has no samples.
var ErrMissingChannel = errors.New("events: missing channel")

// Type is the kind of manoeuvre.
type Type string

const (
	Turn       Type = "Turn"
	LaneChange Type = "LaneChange"
)

// Label is the human-readable name shown in scenario lists.
func (t Type) Label() string {
	if t == LaneChange {
		return "Lane Change"
	}
	return string(t)
}

// rank orders types sharing a timestamp: turns first.
func (t Type) rank() int {
	if t == Turn {
		return 0
	}
	return 1
}

// Event is one detected manoeuvre. FrameSeq is set when the event was
// aligned to a camera frame.
type Event struct {
	Time     int64
	Type     Type
	Label    string
	FrameSeq *int64
}

// Input carries the channels the detector reads. Frames is optional.
type Input struct {
	Velocity *align.Series[float64] // m/s
	Steering *align.Series[float64] // degrees
	Frames   *align.Series[int64]   // camera frame sequence numbers
}

// Candidate is an aligned kinematic sample.
type Candidate struct {
	Time     int64
	Velocity float64
	Steering float64
}

// Detect runs classification, debounce, exclusion, collapse and optional
// frame alignment, returning events in time order.
func Detect(in Input, cfg Config) ([]Event, error) {
	if in.Velocity.Len() == 0 {
		return nil, fmt.Errorf("velocity: %w", ErrMissingChannel)
	}
	if in.Steering.Len() == 0 {
		return nil, fmt.Errorf("steering: %w", ErrMissingChannel)
	}

	rows := AlignSteering(in.Velocity, in.Steering)
	turnTimes, laneTimes := Classify(rows, cfg)

	turns := Debounce(turnTimes, cfg.TurnDebounce)
	lanes := Debounce(ExcludeNear(laneTimes, turns, cfg.LaneChangeExclusion), cfg.LaneChangeDebounce)

	events := make([]Event, 0, len(turns)+len(lanes))
	for _, t := range turns {
		events = append(events, newEvent(t, Turn))
	}
	for _, t := range lanes {
		events = append(events, newEvent(t, LaneChange))
	}
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := cmp.Compare(a.Time, b.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.Type.rank(), b.Type.rank())
	})
	events = Collapse(events, cfg.CollapseWindow)

	if in.Frames.Len() > 0 {
		if cfg.RestrictToFrames {
			events = RestrictToSpan(events, in.Frames)
		}
		events = AlignToFrames(events, in.Frames, cfg.FrameTolerance)
	}

	monitoring.Logf("[events] %d rows, %d turn and %d lane-change candidates, %d events",
		len(rows), len(turnTimes), len(laneTimes), len(events))
	return events, nil
}

func newEvent(t int64, typ Type) Event {
	return Event{Time: t, Type: typ, Label: typ.Label()}
}

// AlignSteering pairs each velocity sample with the nearest steering
// sample, without a tolerance bound. Rows with a non-finite value are
// dropped.
//
// Rows are keyed on velocity timestamps, not steering timestamps, so there
// is one candidate per velocity sample. When velocity is recorded at a lower
// rate than steering the surplus steering samples are never examined, and a
// short steering excursion between two velocity samples yields no candidate.
func AlignSteering(velocity, steering *align.Series[float64]) []Candidate {
	joined := align.JoinNearest(velocity, steering, align.Unbounded)
	rows := make([]Candidate, 0, joined.Len())
	for _, s := range joined.Samples() {
		v, st := s.Value.Left, s.Value.Right
		if math.IsNaN(v) || math.IsNaN(st) || math.IsInf(v, 0) || math.IsInf(st, 0) {
			continue
		}
		rows = append(rows, Candidate{Time: s.Time, Velocity: v, Steering: st})
	}
	return rows
}

// Classify returns the times of turn and lane-change candidates.
func Classify(rows []Candidate, cfg Config) (turns, lanes []int64) {
	for _, r := range rows {
		mag := math.Abs(r.Steering)
		if r.Velocity < cfg.TurnMaxSpeedMps && mag > cfg.TurnMinSteering {
			turns = append(turns, r.Time)
		}
		if mag > cfg.LaneChangeMinSteering && mag < cfg.LaneChangeMaxSteering {
			lanes = append(lanes, r.Time)
		}
	}
	return turns, lanes
}

// Debounce keeps a time only if more than gap has elapsed since the
// previously kept one. The first time is always kept. Input must be sorted.
func Debounce(times []int64, gap time.Duration) []int64 {
	var kept []int64
	for _, t := range times {
		if len(kept) > 0 && t-kept[len(kept)-1] <= gap.Nanoseconds() {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// ExcludeNear drops times lying within ±window of any anchor, inclusive.
// Anchors must be sorted.
func ExcludeNear(times, anchors []int64, window time.Duration) []int64 {
	w := window.Nanoseconds()
	var kept []int64
	for _, t := range times {
		i, _ := slices.BinarySearch(anchors, t)
		near := (i < len(anchors) && anchors[i]-t <= w) || (i > 0 && t-anchors[i-1] <= w)
		if !near {
			kept = append(kept, t)
		}
	}
	return kept
}

// Collapse drops an event when it has the same type as the last kept event
// and follows it by no more than window. Events must be sorted by time.
func Collapse(events []Event, window time.Duration) []Event {
	var kept []Event
	for _, e := range events {
		if n := len(kept); n > 0 {
			prev := kept[n-1]
			if prev.Type == e.Type && e.Time-prev.Time <= window.Nanoseconds() {
				continue
			}
		}
		kept = append(kept, e)
	}
	return kept
}

// RestrictToSpan keeps events inside the first..last frame time, inclusive.
func RestrictToSpan(events []Event, frames *align.Series[int64]) []Event {
	first, last, ok := frames.Span()
	if !ok {
		return events
	}
	var kept []Event
	for _, e := range events {
		if e.Time >= first && e.Time <= last {
			kept = append(kept, e)
		}
	}
	return kept
}

// AlignToFrames sets FrameSeq from the nearest frame within tolerance and
// drops events with no frame close enough.
func AlignToFrames(events []Event, frames *align.Series[int64], tolerance time.Duration) []Event {
	var kept []Event
	for _, e := range events {
		f, ok := frames.NearestWithin(e.Time, tolerance.Nanoseconds())
		if !ok {
			continue
		}
		seq := f.Value
		e.FrameSeq = &seq
		kept = append(kept, e)
	}
	return kept
}

// ScenarioLabels renders "<index>, <HH:MM:SS.mmm>: <label>" for each event,
// with wall-clock time in loc.
func ScenarioLabels(events []Event, loc *time.Location) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = fmt.Sprintf("%d, %s: %s", i, timeutil.FormatClock(e.Time, loc), e.Label)
	}
	return out
}
