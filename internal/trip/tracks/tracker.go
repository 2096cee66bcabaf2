package tracks

import (
	"errors"
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/timeutil"
	"github.com/banshee-data/trip.review/internal/trip/detections"
	"github.com/banshee-data/trip.review/internal/units"
)

// ErrOutOfOrder is returned when a frame is older than the previous frame.
var ErrOutOfOrder = errors.New("tracks: frame out of order")

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackTentative TrackState = "tentative" // Born this frame, not yet updated by a second detection
	TrackActive    TrackState = "active"    // Updated by at least one subsequent detection
	TrackArchived  TrackState = "archived"  // Unmatched for longer than the staleness limit
)

// HistoryPoint is one per-frame entry of a track's history.
type HistoryPoint struct {
	Time  int64
	X, Y  float64
	VX    float64
	VY    float64
	Yaw   float64 // radians
	Match bool    // true when a detection updated the track on this frame
}

// Track represents a tracked object across frames.
type Track struct {
	ID       int
	State    TrackState
	Category string
	RawLabel string

	FirstNanos       int64
	LastMatchedNanos int64
	StateNanos       int64 // time the filter state refers to
	Hits             int
	Matched          bool // matched on the most recent frame

	Yaw     float64 // radians, mean direction of the position history
	History []HistoryPoint

	filter     kalman
	egoHeading float64 // degrees, ego heading at StateNanos
	egoValid   bool
}

// Position returns the current ego-frame position estimate.
func (t *Track) Position() (float64, float64) {
	return t.filter.position()
}

// Velocity returns the current ego-frame velocity estimate.
func (t *Track) Velocity() (float64, float64) {
	return t.filter.x.AtVec(2), t.filter.x.AtVec(3)
}

// Covariance returns a copy of the state covariance.
func (t *Track) Covariance() *mat.SymDense {
	P := mat.NewSymDense(stateDim, nil)
	P.CopySym(t.filter.P)
	return P
}

func (t *Track) clone() *Track {
	c := *t
	c.History = slices.Clone(t.History)
	c.filter = t.filter.clone()
	return &c
}

// EgoMotion is the ego speed and heading at a frame time. Compensation is
// skipped when Valid is false.
type EgoMotion struct {
	SpeedMps   float64
	HeadingDeg float64
	Valid      bool
}

// Stats counts what the tracker did over its lifetime.
type Stats struct {
	Frames            int
	RejectedFrames    int
	FootprintFiltered int
	Created           int
	Matched           int
	Archived          int
	Diverged          int
}

// Tracker owns every track. Archived tracks are frozen.
type Tracker struct {
	Config TrackerConfig

	mu        sync.Mutex
	live      []*Track // ordered by ID
	archived  []*Track
	nextID    int
	lastFrame int64
	hasFrame  bool
	stats     Stats
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{Config: cfg}
}

// Update processes one detection frame and returns the tracked objects
// alive after it, ordered by track ID.
//
// Steps: archive stale tracks, drop ego self-returns, predict every live
// track to the frame time, associate detections greedily in input order,
// correct matched tracks, spawn tracks for leftovers, then append history.
// A frame with no usable detections only ages tracks.
func (t *Tracker) Update(frame detections.Frame, ego EgoMotion) ([]TrackedObject, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasFrame && frame.Time < t.lastFrame {
		t.stats.RejectedFrames++
		monitoring.Warnf("[tracker] rejected frame %d: older than previous frame %d", frame.Time, t.lastFrame)
		return nil, ErrOutOfOrder
	}
	t.hasFrame = true
	t.lastFrame = frame.Time
	t.stats.Frames++

	t.archiveStale(frame.Time)

	dets := make([]detections.Detection, 0, len(frame.Detections))
	for _, d := range frame.Detections {
		if t.Config.InFootprint(d) {
			t.stats.FootprintFiltered++
			continue
		}
		dets = append(dets, d)
	}
	if len(dets) == 0 {
		return t.snapshotLocked(), nil
	}

	predicted := make([]kalman, len(t.live))
	for i, track := range t.live {
		predicted[i] = t.predictTrack(track, frame.Time, ego)
	}

	matched := make([]bool, len(t.live))
	var born []*Track
	for _, d := range dets {
		best := -1
		bestDist := math.Inf(1)
		for i := range t.live {
			if matched[i] {
				continue
			}
			px, py := predicted[i].position()
			dist := math.Hypot(d.X-px, d.Y-py)
			// live is ordered by ID, so strict < keeps the lowest ID on ties.
			if dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best >= 0 && bestDist < t.Config.GatingDistance {
			matched[best] = true
			t.correct(t.live[best], predicted[best], d, frame.Time)
			continue
		}
		born = append(born, t.spawn(d, frame.Time))
	}

	for i, track := range t.live {
		if !matched[i] {
			track.filter = predicted[i]
			track.Matched = false
		}
		track.StateNanos = frame.Time
		track.egoHeading = ego.HeadingDeg
		track.egoValid = ego.Valid
	}
	t.live = append(t.live, born...)
	for _, track := range born {
		track.egoHeading = ego.HeadingDeg
		track.egoValid = ego.Valid
	}

	kept := t.live[:0]
	for i, track := range t.live {
		if !track.filter.finite() {
			t.stats.Diverged++
			monitoring.Warnf("[tracker] track %d diverged at %d, archiving", track.ID, frame.Time)
			t.archive(track)
			continue
		}
		appendHistory(track, frame.Time, i >= len(matched) || matched[i])
		kept = append(kept, track)
	}
	t.live = kept

	return t.snapshotLocked(), nil
}

// archiveStale moves tracks unmatched for longer than the staleness limit
// into the archive. Survivors are marked unmatched for the new frame.
func (t *Tracker) archiveStale(now int64) {
	kept := t.live[:0]
	for _, track := range t.live {
		if now-track.LastMatchedNanos > t.Config.StaleAfterNanos {
			t.archive(track)
			continue
		}
		track.Matched = false
		kept = append(kept, track)
	}
	t.live = kept
}

func (t *Tracker) archive(track *Track) {
	track.State = TrackArchived
	track.Matched = false
	t.archived = append(t.archived, track)
	t.stats.Archived++
}

func (t *Tracker) predictTrack(track *Track, now int64, ego EgoMotion) kalman {
	dt := timeutil.Seconds(now - track.StateNanos)
	var step *egoStep
	if t.Config.EgoCompensation && ego.Valid && track.egoValid {
		step = &egoStep{
			dHeading: units.WrapRadians(units.DegToRad(ego.HeadingDeg - track.egoHeading)),
			forward:  ego.SpeedMps * dt,
		}
	}
	return track.filter.predict(dt, t.Config, step)
}

func (t *Tracker) correct(track *Track, pred kalman, d detections.Detection, now int64) {
	updated, err := pred.update(d.X, d.Y, t.Config)
	if err != nil {
		monitoring.Warnf("[tracker] track %d: singular innovation covariance at %d: %v", track.ID, now, err)
		updated = pred
	}
	track.filter = updated
	track.Matched = true
	track.LastMatchedNanos = now
	track.Hits++
	if track.State == TrackTentative {
		track.State = TrackActive
	}
	t.stats.Matched++
}

func (t *Tracker) spawn(d detections.Detection, now int64) *Track {
	track := &Track{
		ID:               t.nextID,
		State:            TrackTentative,
		Category:         t.Config.Taxonomy.Coarse(d.Category),
		RawLabel:         d.Category,
		FirstNanos:       now,
		LastMatchedNanos: now,
		StateNanos:       now,
		Hits:             1,
		Matched:          true,
		filter:           newKalman(d.X, d.Y, t.Config),
	}
	t.nextID++
	t.stats.Created++
	return track
}

func appendHistory(track *Track, now int64, matched bool) {
	x, y := track.Position()
	vx, vy := track.Velocity()
	track.History = append(track.History, HistoryPoint{
		Time: now, X: x, Y: y, VX: vx, VY: vy, Match: matched,
	})
	track.Yaw = historyYaw(track.History)
	track.History[len(track.History)-1].Yaw = track.Yaw
}

// historyYaw is the circular mean of the headings of successive position
// differences. Zero-length steps carry no direction and are skipped; a
// history without any direction yields 0.
func historyYaw(history []HistoryPoint) float64 {
	angles := make([]float64, 0, len(history))
	for i := 1; i < len(history); i++ {
		dx := history[i].X - history[i-1].X
		dy := history[i].Y - history[i-1].Y
		if dx == 0 && dy == 0 {
			continue
		}
		if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
			continue
		}
		angles = append(angles, math.Atan2(dy, dx))
	}
	if len(angles) == 0 {
		return 0
	}
	return stat.CircularMean(angles, nil)
}

// Tracks returns copies of the live tracks ordered by ID.
func (t *Tracker) Tracks() []*Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Track, len(t.live))
	for i, track := range t.live {
		out[i] = track.clone()
	}
	return out
}

// Archived returns copies of the archived tracks in archival order.
func (t *Tracker) Archived() []*Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Track, len(t.archived))
	for i, track := range t.archived {
		out[i] = track.clone()
	}
	return out
}

// Stats returns a copy of the tracker counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Tracker) snapshotLocked() []TrackedObject {
	out := make([]TrackedObject, 0, len(t.live))
	for _, track := range t.live {
		x, y := track.Position()
		out = append(out, TrackedObject{
			TrackID:  track.ID,
			X:        x,
			Y:        y,
			Yaw:      track.Yaw,
			Category: track.Category,
		})
	}
	return out
}
