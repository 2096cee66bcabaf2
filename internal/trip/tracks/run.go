package tracks

import (
	"errors"

	"github.com/banshee-data/trip.review/internal/trip/align"
	"github.com/banshee-data/trip.review/internal/trip/detections"
)

// EgoSource yields the ego motion at a frame time.
type EgoSource interface {
	EgoAt(t int64) EgoMotion
}

// EgoTimeline looks up ego speed and heading nearest to a frame time.
type EgoTimeline struct {
	Speed     *align.Series[float64] // m/s
	Heading   *align.Series[float64] // degrees
	Tolerance int64                  // nanos
}

// EgoAt returns the ego motion at t, invalid when either channel has no
// sample within tolerance.
func (e EgoTimeline) EgoAt(t int64) EgoMotion {
	speed, ok := e.Speed.NearestWithin(t, e.Tolerance)
	if !ok {
		return EgoMotion{}
	}
	heading, ok := e.Heading.NearestWithin(t, e.Tolerance)
	if !ok {
		return EgoMotion{}
	}
	return EgoMotion{SpeedMps: speed.Value, HeadingDeg: heading.Value, Valid: true}
}

// ProgressFunc is called after each frame, including skipped ones.
type ProgressFunc func(done, total int)

// Run feeds frames through the tracker in order and collects the output.
// Out-of-order frames are skipped and counted in Stats.RejectedFrames.
// ego may be nil, in which case no compensation is applied.
func (t *Tracker) Run(frames []detections.Frame, ego EgoSource, progress ProgressFunc) (*TrackMap, error) {
	out := &TrackMap{}
	for i, f := range frames {
		var motion EgoMotion
		if ego != nil {
			motion = ego.EgoAt(f.Time)
		}
		objects, err := t.Update(f, motion)
		if progress != nil {
			progress(i+1, len(frames))
		}
		if errors.Is(err, ErrOutOfOrder) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := out.Append(f.Time, objects); err != nil {
			return nil, err
		}
	}
	return out, nil
}
