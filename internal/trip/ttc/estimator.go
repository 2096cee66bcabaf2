package ttc

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/trip/align"
	"github.com/banshee-data/trip.review/internal/trip/tracks"
	"github.com/banshee-data/trip.review/internal/units"
)

var (
	// ErrMissingChannel is returned when an ego channel or the track map is empty.
	ErrMissingChannel = errors.New("ttc: missing channel")
	// ErrNoQualifyingSample is returned when no ego sample produced a TTC value.
	ErrNoQualifyingSample = errors.New("ttc: no qualifying sample")
)

// LatLon is one GNSS position fix.
type LatLon struct {
	Lat float64
	Lon float64
}

// Input carries the channels the estimator reads.
type Input struct {
	Velocity *align.Series[float64] // m/s
	Position *align.Series[LatLon]
	Heading  *align.Series[float64] // degrees
	Tracks   *tracks.TrackMap
}

// EgoSample is one row of the velocity/position/heading join.
type EgoSample struct {
	Time       int64
	SpeedMps   float64
	Lat        float64
	Lon        float64
	HeadingDeg float64
}

// Sample is one TTC record.
type Sample struct {
	Time       int64 // ego sample time
	FrameTime  int64 // track frame the value was computed from
	TTCSeconds float64
	TrackID    int // object giving the minimum
}

// PositionSeries combines lat and lon columns sampled at the same times.
func PositionSeries(lat, lon *align.Series[float64]) *align.Series[LatLon] {
	joined := align.JoinNearest(lat, lon, 0)
	return align.Map(joined, func(s align.Sample[align.Pair[float64, float64]]) LatLon {
		return LatLon{Lat: s.Value.Left, Lon: s.Value.Right}
	})
}

// JoinEgo joins velocity, position and heading onto the velocity timeline
// within tolerance nanos, dropping rows with a missing or non-finite field.
func JoinEgo(velocity *align.Series[float64], position *align.Series[LatLon], heading *align.Series[float64], tolerance int64) []EgoSample {
	vp := align.JoinNearest(velocity, position, tolerance)
	vph := align.JoinNearest(vp, heading, tolerance)
	out := make([]EgoSample, 0, vph.Len())
	for _, s := range vph.Samples() {
		e := EgoSample{
			Time:       s.Time,
			SpeedMps:   s.Value.Left.Left,
			Lat:        s.Value.Left.Right.Lat,
			Lon:        s.Value.Left.Right.Lon,
			HeadingDeg: s.Value.Right,
		}
		if !finite(e.SpeedMps, e.Lat, e.Lon, e.HeadingDeg) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Estimate computes the TTC series. It never panics on bad input: a
// missing channel yields ErrMissingChannel and an empty result yields
// ErrNoQualifyingSample.
func Estimate(in Input, cfg Config) ([]Sample, error) {
	switch {
	case in.Velocity.Len() == 0:
		return nil, fmt.Errorf("velocity: %w", ErrMissingChannel)
	case in.Position.Len() == 0:
		return nil, fmt.Errorf("position: %w", ErrMissingChannel)
	case in.Heading.Len() == 0:
		return nil, fmt.Errorf("heading: %w", ErrMissingChannel)
	case in.Tracks.Len() == 0:
		return nil, fmt.Errorf("tracks: %w", ErrMissingChannel)
	}

	ego := JoinEgo(in.Velocity, in.Position, in.Heading, cfg.JoinTolerance.Nanoseconds())
	frames := in.Tracks.Series()

	var out []Sample
	for _, e := range ego {
		if e.SpeedMps < cfg.MinSpeedMps {
			continue
		}
		frame, ok := frames.NearestWithin(e.Time, cfg.FrameTolerance.Nanoseconds())
		if !ok {
			continue
		}
		if s, ok := Evaluate(e, frame.Value, cfg); ok {
			s.FrameTime = frame.Time
			out = append(out, s)
		}
	}

	monitoring.Logf("[ttc] %d ego rows, %d ttc samples", len(ego), len(out))
	if len(out) == 0 {
		return nil, ErrNoQualifyingSample
	}
	return out, nil
}

// Evaluate returns the minimum TTC over the objects of one frame.
func Evaluate(ego EgoSample, objects []tracks.TrackedObject, cfg Config) (Sample, bool) {
	if ego.SpeedMps < cfg.MinSpeedMps || ego.SpeedMps <= 0 {
		return Sample{}, false
	}
	h := units.DegToRad(ego.HeadingDeg)
	hx, hy := math.Cos(h), math.Sin(h)

	best := Sample{Time: ego.Time, TTCSeconds: math.Inf(1), TrackID: -1}
	for _, o := range objects {
		long, lat := Project(o.X, o.Y, hx, hy)
		if long < cfg.MinLongitudinalM || lat > cfg.MaxLateralM {
			continue
		}
		if !cfg.hazardous(o.Category) {
			continue
		}
		if ttc := long / ego.SpeedMps; ttc < best.TTCSeconds {
			best.TTCSeconds = ttc
			best.TrackID = o.TrackID
		}
	}
	if math.IsInf(best.TTCSeconds, 1) {
		return Sample{}, false
	}
	return best, true
}

// Project splits (x, y) into the distance along the unit heading (hx, hy)
// and the perpendicular offset from it.
func Project(x, y, hx, hy float64) (longitudinal, lateral float64) {
	longitudinal = x*hx + y*hy
	lateral = math.Hypot(x-longitudinal*hx, y-longitudinal*hy)
	return longitudinal, lateral
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
