package detections

import (
	"cmp"
	"slices"
)

// Detection is one object observed by the lidar, in the ego-relative frame:
// X forward, Y left, Z up, metres.
type Detection struct {
	X        float64
	Y        float64
	Z        float64
	Category string
}

// Frame groups the detections sharing one timestamp.
type Frame struct {
	Time       int64 // Unix nanos
	Detections []Detection
}

// SortFrames orders frames by time, merging frames that share a timestamp.
func SortFrames(frames []Frame) []Frame {
	sorted := slices.Clone(frames)
	slices.SortStableFunc(sorted, func(a, b Frame) int { return cmp.Compare(a.Time, b.Time) })
	out := sorted[:0]
	for _, f := range sorted {
		if n := len(out); n > 0 && out[n-1].Time == f.Time {
			out[n-1].Detections = append(out[n-1].Detections, f.Detections...)
			continue
		}
		out = append(out, Frame{Time: f.Time, Detections: slices.Clone(f.Detections)})
	}
	return out
}
