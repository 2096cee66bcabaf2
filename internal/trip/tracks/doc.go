// Package tracks owns multi-object tracking over recorded detection frames.
//
// Responsibilities: ego-footprint filtering, constant-velocity Kalman
// prediction re-expressed in the moving ego frame, greedy nearest-neighbour
// association inside a fixed gate, track lifecycle (tentative, active,
// archived), and the timestamp-keyed TrackMap consumed by the TTC estimator
// and by visualisation.
//
// Key types: Tracker, Track, TrackedObject, TrackMap.
//
// Frames must arrive in non-decreasing time order. A frame older than the
// previous one is rejected with ErrOutOfOrder and leaves the tracker
// untouched.
package tracks
