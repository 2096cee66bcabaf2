// Package detections owns the per-frame lidar object detections that feed
// the tracker.
//
// Responsibilities: the Detection record (named x, y, z, category fields in
// place of positional tuples), the category taxonomy table, and the
// detection-frame artifact: a JSON object mapping stringified Unix-nano
// timestamps to arrays of [x, y, z, category] tuples.
package detections
