// Package ttc estimates forward time-to-collision from ego kinematics and
// the tracker's per-frame object lists.
//
// Every ego sample with a usable speed is paired with the nearest track
// frame; objects ahead of the ego along its heading, inside the lateral
// corridor and of a hazardous category yield a candidate distance/speed
// value, and the smallest candidate is recorded.
package ttc
