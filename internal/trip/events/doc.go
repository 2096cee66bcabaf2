// Package events classifies ego steering and velocity into discrete
// manoeuvre events (turns and lane changes) and aligns them to camera
// frame sequence numbers for the scenario list.
package events
