// Package pipeline runs the offline analysis of one recorded trip.
//
// A Context is built once per run and never changed afterwards; every
// stage reads only what the Context and the loaded Inputs give it. Stages:
// tracking over the detection-frame artifact, kinematic event detection,
// and per-bag TTC estimation over the track map. A failing stage is
// reported in the Result and does not abort the stages that do not depend
// on it.
//
// RunBatch processes independent trips concurrently; runs share no state.
package pipeline
