// Package channel loads recorded trip channels.
//
// A channel is a tabular file with a `time` column (int64 Unix nanos) plus
// channel-specific numeric columns. Each recorded bag produces one file per
// topic; a trip manifest lists the bags available for every topic.
//
// Malformed samples (missing or non-numeric fields) are dropped silently
// and counted. A required topic or column that is absent is reported as
// ErrMissingChannel so callers can degrade instead of failing the run.
package channel
