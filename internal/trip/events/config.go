package events

import (
	"time"

	"github.com/banshee-data/trip.review/internal/config"
)

// Config holds the event classification thresholds and windows.
type Config struct {
	TurnMaxSpeedMps       float64 // Turn requires velocity below this
	TurnMinSteering       float64 // Turn requires |steering| above this
	LaneChangeMinSteering float64 // LaneChange requires |steering| strictly inside (min, max)
	LaneChangeMaxSteering float64

	TurnDebounce        time.Duration
	LaneChangeDebounce  time.Duration
	LaneChangeExclusion time.Duration // ± window around kept turns
	CollapseWindow      time.Duration
	FrameTolerance      time.Duration

	// RestrictToFrames drops events outside the camera channel's time span
	// before frame alignment.
	RestrictToFrames bool
}

// DefaultConfig returns event configuration loaded from the canonical
// tuning defaults file. Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		TurnMaxSpeedMps:       cfg.GetTurnMaxSpeedMps(),
		TurnMinSteering:       cfg.GetTurnMinSteering(),
		LaneChangeMinSteering: cfg.GetLaneChangeMinSteering(),
		LaneChangeMaxSteering: cfg.GetLaneChangeMaxSteering(),
		TurnDebounce:          cfg.GetTurnDebounce(),
		LaneChangeDebounce:    cfg.GetLaneChangeDebounce(),
		LaneChangeExclusion:   cfg.GetLaneChangeExclusion(),
		CollapseWindow:        cfg.GetCollapseWindow(),
		FrameTolerance:        cfg.GetEventFrameTolerance(),
		RestrictToFrames:      cfg.GetRestrictEventsToFrames(),
	}
}
