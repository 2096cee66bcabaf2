package ttc

import (
	"time"

	"github.com/banshee-data/trip.review/internal/config"
)

// Config holds TTC gating parameters.
type Config struct {
	JoinTolerance    time.Duration // velocity/position/heading join
	FrameTolerance   time.Duration // ego sample to track frame
	MinSpeedMps      float64
	MinLongitudinalM float64
	MaxLateralM      float64
	HazardCategories []string
}

// DefaultConfig returns TTC configuration loaded from the canonical tuning
// defaults file. Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		JoinTolerance:    cfg.GetTTCJoinTolerance(),
		FrameTolerance:   cfg.GetTTCFrameTolerance(),
		MinSpeedMps:      cfg.GetTTCMinSpeedMps(),
		MinLongitudinalM: cfg.GetTTCMinLongitudinalM(),
		MaxLateralM:      cfg.GetTTCMaxLateralM(),
		HazardCategories: cfg.GetTTCHazardCategories(),
	}
}

func (c Config) hazardous(category string) bool {
	for _, h := range c.HazardCategories {
		if h == category {
			return true
		}
	}
	return false
}
