package tracks

import (
	"github.com/banshee-data/trip.review/internal/config"
	"github.com/banshee-data/trip.review/internal/trip/detections"
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	GatingDistance      float64 // Maximum detection-to-prediction distance for association (metres)
	StaleAfterNanos     int64   // Unmatched time after which a track is archived
	FootprintHalfLength float64 // |x| bound of the ego self-return box (metres)
	FootprintHalfWidth  float64 // |y| bound of the ego self-return box (metres)

	ProcessNoisePos    float64 // Q diagonal, position terms
	ProcessNoiseVel    float64 // Q diagonal, velocity terms
	MeasurementNoise   float64 // R diagonal
	InitialPosVariance float64 // P0 diagonal, position terms
	InitialVelVariance float64 // P0 diagonal, velocity terms

	// EgoCompensation re-expresses predictions in the ego frame of the new
	// detection frame using the ego heading change and forward displacement.
	EgoCompensation bool

	// Taxonomy maps raw detection labels to the coarse track category.
	Taxonomy detections.Taxonomy
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found. Intended for tests and binaries
// that have already validated config availability.
func DefaultTrackerConfig() TrackerConfig {
	cfg := config.MustLoadDefaultConfig()
	tc, err := TrackerConfigFromTuning(cfg)
	if err != nil {
		panic(err)
	}
	return tc
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) (TrackerConfig, error) {
	tax, err := detections.TaxonomyByName(cfg.GetTaxonomy())
	if err != nil {
		return TrackerConfig{}, err
	}
	return TrackerConfig{
		GatingDistance:      cfg.GetGatingDistanceMeters(),
		StaleAfterNanos:     cfg.GetStaleAfter().Nanoseconds(),
		FootprintHalfLength: cfg.GetFootprintHalfLengthM(),
		FootprintHalfWidth:  cfg.GetFootprintHalfWidthM(),
		ProcessNoisePos:     cfg.GetProcessNoisePos(),
		ProcessNoiseVel:     cfg.GetProcessNoiseVel(),
		MeasurementNoise:    cfg.GetMeasurementNoise(),
		InitialPosVariance:  cfg.GetInitialPosVariance(),
		InitialVelVariance:  cfg.GetInitialVelVariance(),
		EgoCompensation:     cfg.GetEgoCompensation(),
		Taxonomy:            tax,
	}, nil
}

// InFootprint reports whether a detection lies inside the ego exclusion box.
func (c TrackerConfig) InFootprint(d detections.Detection) bool {
	return abs(d.X) <= c.FootprintHalfLength && abs(d.Y) <= c.FootprintHalfWidth
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
