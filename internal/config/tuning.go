package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the trip analytics
// pipeline. Every field is optional: the Get* accessors fall back to the
// built-in defaults, so partial JSON or YAML files are safe.
type TuningConfig struct {
	// Tracker params
	GatingDistanceMeters  *float64 `json:"gating_distance_m,omitempty" yaml:"gating_distance_m,omitempty"`
	StaleAfter            *string  `json:"stale_after,omitempty" yaml:"stale_after,omitempty"` // duration string like "1s"
	FootprintHalfLengthM  *float64 `json:"footprint_half_length_m,omitempty" yaml:"footprint_half_length_m,omitempty"`
	FootprintHalfWidthM   *float64 `json:"footprint_half_width_m,omitempty" yaml:"footprint_half_width_m,omitempty"`
	ProcessNoisePos       *float64 `json:"process_noise_pos,omitempty" yaml:"process_noise_pos,omitempty"`
	ProcessNoiseVel       *float64 `json:"process_noise_vel,omitempty" yaml:"process_noise_vel,omitempty"`
	MeasurementNoise      *float64 `json:"measurement_noise,omitempty" yaml:"measurement_noise,omitempty"`
	InitialPosVariance    *float64 `json:"initial_pos_variance,omitempty" yaml:"initial_pos_variance,omitempty"`
	InitialVelVariance    *float64 `json:"initial_vel_variance,omitempty" yaml:"initial_vel_variance,omitempty"`
	EgoCompensation       *bool    `json:"ego_compensation,omitempty" yaml:"ego_compensation,omitempty"`
	EgoAlignmentTolerance *string  `json:"ego_alignment_tolerance,omitempty" yaml:"ego_alignment_tolerance,omitempty"`
	Taxonomy              *string  `json:"taxonomy,omitempty" yaml:"taxonomy,omitempty"` // "legacy" or "passthrough"

	// Event detector params
	TurnMaxSpeedMps        *float64 `json:"turn_max_speed_mps,omitempty" yaml:"turn_max_speed_mps,omitempty"`
	TurnMinSteering        *float64 `json:"turn_min_steering,omitempty" yaml:"turn_min_steering,omitempty"`
	LaneChangeMinSteering  *float64 `json:"lane_change_min_steering,omitempty" yaml:"lane_change_min_steering,omitempty"`
	LaneChangeMaxSteering  *float64 `json:"lane_change_max_steering,omitempty" yaml:"lane_change_max_steering,omitempty"`
	TurnDebounce           *string  `json:"turn_debounce,omitempty" yaml:"turn_debounce,omitempty"`
	LaneChangeDebounce     *string  `json:"lane_change_debounce,omitempty" yaml:"lane_change_debounce,omitempty"`
	LaneChangeExclusion    *string  `json:"lane_change_exclusion,omitempty" yaml:"lane_change_exclusion,omitempty"`
	CollapseWindow         *string  `json:"collapse_window,omitempty" yaml:"collapse_window,omitempty"`
	EventFrameTolerance    *string  `json:"event_frame_tolerance,omitempty" yaml:"event_frame_tolerance,omitempty"`
	RestrictEventsToFrames *bool    `json:"restrict_events_to_frames,omitempty" yaml:"restrict_events_to_frames,omitempty"`
	ScenarioLabelTimezone  *string  `json:"scenario_label_timezone,omitempty" yaml:"scenario_label_timezone,omitempty"`

	// TTC params
	TTCJoinTolerance    *string  `json:"ttc_join_tolerance,omitempty" yaml:"ttc_join_tolerance,omitempty"`
	TTCFrameTolerance   *string  `json:"ttc_frame_tolerance,omitempty" yaml:"ttc_frame_tolerance,omitempty"`
	TTCMinSpeedMps      *float64 `json:"ttc_min_speed_mps,omitempty" yaml:"ttc_min_speed_mps,omitempty"`
	TTCMinLongitudinalM *float64 `json:"ttc_min_longitudinal_m,omitempty" yaml:"ttc_min_longitudinal_m,omitempty"`
	TTCMaxLateralM      *float64 `json:"ttc_max_lateral_m,omitempty" yaml:"ttc_max_lateral_m,omitempty"`
	TTCHazardCategories []string `json:"ttc_hazard_categories,omitempty" yaml:"ttc_hazard_categories,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		GatingDistanceMeters:   ptrFloat64(e.GetGatingDistanceMeters()),
		StaleAfter:             ptrString(e.GetStaleAfter().String()),
		FootprintHalfLengthM:   ptrFloat64(e.GetFootprintHalfLengthM()),
		FootprintHalfWidthM:    ptrFloat64(e.GetFootprintHalfWidthM()),
		ProcessNoisePos:        ptrFloat64(e.GetProcessNoisePos()),
		ProcessNoiseVel:        ptrFloat64(e.GetProcessNoiseVel()),
		MeasurementNoise:       ptrFloat64(e.GetMeasurementNoise()),
		InitialPosVariance:     ptrFloat64(e.GetInitialPosVariance()),
		InitialVelVariance:     ptrFloat64(e.GetInitialVelVariance()),
		EgoCompensation:        ptrBool(e.GetEgoCompensation()),
		EgoAlignmentTolerance:  ptrString(e.GetEgoAlignmentTolerance().String()),
		Taxonomy:               ptrString(e.GetTaxonomy()),
		TurnMaxSpeedMps:        ptrFloat64(e.GetTurnMaxSpeedMps()),
		TurnMinSteering:        ptrFloat64(e.GetTurnMinSteering()),
		LaneChangeMinSteering:  ptrFloat64(e.GetLaneChangeMinSteering()),
		LaneChangeMaxSteering:  ptrFloat64(e.GetLaneChangeMaxSteering()),
		TurnDebounce:           ptrString(e.GetTurnDebounce().String()),
		LaneChangeDebounce:     ptrString(e.GetLaneChangeDebounce().String()),
		LaneChangeExclusion:    ptrString(e.GetLaneChangeExclusion().String()),
		CollapseWindow:         ptrString(e.GetCollapseWindow().String()),
		EventFrameTolerance:    ptrString(e.GetEventFrameTolerance().String()),
		RestrictEventsToFrames: ptrBool(e.GetRestrictEventsToFrames()),
		ScenarioLabelTimezone:  ptrString(e.GetScenarioLabelTimezone()),
		TTCJoinTolerance:       ptrString(e.GetTTCJoinTolerance().String()),
		TTCFrameTolerance:      ptrString(e.GetTTCFrameTolerance().String()),
		TTCMinSpeedMps:         ptrFloat64(e.GetTTCMinSpeedMps()),
		TTCMinLongitudinalM:    ptrFloat64(e.GetTTCMinLongitudinalM()),
		TTCMaxLateralM:         ptrFloat64(e.GetTTCMaxLateralM()),
		TTCHazardCategories:    e.GetTTCHazardCategories(),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file is validated to ensure it has a supported extension and is under
// the max file size. Fields omitted from the file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/trip/tracks/
		"../../../../" + DefaultConfigPath,    // from internal/trip/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := map[string]*float64{
		"gating_distance_m":    c.GatingDistanceMeters,
		"measurement_noise":    c.MeasurementNoise,
		"initial_pos_variance": c.InitialPosVariance,
		"initial_vel_variance": c.InitialVelVariance,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	nonNegative := map[string]*float64{
		"footprint_half_length_m": c.FootprintHalfLengthM,
		"footprint_half_width_m":  c.FootprintHalfWidthM,
		"process_noise_pos":       c.ProcessNoisePos,
		"process_noise_vel":       c.ProcessNoiseVel,
		"ttc_min_speed_mps":       c.TTCMinSpeedMps,
		"ttc_min_longitudinal_m":  c.TTCMinLongitudinalM,
		"ttc_max_lateral_m":       c.TTCMaxLateralM,
	}
	for name, v := range nonNegative {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}

	durations := map[string]*string{
		"stale_after":             c.StaleAfter,
		"ego_alignment_tolerance": c.EgoAlignmentTolerance,
		"turn_debounce":           c.TurnDebounce,
		"lane_change_debounce":    c.LaneChangeDebounce,
		"lane_change_exclusion":   c.LaneChangeExclusion,
		"collapse_window":         c.CollapseWindow,
		"event_frame_tolerance":   c.EventFrameTolerance,
		"ttc_join_tolerance":      c.TTCJoinTolerance,
		"ttc_frame_tolerance":     c.TTCFrameTolerance,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	if c.LaneChangeMinSteering != nil && c.LaneChangeMaxSteering != nil &&
		*c.LaneChangeMinSteering >= *c.LaneChangeMaxSteering {
		return fmt.Errorf("lane_change_min_steering (%f) must be below lane_change_max_steering (%f)",
			*c.LaneChangeMinSteering, *c.LaneChangeMaxSteering)
	}

	if c.Taxonomy != nil && *c.Taxonomy != "" {
		switch *c.Taxonomy {
		case TaxonomyLegacy, TaxonomyPassthrough:
		default:
			return fmt.Errorf("unknown taxonomy %q (want %q or %q)", *c.Taxonomy, TaxonomyLegacy, TaxonomyPassthrough)
		}
	}

	if c.ScenarioLabelTimezone != nil && *c.ScenarioLabelTimezone != "" {
		if _, err := time.LoadLocation(*c.ScenarioLabelTimezone); err != nil {
			return fmt.Errorf("invalid scenario_label_timezone %q: %w", *c.ScenarioLabelTimezone, err)
		}
	}

	return nil
}

// Taxonomy preset names.
const (
	TaxonomyLegacy      = "legacy"
	TaxonomyPassthrough = "passthrough"
)

// durationOr parses s, returning def when s is unset or unparseable.
func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// GetGatingDistanceMeters returns the association gate radius.
func (c *TuningConfig) GetGatingDistanceMeters() float64 {
	return floatOr(c.GatingDistanceMeters, 2.0)
}

// GetStaleAfter returns how long a track may go unmatched before archival.
func (c *TuningConfig) GetStaleAfter() time.Duration {
	return durationOr(c.StaleAfter, time.Second)
}

// GetFootprintHalfLengthM returns the longitudinal half-extent of the ego exclusion box.
func (c *TuningConfig) GetFootprintHalfLengthM() float64 {
	return floatOr(c.FootprintHalfLengthM, 2.5)
}

// GetFootprintHalfWidthM returns the lateral half-extent of the ego exclusion box.
func (c *TuningConfig) GetFootprintHalfWidthM() float64 {
	return floatOr(c.FootprintHalfWidthM, 1.0)
}

// GetProcessNoisePos returns the position diagonal of Q.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	return floatOr(c.ProcessNoisePos, 0.05)
}

// GetProcessNoiseVel returns the velocity diagonal of Q.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	return floatOr(c.ProcessNoiseVel, 0.5)
}

// GetMeasurementNoise returns the diagonal of R.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	return floatOr(c.MeasurementNoise, 0.1)
}

// GetInitialPosVariance returns the position diagonal of a new track's covariance.
func (c *TuningConfig) GetInitialPosVariance() float64 {
	return floatOr(c.InitialPosVariance, 1.0)
}

// GetInitialVelVariance returns the velocity diagonal of a new track's covariance.
func (c *TuningConfig) GetInitialVelVariance() float64 {
	return floatOr(c.InitialVelVariance, 10.0)
}

// GetEgoCompensation reports whether predictions are re-expressed in the new ego frame.
func (c *TuningConfig) GetEgoCompensation() bool {
	if c.EgoCompensation == nil {
		return true
	}
	return *c.EgoCompensation
}

// GetEgoAlignmentTolerance returns the tolerance for aligning ego speed and
// heading onto detection frames.
func (c *TuningConfig) GetEgoAlignmentTolerance() time.Duration {
	return durationOr(c.EgoAlignmentTolerance, 100*time.Millisecond)
}

// GetTaxonomy returns the category taxonomy preset name.
func (c *TuningConfig) GetTaxonomy() string {
	if c.Taxonomy == nil || *c.Taxonomy == "" {
		return TaxonomyLegacy
	}
	return *c.Taxonomy
}

// GetTurnMaxSpeedMps returns the speed below which a sharp steer is a turn.
func (c *TuningConfig) GetTurnMaxSpeedMps() float64 {
	return floatOr(c.TurnMaxSpeedMps, 10.0)
}

// GetTurnMinSteering returns the |steering| above which a slow sample is a turn.
func (c *TuningConfig) GetTurnMinSteering() float64 {
	return floatOr(c.TurnMinSteering, 2.0)
}

// GetLaneChangeMinSteering returns the exclusive lower |steering| bound for lane changes.
func (c *TuningConfig) GetLaneChangeMinSteering() float64 {
	return floatOr(c.LaneChangeMinSteering, 0.6)
}

// GetLaneChangeMaxSteering returns the exclusive upper |steering| bound for lane changes.
func (c *TuningConfig) GetLaneChangeMaxSteering() float64 {
	return floatOr(c.LaneChangeMaxSteering, 1.5)
}

// GetTurnDebounce returns the minimum gap between kept turns.
func (c *TuningConfig) GetTurnDebounce() time.Duration {
	return durationOr(c.TurnDebounce, 10*time.Second)
}

// GetLaneChangeDebounce returns the minimum gap between kept lane changes.
func (c *TuningConfig) GetLaneChangeDebounce() time.Duration {
	return durationOr(c.LaneChangeDebounce, 6*time.Second)
}

// GetLaneChangeExclusion returns the half-width of the window around each
// turn in which lane changes are suppressed.
func (c *TuningConfig) GetLaneChangeExclusion() time.Duration {
	return durationOr(c.LaneChangeExclusion, 7*time.Second)
}

// GetCollapseWindow returns the window for collapsing same-type event runs.
func (c *TuningConfig) GetCollapseWindow() time.Duration {
	return durationOr(c.CollapseWindow, 60*time.Second)
}

// GetEventFrameTolerance returns the tolerance for aligning events to the
// reference frame-sequence channel.
func (c *TuningConfig) GetEventFrameTolerance() time.Duration {
	return durationOr(c.EventFrameTolerance, 100*time.Millisecond)
}

// GetRestrictEventsToFrames reports whether events outside the reference
// channel's time span are dropped before frame alignment.
func (c *TuningConfig) GetRestrictEventsToFrames() bool {
	if c.RestrictEventsToFrames == nil {
		return true
	}
	return *c.RestrictEventsToFrames
}

// GetScenarioLabelTimezone returns the IANA zone used to format scenario labels.
func (c *TuningConfig) GetScenarioLabelTimezone() string {
	if c.ScenarioLabelTimezone == nil || *c.ScenarioLabelTimezone == "" {
		return "UTC"
	}
	return *c.ScenarioLabelTimezone
}

// GetTTCJoinTolerance returns the tolerance for the velocity/position/heading join.
func (c *TuningConfig) GetTTCJoinTolerance() time.Duration {
	return durationOr(c.TTCJoinTolerance, 50*time.Millisecond)
}

// GetTTCFrameTolerance returns the tolerance for matching ego samples to object frames.
func (c *TuningConfig) GetTTCFrameTolerance() time.Duration {
	return durationOr(c.TTCFrameTolerance, 50*time.Millisecond)
}

// GetTTCMinSpeedMps returns the ego speed below which no TTC is computed.
func (c *TuningConfig) GetTTCMinSpeedMps() float64 {
	return floatOr(c.TTCMinSpeedMps, 0.2)
}

// GetTTCMinLongitudinalM returns the minimum forward distance for a hazard.
func (c *TuningConfig) GetTTCMinLongitudinalM() float64 {
	return floatOr(c.TTCMinLongitudinalM, 5.0)
}

// GetTTCMaxLateralM returns the maximum lateral offset for a hazard.
func (c *TuningConfig) GetTTCMaxLateralM() float64 {
	return floatOr(c.TTCMaxLateralM, 1.5)
}

// GetTTCHazardCategories returns the object categories that count as hazards.
func (c *TuningConfig) GetTTCHazardCategories() []string {
	if len(c.TTCHazardCategories) == 0 {
		return []string{"car", "truck", "bus", "pedestrian"}
	}
	out := make([]string, len(c.TTCHazardCategories))
	copy(out, c.TTCHazardCategories)
	return out
}
