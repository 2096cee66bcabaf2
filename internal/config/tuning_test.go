package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	assert.Equal(t, 2.0, cfg.GetGatingDistanceMeters())
	assert.Equal(t, time.Second, cfg.GetStaleAfter())
	assert.Equal(t, 2.5, cfg.GetFootprintHalfLengthM())
	assert.Equal(t, 1.0, cfg.GetFootprintHalfWidthM())
	assert.True(t, cfg.GetEgoCompensation())
	assert.Equal(t, TaxonomyLegacy, cfg.GetTaxonomy())

	assert.Equal(t, 10.0, cfg.GetTurnMaxSpeedMps())
	assert.Equal(t, 10*time.Second, cfg.GetTurnDebounce())
	assert.Equal(t, 6*time.Second, cfg.GetLaneChangeDebounce())
	assert.Equal(t, 7*time.Second, cfg.GetLaneChangeExclusion())
	assert.Equal(t, 60*time.Second, cfg.GetCollapseWindow())
	assert.Equal(t, 100*time.Millisecond, cfg.GetEventFrameTolerance())

	assert.Equal(t, 50*time.Millisecond, cfg.GetTTCJoinTolerance())
	assert.Equal(t, 0.2, cfg.GetTTCMinSpeedMps())
	assert.Equal(t, []string{"car", "truck", "bus", "pedestrian"}, cfg.GetTTCHazardCategories())
}

func TestDefaultTuningConfigMatchesGetters(t *testing.T) {
	cfg := DefaultTuningConfig()
	require.NotNil(t, cfg.GatingDistanceMeters)
	assert.Equal(t, 2.0, *cfg.GatingDistanceMeters)
	require.NotNil(t, cfg.StaleAfter)
	assert.Equal(t, "1s", *cfg.StaleAfter)
	require.NoError(t, cfg.Validate())
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	builtin := EmptyTuningConfig()

	assert.Equal(t, builtin.GetGatingDistanceMeters(), fromFile.GetGatingDistanceMeters())
	assert.Equal(t, builtin.GetStaleAfter(), fromFile.GetStaleAfter())
	assert.Equal(t, builtin.GetProcessNoisePos(), fromFile.GetProcessNoisePos())
	assert.Equal(t, builtin.GetMeasurementNoise(), fromFile.GetMeasurementNoise())
	assert.Equal(t, builtin.GetTurnDebounce(), fromFile.GetTurnDebounce())
	assert.Equal(t, builtin.GetTTCHazardCategories(), fromFile.GetTTCHazardCategories())
	assert.Equal(t, builtin.GetTaxonomy(), fromFile.GetTaxonomy())
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("partial json", func(t *testing.T) {
		path := filepath.Join(tmpDir, "partial.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"gating_distance_m": 3.5, "turn_debounce": "12s"}`), 0o644))

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 3.5, cfg.GetGatingDistanceMeters())
		assert.Equal(t, 12*time.Second, cfg.GetTurnDebounce())
		assert.Equal(t, time.Second, cfg.GetStaleAfter(), "omitted fields keep defaults")
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(tmpDir, "tuning.yaml")
		body := "taxonomy: passthrough\nttc_hazard_categories:\n  - car\n  - bike\nttc_max_lateral_m: 2\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, TaxonomyPassthrough, cfg.GetTaxonomy())
		assert.Equal(t, []string{"car", "bike"}, cfg.GetTTCHazardCategories())
		assert.Equal(t, 2.0, cfg.GetTTCMaxLateralM())
	})

	t.Run("bad extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "tuning.txt")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTuningConfig(filepath.Join(tmpDir, "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"gating_distance_m": `), 0o644))
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty", TuningConfig{}, false},
		{"zero gate", TuningConfig{GatingDistanceMeters: ptrFloat64(0)}, true},
		{"negative footprint", TuningConfig{FootprintHalfWidthM: ptrFloat64(-1)}, true},
		{"bad duration", TuningConfig{StaleAfter: ptrString("soon")}, true},
		{"negative duration", TuningConfig{CollapseWindow: ptrString("-1s")}, true},
		{"inverted lane change band", TuningConfig{LaneChangeMinSteering: ptrFloat64(2), LaneChangeMaxSteering: ptrFloat64(1)}, true},
		{"unknown taxonomy", TuningConfig{Taxonomy: ptrString("zoology")}, true},
		{"passthrough taxonomy", TuningConfig{Taxonomy: ptrString(TaxonomyPassthrough)}, false},
		{"bad timezone", TuningConfig{ScenarioLabelTimezone: ptrString("Mars/Olympus")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationFallbackOnParseError(t *testing.T) {
	cfg := &TuningConfig{TurnDebounce: ptrString("garbage")}
	assert.Equal(t, 10*time.Second, cfg.GetTurnDebounce())
}
