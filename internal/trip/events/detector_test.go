package events

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trip.review/internal/trip/align"
)

const sec int64 = 1_000_000_000

func series(t *testing.T, pairs ...float64) *align.Series[float64] {
	t.Helper()
	var samples []align.Sample[float64]
	for i := 0; i+1 < len(pairs); i += 2 {
		samples = append(samples, align.Sample[float64]{Time: int64(pairs[i] * float64(sec)), Value: pairs[i+1]})
	}
	s, dropped := align.NewSeries(samples)
	require.Zero(t, dropped)
	return s
}

func testConfig() Config {
	return Config{
		TurnMaxSpeedMps:       10,
		TurnMinSteering:       2.0,
		LaneChangeMinSteering: 0.6,
		LaneChangeMaxSteering: 1.5,
		TurnDebounce:          10 * time.Second,
		LaneChangeDebounce:    6 * time.Second,
		LaneChangeExclusion:   7 * time.Second,
		CollapseWindow:        60 * time.Second,
		FrameTolerance:        100 * time.Millisecond,
		RestrictToFrames:      true,
	}
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, testConfig(), DefaultConfig())
}

func TestDetect_TurnDebounceKeepsFirst(t *testing.T) {
	vel := series(t, 0, 5, 3, 5)
	steer := series(t, 0, 3.0, 3, -2.5)

	got, err := Detect(Input{Velocity: vel, Steering: steer}, testConfig())
	require.NoError(t, err)
	want := []Event{{Time: 0, Type: Turn, Label: "Turn"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_MissingChannel(t *testing.T) {
	_, err := Detect(Input{Steering: series(t, 0, 1)}, testConfig())
	assert.ErrorIs(t, err, ErrMissingChannel)

	_, err = Detect(Input{Velocity: series(t, 0, 1), Steering: &align.Series[float64]{}}, testConfig())
	assert.ErrorIs(t, err, ErrMissingChannel)
}

func TestClassify(t *testing.T) {
	rows := []Candidate{
		{Time: 1, Velocity: 5, Steering: 2.5},   // turn
		{Time: 2, Velocity: 12, Steering: 2.5},  // too fast for a turn, too much steering for a lane change
		{Time: 3, Velocity: 20, Steering: -1.0}, // lane change at any speed
		{Time: 4, Velocity: 5, Steering: 0.6},   // boundary: not a lane change
		{Time: 5, Velocity: 5, Steering: 1.5},   // boundary: not a lane change
		{Time: 6, Velocity: 5, Steering: 2.0},   // boundary: not a turn
		{Time: 7, Velocity: 10, Steering: 3.0},  // boundary: not a turn
	}
	turns, lanes := Classify(rows, testConfig())
	assert.Equal(t, []int64{1}, turns)
	assert.Equal(t, []int64{3}, lanes)
}

func TestDebounce(t *testing.T) {
	tests := []struct {
		name  string
		times []int64
		gap   time.Duration
		want  []int64
	}{
		{"empty", nil, 10 * time.Second, nil},
		{"first kept", []int64{0, 3 * sec}, 10 * time.Second, []int64{0}},
		{"gap is exclusive", []int64{0, 10 * sec, 10*sec + 1}, 10 * time.Second, []int64{0, 10*sec + 1}},
		{"measured from kept", []int64{0, 6 * sec, 12 * sec, 18 * sec}, 10 * time.Second, []int64{0, 12 * sec}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Debounce(tt.times, tt.gap))
		})
	}
}

func TestExcludeNear(t *testing.T) {
	anchors := []int64{20 * sec, 100 * sec}
	times := []int64{0, 13 * sec, 13*sec - 1, 27 * sec, 27*sec + 1, 50 * sec, 95 * sec}
	got := ExcludeNear(times, anchors, 7*time.Second)
	assert.Equal(t, []int64{0, 13*sec - 1, 27*sec + 1, 50 * sec}, got)

	assert.Equal(t, times, ExcludeNear(times, nil, 7*time.Second))
}

func TestCollapse(t *testing.T) {
	evs := []Event{
		newEvent(0, LaneChange),
		newEvent(30*sec, LaneChange),
		newEvent(70*sec, LaneChange), // 70 s after the kept one
		newEvent(80*sec, Turn),
		newEvent(100*sec, LaneChange), // type changed since the last kept event
		newEvent(150*sec, LaneChange),
	}
	got := Collapse(evs, 60*time.Second)
	times := make([]int64, len(got))
	for i, e := range got {
		times[i] = e.Time
	}
	assert.Equal(t, []int64{0, 70 * sec, 80 * sec, 100 * sec}, times)
}

func TestDetect_LaneChangeExcludedAroundTurns(t *testing.T) {
	vel := series(t, 0, 5, 5, 5, 20, 20, 40, 20)
	steer := series(t, 0, 3.0, 5, 1.0, 20, 1.0, 40, 1.0)

	got, err := Detect(Input{Velocity: vel, Steering: steer}, testConfig())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Turn, got[0].Type)
	assert.Equal(t, int64(0), got[0].Time)
	// 5 s is inside the turn exclusion window; 40 s is collapsed into the
	// lane change kept at 20 s.
	assert.Equal(t, LaneChange, got[1].Type)
	assert.Equal(t, "Lane Change", got[1].Label)
	assert.Equal(t, 20*sec, got[1].Time)
}

func TestDetect_SteeringAlignedOntoVelocity(t *testing.T) {
	// Steering is sampled at a different rate; each velocity row takes the
	// nearest steering value.
	vel := series(t, 0, 5, 1, 5, 2, 5)
	steer := series(t, 0.9, 3.0)

	turns, _ := Classify(AlignSteering(vel, steer), testConfig())
	assert.Equal(t, []int64{0, sec, 2 * sec}, turns)
}

func TestAlignSteering_KeyedOnVelocity(t *testing.T) {
	// Velocity at 0.5 Hz, steering at 1 Hz: the 1 s steering spike falls
	// between velocity rows and produces no candidate.
	vel := series(t, 0, 5, 2, 5)
	steer := series(t, 0, 0.0, 1, 3.0, 2, 0.0)

	rows := AlignSteering(vel, steer)
	want := []Candidate{
		{Time: 0, Velocity: 5, Steering: 0},
		{Time: 2 * sec, Velocity: 5, Steering: 0},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	turns, _ := Classify(rows, testConfig())
	assert.Empty(t, turns)
}

func TestDetect_FrameAlignment(t *testing.T) {
	vel := series(t, 0, 5, 15, 20, 100, 5)
	steer := series(t, 0, 3.0, 15, 1.0, 100, 3.0)
	frames, _ := align.NewSeries([]align.Sample[int64]{
		{Time: 14*sec + 950_000_000, Value: 7},
		{Time: 100*sec + 200_000_000, Value: 9},
	})

	got, err := Detect(Input{Velocity: vel, Steering: steer, Frames: frames}, testConfig())
	require.NoError(t, err)
	// The turn at 0 s is before the first frame; the turn at 100 s has no
	// frame within 100 ms.
	require.Len(t, got, 1)
	assert.Equal(t, 15*sec, got[0].Time)
	require.NotNil(t, got[0].FrameSeq)
	assert.Equal(t, int64(7), *got[0].FrameSeq)
}

func TestDetect_NoSpanRestriction(t *testing.T) {
	cfg := testConfig()
	cfg.RestrictToFrames = false
	cfg.FrameTolerance = time.Second
	vel := series(t, 0, 5)
	steer := series(t, 0, 3.0)
	frames, _ := align.NewSeries([]align.Sample[int64]{{Time: 500_000_000, Value: 1}})

	got, err := Detect(Input{Velocity: vel, Steering: steer, Frames: frames}, cfg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), *got[0].FrameSeq)
}

func TestScenarioLabels(t *testing.T) {
	evs := []Event{
		newEvent(3_723_456_000_000, Turn),
		newEvent(3_724_000_000_000, LaneChange),
	}
	got := ScenarioLabels(evs, time.UTC)
	assert.Equal(t, []string{
		"0, 01:02:03.456: Turn",
		"1, 01:02:04.000: Lane Change",
	}, got)
}
