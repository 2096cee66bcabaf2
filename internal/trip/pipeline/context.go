package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/trip.review/internal/config"
	"github.com/banshee-data/trip.review/internal/timeutil"
	"github.com/banshee-data/trip.review/internal/trip/channel"
	"github.com/banshee-data/trip.review/internal/trip/events"
	"github.com/banshee-data/trip.review/internal/trip/tracks"
	"github.com/banshee-data/trip.review/internal/trip/ttc"
)

// ProgressFunc receives coarse checkpoints: the stage name and how many of
// its units of work are done.
type ProgressFunc func(stage string, done, total int)

// Context is the immutable configuration of one run.
type Context struct {
	Trip         *channel.Manifest
	Tracker      tracks.TrackerConfig
	Events       events.Config
	TTC          ttc.Config
	EgoTolerance time.Duration
	Location     *time.Location // wall-clock zone for scenario labels

	progress ProgressFunc
	clock    timeutil.Clock
}

// Option customises a Context at construction.
type Option func(*Context)

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Context) { c.progress = fn }
}

// WithClock replaces the wall clock used to stamp runs.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Context) { c.clock = clock }
}

// NewContext derives every component configuration from cfg.
func NewContext(trip *channel.Manifest, cfg *config.TuningConfig, opts ...Option) (*Context, error) {
	if cfg == nil {
		cfg = config.DefaultTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}
	trackerCfg, err := tracks.TrackerConfigFromTuning(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.GetScenarioLabelTimezone())
	if err != nil {
		return nil, fmt.Errorf("scenario label timezone: %w", err)
	}
	c := &Context{
		Trip:         trip,
		Tracker:      trackerCfg,
		Events:       events.ConfigFromTuning(cfg),
		TTC:          ttc.ConfigFromTuning(cfg),
		EgoTolerance: cfg.GetEgoAlignmentTolerance(),
		Location:     loc,
		clock:        timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the trip name, or "" when the context has no manifest.
func (c *Context) Name() string {
	if c.Trip == nil {
		return ""
	}
	return c.Trip.Name
}

func (c *Context) report(stage string, done, total int) {
	if c.progress != nil {
		c.progress(stage, done, total)
	}
}
