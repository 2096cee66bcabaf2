package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/trip/channel"
	"github.com/banshee-data/trip.review/internal/trip/events"
	"github.com/banshee-data/trip.review/internal/trip/tracks"
	"github.com/banshee-data/trip.review/internal/trip/ttc"
)

// Stage names.
const (
	StageTracking = "tracking"
	StageEvents   = "events"
	StageTTC      = "ttc"
)

// StageStatus represents the outcome of one stage.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped" // an upstream stage failed
)

// StageResult records how one stage went.
type StageResult struct {
	Stage    string
	Status   StageStatus
	Err      error
	Duration time.Duration
	Count    int // frames tracked, events found, or TTC samples
}

// BagTTC is the TTC series of one bag.
type BagTTC struct {
	Bag     string
	Samples []ttc.Sample
}

// Result holds everything one run produced.
type Result struct {
	Trip       string
	StartedAt  time.Time
	FinishedAt time.Time

	Tracks     *tracks.TrackMap
	TrackStats tracks.Stats
	Archived   []*tracks.Track
	Events     []events.Event
	Scenarios  []string
	TTC        []BagTTC

	Stages   []StageResult
	Warnings []string
}

// Stage returns the result of the named stage.
func (r *Result) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// OK reports whether every stage succeeded.
func (r *Result) OK() bool {
	for _, s := range r.Stages {
		if s.Status != StageOK {
			return false
		}
	}
	return len(r.Stages) > 0
}

// Err joins the errors of failed stages, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Stages {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Stage, s.Err))
		}
	}
	return errors.Join(errs...)
}

// TTCSampleCount sums the samples of every bag.
func (r *Result) TTCSampleCount() int {
	n := 0
	for _, b := range r.TTC {
		n += len(b.Samples)
	}
	return n
}

// Run executes every stage over in. It only returns early when ctx is
// cancelled between stages; stage failures are reported in the Result.
func Run(ctx context.Context, pc *Context, in *Inputs) (*Result, error) {
	res := &Result{Trip: pc.Name(), StartedAt: pc.clock.Now()}
	defer func() { res.FinishedAt = pc.clock.Now() }()

	res.Stages = append(res.Stages, runTracking(pc, in, res))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	res.Stages = append(res.Stages, runEvents(pc, in, res))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	res.Stages = append(res.Stages, runTTC(pc, in, res))

	for _, s := range res.Stages {
		monitoring.Logf("[pipeline] %s: %s %s (%d) in %v", res.Trip, s.Stage, s.Status, s.Count, s.Duration)
	}
	return res, nil
}

// RunTrip loads a trip manifest's channels and runs the pipeline on them.
func RunTrip(ctx context.Context, pc *Context) (*Result, error) {
	if pc.Trip == nil {
		return nil, errors.New("pipeline: context has no trip manifest")
	}
	return Run(ctx, pc, LoadInputs(pc.Trip))
}

func runTracking(pc *Context, in *Inputs, res *Result) (sr StageResult) {
	start := pc.clock.Now()
	sr = StageResult{Stage: StageTracking}
	defer func() { sr.Duration = pc.clock.Since(start) }()

	if len(in.Frames) == 0 {
		sr.Status, sr.Err = StageFailed, missing(in, channel.TopicLidarObjects)
		return sr
	}

	var ego tracks.EgoSource
	if in.Velocity.Len() > 0 && in.Heading.Len() > 0 {
		ego = tracks.EgoTimeline{Speed: in.Velocity, Heading: in.Heading, Tolerance: pc.EgoTolerance.Nanoseconds()}
	} else if pc.Tracker.EgoCompensation {
		res.Warnings = append(res.Warnings, "ego velocity or heading missing: tracking without ego-motion compensation")
	}

	tracker := tracks.NewTracker(pc.Tracker)
	m, err := tracker.Run(in.Frames, ego, func(done, total int) { pc.report(StageTracking, done, total) })
	if err != nil {
		sr.Status, sr.Err = StageFailed, err
		return sr
	}
	res.Tracks = m
	res.TrackStats = tracker.Stats()
	res.Archived = tracker.Archived()
	if res.TrackStats.RejectedFrames > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d out-of-order detection frames rejected", res.TrackStats.RejectedFrames))
	}
	sr.Status, sr.Count = StageOK, m.Len()
	return sr
}

func runEvents(pc *Context, in *Inputs, res *Result) (sr StageResult) {
	start := pc.clock.Now()
	sr = StageResult{Stage: StageEvents}
	defer func() { sr.Duration = pc.clock.Since(start) }()

	evs, err := events.Detect(events.Input{
		Velocity: in.Velocity,
		Steering: in.Steering,
		Frames:   in.CameraSeq,
	}, pc.Events)
	if err != nil {
		sr.Status, sr.Err = StageFailed, err
		return sr
	}
	res.Events = evs
	res.Scenarios = events.ScenarioLabels(evs, pc.Location)
	sr.Status, sr.Count = StageOK, len(evs)
	pc.report(StageEvents, 1, 1)
	return sr
}

func runTTC(pc *Context, in *Inputs, res *Result) (sr StageResult) {
	start := pc.clock.Now()
	sr = StageResult{Stage: StageTTC}
	defer func() { sr.Duration = pc.clock.Since(start) }()

	if res.Tracks == nil {
		sr.Status = StageSkipped
		return sr
	}
	if len(in.Bags) == 0 {
		sr.Status, sr.Err = StageFailed, fmt.Errorf("no bag has velocity, position and heading: %w", ttc.ErrMissingChannel)
		return sr
	}

	var lastErr error
	for i, bag := range in.Bags {
		samples, err := ttc.Estimate(ttc.Input{
			Velocity: bag.Velocity,
			Position: bag.Position,
			Heading:  bag.Heading,
			Tracks:   res.Tracks,
		}, pc.TTC)
		pc.report(StageTTC, i+1, len(in.Bags))
		if err != nil {
			monitoring.Warnf("[pipeline] ttc %s: %v", bag.Bag, err)
			lastErr = err
			continue
		}
		res.TTC = append(res.TTC, BagTTC{Bag: bag.Bag, Samples: samples})
	}
	if len(res.TTC) == 0 {
		sr.Status, sr.Err = StageFailed, lastErr
		return sr
	}
	sr.Status, sr.Count = StageOK, res.TTCSampleCount()
	return sr
}

func missing(in *Inputs, name string) error {
	if err := in.Problem(name); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", name, channel.ErrMissingChannel)
}
