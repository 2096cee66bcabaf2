package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/trip/align"
	"github.com/banshee-data/trip.review/internal/trip/channel"
	"github.com/banshee-data/trip.review/internal/trip/detections"
	"github.com/banshee-data/trip.review/internal/trip/ttc"
)

// BagInputs are the ego channels of one bag, used for per-bag TTC.
type BagInputs struct {
	Bag      string
	Velocity *align.Series[float64]
	Position *align.Series[ttc.LatLon]
	Heading  *align.Series[float64]
}

// Inputs are the fully materialised channels of one trip. A nil field
// means the channel was not available; Problems says why.
type Inputs struct {
	Frames    []detections.Frame
	Velocity  *align.Series[float64] // all bags, m/s
	Steering  *align.Series[float64] // all bags
	Heading   *align.Series[float64] // all bags, degrees
	CameraSeq *align.Series[int64]
	Bags      []BagInputs

	Problems map[string]error
	Dropped  int // malformed or duplicate samples discarded while loading
}

func (in *Inputs) problem(name string, err error) {
	if in.Problems == nil {
		in.Problems = make(map[string]error)
	}
	in.Problems[name] = err
	if errors.Is(err, channel.ErrMissingChannel) {
		monitoring.Warnf("[pipeline] %s: channel missing", name)
		return
	}
	monitoring.Warnf("[pipeline] %s: %v", name, err)
}

// Problem returns the load error recorded for a channel name.
func (in *Inputs) Problem(name string) error {
	return in.Problems[name]
}

// LoadInputs reads every channel the pipeline uses from a trip manifest.
// Missing or unreadable channels are recorded in Problems rather than
// failing the load; the stage that needs them reports the failure.
func LoadInputs(m *channel.Manifest) *Inputs {
	in := &Inputs{}

	if path, err := m.LidarPath(); err != nil {
		in.problem(channel.TopicLidarObjects, err)
	} else if art, err := detections.LoadArtifact(path); err != nil {
		in.problem(channel.TopicLidarObjects, fmt.Errorf("%w: %v", channel.ErrMissingChannel, err))
	} else {
		in.Frames = art.Frames
		in.Dropped += art.Dropped
	}

	in.Velocity = in.topicColumn(m, channel.TopicVelocity, channel.ColVelocity)
	in.Steering = in.topicColumn(m, channel.TopicSteering, channel.ColSteering)
	in.Heading = in.topicColumn(m, channel.TopicHeading, channel.ColHeading)
	if seq := in.topicColumn(m, channel.TopicCamera, channel.ColSeq); seq != nil {
		in.CameraSeq = align.Map(seq, func(s align.Sample[float64]) int64 { return int64(s.Value) })
	}

	for _, bag := range m.CommonBags(channel.TopicVelocity, channel.TopicPosition, channel.TopicHeading) {
		b, err := loadBag(m, bag)
		if err != nil {
			in.problem(bag, err)
			continue
		}
		in.Dropped += b.dropped
		in.Bags = append(in.Bags, b.BagInputs)
	}
	return in
}

func (in *Inputs) topicColumn(m *channel.Manifest, topic, column string) *align.Series[float64] {
	table, err := m.LoadTopic(topic)
	if err != nil {
		in.problem(topic, err)
		return nil
	}
	series, dropped, err := table.Column(column)
	if err != nil {
		in.problem(topic, err)
		return nil
	}
	in.Dropped += dropped
	return series
}

type loadedBag struct {
	BagInputs
	dropped int
}

func loadBag(m *channel.Manifest, bag string) (loadedBag, error) {
	out := loadedBag{BagInputs: BagInputs{Bag: bag}}
	columns := func(topic string, names ...string) ([]*align.Series[float64], error) {
		table, err := m.LoadBagTopic(bag, topic)
		if err != nil {
			return nil, err
		}
		series := make([]*align.Series[float64], len(names))
		for i, name := range names {
			s, dropped, err := table.Column(name)
			if err != nil {
				return nil, err
			}
			out.dropped += dropped
			series[i] = s
		}
		return series, nil
	}

	vel, err := columns(channel.TopicVelocity, channel.ColVelocity)
	if err != nil {
		return out, err
	}
	heading, err := columns(channel.TopicHeading, channel.ColHeading)
	if err != nil {
		return out, err
	}
	pos, err := columns(channel.TopicPosition, channel.ColLat, channel.ColLon)
	if err != nil {
		return out, err
	}
	out.Velocity = vel[0]
	out.Heading = heading[0]
	out.Position = ttc.PositionSeries(pos[0], pos[1])
	return out, nil
}
