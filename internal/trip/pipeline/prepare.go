package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/trip/channel"
	"github.com/banshee-data/trip.review/internal/trip/detections"
)

// DefaultArtifactName is the detection-frame artifact written next to the
// manifest when none is named.
const DefaultArtifactName = "lidar_detections.json"

// PrepareDetections builds the detection-frame artifact from the trip's raw
// lidar object tables, writes it under the trip directory and records it in
// the manifest. The manifest itself is not saved.
func PrepareDetections(m *channel.Manifest, tax detections.Taxonomy) (detections.ExtractStats, error) {
	bags := m.Bags(channel.TopicLidarObjects)
	if len(bags) == 0 {
		return detections.ExtractStats{}, fmt.Errorf("%s: %w", channel.TopicLidarObjects, channel.ErrMissingChannel)
	}
	paths := make([]string, len(bags))
	for i, bag := range bags {
		paths[i] = m.BagPath(bag, channel.TopicLidarObjects)
	}
	frames, stats, err := detections.ExtractBags(paths, tax)
	if err != nil {
		return stats, err
	}

	name := m.Lidar
	if name == "" {
		name = DefaultArtifactName
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Pwd, name)
	}
	if err := detections.SaveArtifact(path, frames); err != nil {
		return stats, fmt.Errorf("failed to write detection artifact: %w", err)
	}
	m.Lidar = name
	monitoring.Logf("[pipeline] %s: %d frames from %d object rows (%d malformed, %d unmapped)",
		m.Name, stats.FrameCount, stats.Rows, stats.Malformed, stats.Unmapped)
	return stats, nil
}
