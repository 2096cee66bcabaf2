package channel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Topic names used by recorded trips.
const (
	TopicVelocity     = "ssc_velocity"
	TopicSteering     = "steering_feedback"
	TopicPosition     = "pos"
	TopicHeading      = "heading"
	TopicCamera       = "cam_zed2i"
	TopicLidarObjects = "lidarObj"
	TopicTTC          = "time_to_collision"
)

// Column names carried by the topics above.
const (
	ColVelocity     = "velocity"
	ColAcceleration = "acceleration"
	ColSteering     = "steering"
	ColHeading      = "heading"
	ColLat          = "lat"
	ColLon          = "lon"
	ColSeq          = "seq"
)

// Manifest describes a trip package: where its channel files live and which
// bags recorded each topic.
type Manifest struct {
	Pwd    string              `json:"pwd"`
	Topics map[string][]string `json:"topics"`
	Lidar  string              `json:"lidar,omitempty"`
	Name   string              `json:"name,omitempty"`
}

// LoadManifest reads a trip manifest. An empty pwd resolves to the
// manifest's own directory, and an empty name to its base file name.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read trip manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse trip manifest %s: %w", path, err)
	}
	if m.Pwd == "" {
		m.Pwd = filepath.Dir(path)
	}
	if m.Name == "" {
		base := filepath.Base(path)
		m.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	if m.Topics == nil {
		m.Topics = make(map[string][]string)
	}
	return &m, nil
}

// BagPath returns the channel file for one bag and topic:
// <pwd>/csv/<bag>.<topic>.
func (m *Manifest) BagPath(bag, topic string) string {
	return filepath.Join(m.Pwd, "csv", bag+"."+topic)
}

// Bags returns the bags recorded for a topic.
func (m *Manifest) Bags(topic string) []string {
	return append([]string(nil), m.Topics[topic]...)
}

// CommonBags returns, sorted, the bags present in every listed topic.
func (m *Manifest) CommonBags(topics ...string) []string {
	if len(topics) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, topic := range topics {
		seen := make(map[string]bool)
		for _, bag := range m.Topics[topic] {
			if !seen[bag] {
				seen[bag] = true
				counts[bag]++
			}
		}
	}
	var common []string
	for bag, n := range counts {
		if n == len(topics) {
			common = append(common, bag)
		}
	}
	sort.Strings(common)
	return common
}

// LoadBagTopic loads one bag's file for a topic.
func (m *Manifest) LoadBagTopic(bag, topic string) (*Table, error) {
	return LoadCSV(m.BagPath(bag, topic))
}

// LoadTopic loads and concatenates every bag recorded for a topic.
func (m *Manifest) LoadTopic(topic string) (*Table, error) {
	bags := m.Topics[topic]
	if len(bags) == 0 {
		return nil, fmt.Errorf("topic %q: %w", topic, ErrMissingChannel)
	}
	tables := make([]*Table, 0, len(bags))
	for _, bag := range bags {
		t, err := m.LoadBagTopic(bag, topic)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return Concat(topic, tables...), nil
}

// LidarPath returns the detection-frame artifact path.
func (m *Manifest) LidarPath() (string, error) {
	if m.Lidar == "" {
		return "", fmt.Errorf("lidar artifact: %w", ErrMissingChannel)
	}
	if filepath.IsAbs(m.Lidar) {
		return m.Lidar, nil
	}
	return filepath.Join(m.Pwd, m.Lidar), nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trip manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trip manifest: %w", err)
	}
	return nil
}

// AddBag records that bag produced a topic, ignoring duplicates.
func (m *Manifest) AddBag(topic, bag string) {
	if m.Topics == nil {
		m.Topics = make(map[string][]string)
	}
	for _, b := range m.Topics[topic] {
		if b == bag {
			return
		}
	}
	m.Topics[topic] = append(m.Topics[topic], bag)
}
