package detections

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Artifact is the decoded detection-frame file.
type Artifact struct {
	Frames []Frame

	// Dropped counts entries discarded as malformed: unparsable timestamps,
	// tuples of the wrong arity, and non-numeric coordinates.
	Dropped int
}

// MarshalJSON encodes a detection as an [x, y, z, category] tuple.
func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{d.X, d.Y, d.Z, d.Category})
}

// UnmarshalJSON decodes an [x, y, z, category] tuple. Three-element
// [x, y, z] tuples are accepted with CategoryUnknown.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if len(raw) != 3 && len(raw) != 4 {
		return fmt.Errorf("detection: want 3 or 4 elements, got %d", len(raw))
	}
	var coords [3]float64
	for i := 0; i < 3; i++ {
		v, err := decodeNumber(raw[i])
		if err != nil {
			return fmt.Errorf("detection element %d: %w", i, err)
		}
		coords[i] = v
	}
	category := CategoryUnknown
	if len(raw) == 4 {
		if err := json.Unmarshal(raw[3], &category); err != nil {
			return fmt.Errorf("detection category: %w", err)
		}
	}
	*d = Detection{X: coords[0], Y: coords[1], Z: coords[2], Category: category}
	return nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return v, nil
}

// ReadArtifact decodes a detection-frame artifact. Malformed entries are
// dropped and counted; the frames come back sorted by time.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var raw map[string][]json.RawMessage
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode detection artifact: %w", err)
	}
	a := &Artifact{Frames: make([]Frame, 0, len(raw))}
	for key, entries := range raw {
		ts, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			a.Dropped += len(entries) + 1
			continue
		}
		frame := Frame{Time: ts, Detections: make([]Detection, 0, len(entries))}
		for _, entry := range entries {
			var d Detection
			if err := json.Unmarshal(entry, &d); err != nil {
				a.Dropped++
				continue
			}
			frame.Detections = append(frame.Detections, d)
		}
		a.Frames = append(a.Frames, frame)
	}
	a.Frames = SortFrames(a.Frames)
	return a, nil
}

// WriteArtifact encodes frames in the artifact layout.
func WriteArtifact(w io.Writer, frames []Frame) error {
	out := make(map[string][]Detection, len(frames))
	for _, f := range frames {
		key := strconv.FormatInt(f.Time, 10)
		dets := f.Detections
		if dets == nil {
			dets = []Detection{}
		}
		out[key] = append(out[key], dets...)
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("failed to encode detection artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads an artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open detection artifact: %w", err)
	}
	defer f.Close()
	return ReadArtifact(f)
}

// SaveArtifact writes an artifact to disk.
func SaveArtifact(path string, frames []Frame) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create detection artifact: %w", err)
	}
	if err := WriteArtifact(f, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
