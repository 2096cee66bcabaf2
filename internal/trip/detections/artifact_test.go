package detections

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadArtifact(t *testing.T) {
	input := `{
		"2000": [[12.5, -0.4, 0.8, "car"], [3, 1, 0]],
		"1000": [[5.0, 0.0, 0.5, "pedestrian"], ["x", 1, 2, "car"], [1, 2]],
		"later": [[1, 1, 1, "car"]]
	}`
	a, err := ReadArtifact(strings.NewReader(input))
	require.NoError(t, err)

	want := []Frame{
		{Time: 1000, Detections: []Detection{{X: 5, Y: 0, Z: 0.5, Category: "pedestrian"}}},
		{Time: 2000, Detections: []Detection{
			{X: 12.5, Y: -0.4, Z: 0.8, Category: "car"},
			{X: 3, Y: 1, Z: 0, Category: CategoryUnknown},
		}},
	}
	if diff := cmp.Diff(want, a.Frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	// two malformed tuples plus the bad key and its one entry
	assert.Equal(t, 4, a.Dropped)
}

func TestArtifactRoundTrip(t *testing.T) {
	frames := []Frame{
		{Time: 1_700_000_000_000_000_000, Detections: []Detection{{X: 10.25, Y: -1.5, Z: 0.3, Category: "car"}}},
		{Time: 1_700_000_000_100_000_000, Detections: []Detection{}},
		{Time: 1_700_000_000_200_000_000, Detections: []Detection{
			{X: 4, Y: 0.5, Z: 1, Category: "truck"},
			{X: -8, Y: 2, Z: 0.2, Category: "pedestrian"},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteArtifact(&buf, frames))
	decoded, err := ReadArtifact(&buf)
	require.NoError(t, err)
	assert.Zero(t, decoded.Dropped)
	if diff := cmp.Diff(frames, decoded.Frames); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	path := filepath.Join(t.TempDir(), "bag.lidar")
	require.NoError(t, SaveArtifact(path, frames))
	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Frames, 3)
}

func TestReadArtifactInvalidJSON(t *testing.T) {
	_, err := ReadArtifact(strings.NewReader(`[1,2,3]`))
	assert.Error(t, err)
}

func TestSortFramesMergesDuplicates(t *testing.T) {
	frames := SortFrames([]Frame{
		{Time: 20, Detections: []Detection{{X: 1}}},
		{Time: 10, Detections: []Detection{{X: 2}}},
		{Time: 20, Detections: []Detection{{X: 3}}},
	})
	require.Len(t, frames, 2)
	assert.Equal(t, int64(10), frames[0].Time)
	assert.Equal(t, []Detection{{X: 1}, {X: 3}}, frames[1].Detections)
}
