package detections

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trip.review/internal/trip/channel"
)

const objectCSV = `time,x,y,z,label
100,5.0,0.1,0.4,car
100,7.0,-2.0,0.5,bike
100,9.0,1.0,0.2,tree
200,,1.0,0.2,car
200,6.0,1.0,0.2,pedestrian
50,3.0,nan,0.1,car
`

func TestReadObjectCSV(t *testing.T) {
	t.Run("legacy", func(t *testing.T) {
		frames, stats, err := ReadObjectCSV(strings.NewReader(objectCSV), LegacyTaxonomy())
		require.NoError(t, err)
		assert.Equal(t, ExtractStats{Rows: 6, Kept: 3, Malformed: 2, Unmapped: 1, FrameCount: 2}, stats)

		require.Len(t, frames, 2)
		assert.Equal(t, int64(100), frames[0].Time)
		require.Len(t, frames[0].Detections, 2)
		assert.Equal(t, "car", frames[0].Detections[0].Category)
		assert.Equal(t, "truck", frames[0].Detections[1].Category)
		assert.Equal(t, "pedestrian", frames[1].Detections[0].Category)
	})

	t.Run("passthrough keeps bike", func(t *testing.T) {
		frames, _, err := ReadObjectCSV(strings.NewReader(objectCSV), PassthroughTaxonomy())
		require.NoError(t, err)
		assert.Equal(t, "bike", frames[0].Detections[1].Category)
	})

	t.Run("missing column", func(t *testing.T) {
		_, _, err := ReadObjectCSV(strings.NewReader("time,x,y,label\n1,2,3,car\n"), LegacyTaxonomy())
		assert.ErrorIs(t, err, channel.ErrMissingChannel)
	})
}

func TestExtractBags(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "bag_a.lidarObj")
	b := filepath.Join(dir, "bag_b.lidarObj")
	require.NoError(t, os.WriteFile(a, []byte("time,x,y,z,label\n300,5,0,0,car\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("time,x,y,z,label\n100,6,0,0,car\n300,7,0,0,pedestrian\n"), 0o644))

	frames, stats, err := ExtractBags([]string{a, b}, LegacyTaxonomy())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, 2, stats.FrameCount)
	require.Len(t, frames, 2)
	assert.Len(t, frames[1].Detections, 2)

	_, _, err = ExtractBags([]string{filepath.Join(dir, "missing")}, LegacyTaxonomy())
	assert.Error(t, err)
}
