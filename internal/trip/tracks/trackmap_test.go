package tracks

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrackMap(t *testing.T) *TrackMap {
	t.Helper()
	m := &TrackMap{}
	require.NoError(t, m.Append(t0, []TrackedObject{
		{TrackID: 0, X: 5, Y: 0, Yaw: 0, Category: "car"},
		{TrackID: 1, X: 12.5, Y: -3.25, Yaw: 1.5, Category: "pedestrian"},
	}))
	require.NoError(t, m.Append(t0+100*ms, nil))
	require.NoError(t, m.Append(t0+200*ms, []TrackedObject{
		{TrackID: 1, X: 12, Y: -3, Yaw: -0.75, Category: "pedestrian"},
	}))
	return m
}

func TestTrackMap_RoundTrip(t *testing.T) {
	m := sampleTrackMap(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTrackMap(&buf, m))

	got, err := ReadTrackMap(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(m.Frames(), got.Frames(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackMap_SaveLoad(t *testing.T) {
	m := sampleTrackMap(t)
	path := filepath.Join(t.TempDir(), "tracks.json")
	require.NoError(t, SaveTrackMap(path, m))

	got, err := LoadTrackMap(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got.TrackIDs())
	objs, ok := got.At(t0 + 200*ms)
	require.True(t, ok)
	assert.Equal(t, -0.75, objs[0].Yaw)
}

func TestTrackMap_WriteFormat(t *testing.T) {
	m := &TrackMap{}
	require.NoError(t, m.Append(42, []TrackedObject{{TrackID: 3, X: 1, Y: 2, Yaw: 0.5, Category: "bus"}}))
	var buf bytes.Buffer
	require.NoError(t, WriteTrackMap(&buf, m))
	assert.Equal(t, `{"42":[[1,2,0.5,"bus",3]]}`+"\n", buf.String())
}

func TestTrackMap_ReadWithoutIDs(t *testing.T) {
	got, err := ReadTrackMap(strings.NewReader(`{"200":[[1,2,0,"car"]],"100":[]}`))
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, int64(100), got.Frames()[0].Time)
	assert.Equal(t, -1, got.Frames()[1].Objects[0].TrackID)
}

func TestTrackMap_ReadErrors(t *testing.T) {
	for _, in := range []string{
		`[]`,
		`{"abc":[]}`,
		`{"1":[[1,2,"car"]]}`,
		`{"1":[[1,2,0,7]]}`,
		`{"1":[["x",2,0,"car"]]}`,
	} {
		_, err := ReadTrackMap(strings.NewReader(in))
		assert.Error(t, err, in)
	}
}

func TestTrackMap_WriteRejectsNonFinite(t *testing.T) {
	m := &TrackMap{}
	require.NoError(t, m.Append(1, []TrackedObject{{X: math.NaN()}}))
	assert.Error(t, WriteTrackMap(&bytes.Buffer{}, m))
}

func TestTrackMap_AppendOrdering(t *testing.T) {
	m := &TrackMap{}
	require.NoError(t, m.Append(10, []TrackedObject{{TrackID: 0}}))
	require.NoError(t, m.Append(10, []TrackedObject{{TrackID: 1}}))
	assert.Equal(t, 1, m.Len())
	objs, _ := m.At(10)
	assert.Equal(t, 1, objs[0].TrackID)

	assert.ErrorIs(t, m.Append(9, nil), ErrOutOfOrder)

	_, ok := m.At(11)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Series().Len())
}
