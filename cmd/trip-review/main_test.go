package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trip.review/internal/monitoring"
	"github.com/banshee-data/trip.review/internal/trip/channel"
	"github.com/banshee-data/trip.review/internal/trip/report"
	"github.com/banshee-data/trip.review/internal/trip/storage/sqlite"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	monitoring.SetWarnLogger(nil)
	os.Exit(m.Run())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a.json", "b.json"}, splitList(" a.json, ,b.json "))
	assert.Nil(t, splitList(""))

	var l listFlag
	require.NoError(t, l.Set("a,b"))
	require.NoError(t, l.Set("c"))
	assert.Equal(t, []string{"a", "b", "c"}, []string(l))
	assert.Equal(t, "a,b,c", l.String())
}

// writeManifest lays out a one-bag trip approaching a stopped car and saves
// its manifest; the lidar artefact is left for --prepare to build.
func writeManifest(t *testing.T, name string) string {
	t.Helper()
	const t0 int64 = 1_700_000_000_000_000_000
	dir := t.TempDir()
	files := map[string]*strings.Builder{}
	add := func(topic, format string, args ...any) {
		b, ok := files[topic]
		if !ok {
			b = &strings.Builder{}
			files[topic] = b
		}
		fmt.Fprintf(b, format, args...)
	}
	add(channel.TopicVelocity, "time,velocity\n")
	add(channel.TopicHeading, "time,heading\n")
	add(channel.TopicPosition, "time,lat,lon\n")
	add(channel.TopicCamera, "time,seq\n")
	add(channel.TopicLidarObjects, "time,x,y,z,label\n")
	add(channel.TopicSteering, "time,steering\n%d,3.0\n", t0)
	for k := 0; k < 11; k++ {
		ts := t0 + int64(k)*100_000_000
		add(channel.TopicVelocity, "%d,5.0\n", ts)
		add(channel.TopicHeading, "%d,0.0\n", ts)
		add(channel.TopicPosition, "%d,52.0,4.0\n", ts)
		add(channel.TopicCamera, "%d,%d\n", ts, k)
		add(channel.TopicLidarObjects, "%d,%.1f,0.0,0.5,car\n", ts, 20-0.5*float64(k))
	}

	m := &channel.Manifest{Pwd: dir, Name: name, Topics: map[string][]string{}}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "csv"), 0o755))
	for topic, b := range files {
		require.NoError(t, os.WriteFile(m.BagPath("bag1", topic), []byte(b.String()), 0o644))
		m.AddBag(topic, "bag1")
	}
	path := filepath.Join(dir, name+".json")
	require.NoError(t, m.Save(path))
	return path
}

func TestExecuteRun_EndToEnd(t *testing.T) {
	manifest := writeManifest(t, "trip_a")
	work := t.TempDir()
	opts := runOptions{
		Trips:   []string{manifest, filepath.Join(work, "missing.json")},
		DBPath:  filepath.Join(work, "runs.db"),
		OutDir:  filepath.Join(work, "reports"),
		Workers: 2,
		Prepare: true,
		SaveTTC: true,
	}

	items, err := executeRun(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Error(t, items[0].Err, "missing manifest is reported first")
	ok := items[1]
	require.NoError(t, ok.Err)
	require.True(t, ok.Result.OK(), "%v", ok.Result.Err())
	assert.Equal(t, 11, ok.Result.Tracks.Len())
	assert.Equal(t, 11, ok.Result.TTCSampleCount())

	_, err = os.Stat(filepath.Join(opts.OutDir, "trip_a", report.HTMLFile))
	assert.NoError(t, err)

	m, err := channel.LoadManifest(manifest)
	require.NoError(t, err)
	assert.Equal(t, []string{"bag1"}, m.Bags(channel.TopicTTC))
	assert.NotEmpty(t, m.Lidar)

	db, err := sqlite.Open(opts.DBPath)
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewRunStore(db.DB)
	runs, err := store.ListRuns("trip_a")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunStatusComplete, runs[0].Status)

	var buf bytes.Buffer
	require.NoError(t, listRuns(&buf, store, ""))
	assert.Contains(t, buf.String(), runs[0].RunID)

	buf.Reset()
	require.NoError(t, showRun(&buf, store, runs[0].RunID))
	assert.Contains(t, buf.String(), "status  complete")
	assert.Contains(t, buf.String(), "tracking")
}

func TestExecuteRun_BadConfig(t *testing.T) {
	_, err := executeRun(context.Background(), runOptions{
		Trips:      []string{"x.json"},
		ConfigPath: filepath.Join(t.TempDir(), "tuning.toml"),
	})
	assert.Error(t, err)
}

func TestListRuns_Empty(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	require.NoError(t, listRuns(&buf, sqlite.NewRunStore(db.DB), ""))
	assert.Equal(t, "no runs\n", buf.String())
}

func TestExecuteRun_UnknownTaxonomy(t *testing.T) {
	manifest := writeManifest(t, "trip_b")
	_, err := executeRun(context.Background(), runOptions{
		Trips:    []string{manifest},
		Taxonomy: "nope",
	})
	assert.ErrorContains(t, err, "unknown taxonomy")
}

func TestExecuteRun_DuplicateTripNames(t *testing.T) {
	first := writeManifest(t, "trip")
	second := writeManifest(t, "trip")
	require.NotEqual(t, filepath.Dir(first), filepath.Dir(second))
	work := t.TempDir()

	items, err := executeRun(context.Background(), runOptions{
		Trips:   []string{first, second},
		OutDir:  filepath.Join(work, "reports"),
		Workers: 2,
		Prepare: true,
		SaveTTC: true,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.ErrorIs(t, items[0].Err, errDuplicateTrip)
	assert.Contains(t, items[0].Err.Error(), second)
	require.NoError(t, items[1].Err)
	require.True(t, items[1].Result.OK(), "%v", items[1].Result.Err())

	m1, err := channel.LoadManifest(first)
	require.NoError(t, err)
	assert.Equal(t, []string{"bag1"}, m1.Bags(channel.TopicTTC))
	_, err = os.Stat(m1.BagPath("bag1", channel.TopicTTC))
	assert.NoError(t, err)

	m2, err := channel.LoadManifest(second)
	require.NoError(t, err)
	assert.Empty(t, m2.Bags(channel.TopicTTC), "rejected trip is left untouched")
	_, err = os.Stat(m2.BagPath("bag1", channel.TopicTTC))
	assert.True(t, os.IsNotExist(err))
}

func TestExecuteRun_PairsResultsWithTheirTrips(t *testing.T) {
	a := writeManifest(t, "trip_a")
	b := writeManifest(t, "trip_b")

	items, err := executeRun(context.Background(), runOptions{
		Trips:   []string{a, b},
		Workers: 2,
		Prepare: true,
		SaveTTC: true,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for i, path := range []string{a, b} {
		m, err := channel.LoadManifest(path)
		require.NoError(t, err)
		assert.Equal(t, m.Name, items[i].Trip)
		assert.Equal(t, []string{"bag1"}, m.Bags(channel.TopicTTC))
		table, err := m.LoadBagTopic("bag1", channel.TopicTTC)
		require.NoError(t, err)
		assert.Equal(t, items[i].Result.TTCSampleCount(), table.Len())
	}
}
