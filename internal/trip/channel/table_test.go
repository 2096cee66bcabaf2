package channel

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"time,velocity,acceleration",
		"300,7.5,0.1",
		"100,5.0,",
		"oops,1.0,1.0",
		"200,abc,0.2",
		"1.5e3,9.0,0.3",
	}, "\n")

	table, err := ReadCSV(strings.NewReader(input), "ssc_velocity")
	require.NoError(t, err)
	assert.Equal(t, 4, table.Len())
	assert.Equal(t, 1, table.DroppedRows, "row with malformed time is dropped")
	assert.Equal(t, []int64{300, 100, 200, 1500}, table.Times)

	velocity, dropped, err := table.Column("velocity")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped, "non-numeric velocity dropped")
	assert.Equal(t, []int64{100, 300, 1500}, velocity.Times())

	accel, dropped, err := table.Column("acceleration")
	require.NoError(t, err)
	assert.Equal(t, 1, dropped, "empty acceleration dropped")
	assert.Equal(t, 3, accel.Len())

	_, _, err = table.Column("steering")
	assert.True(t, errors.Is(err, ErrMissingChannel))
}

func TestReadCSVMissingTimeColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("stamp,velocity\n1,2\n"), "bad")
	assert.ErrorIs(t, err, ErrMissingChannel)

	_, err = ReadCSV(strings.NewReader(""), "empty")
	assert.ErrorIs(t, err, ErrMissingChannel)
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "absent.ssc_velocity"))
	assert.ErrorIs(t, err, ErrMissingChannel)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1700000000000000000", 1700000000000000000, true},
		{" 42 ", 42, true},
		{"1.7e18", 1700000000000000000, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"1e30", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTime(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseTime(%q)", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "ParseTime(%q)", tt.in)
		}
	}
}

func TestConcat(t *testing.T) {
	a := &Table{Name: "a", Times: []int64{1, 2}, Columns: map[string][]float64{"velocity": {1, 2}}}
	b := &Table{Name: "b", Times: []int64{3}, Columns: map[string][]float64{"velocity": {3}, "acceleration": {0.5}}, DroppedRows: 2}

	out := Concat("ssc_velocity", a, nil, b)
	assert.Equal(t, []int64{1, 2, 3}, out.Times)
	assert.Equal(t, []float64{1, 2, 3}, out.Columns["velocity"])
	require.Len(t, out.Columns["acceleration"], 3)
	assert.True(t, math.IsNaN(out.Columns["acceleration"][0]))
	assert.Equal(t, 0.5, out.Columns["acceleration"][2])
	assert.Equal(t, 2, out.DroppedRows)

	accel, dropped, err := out.Column("acceleration")
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1, accel.Len())
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}
