package align

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeries(t *testing.T) *Series[float64] {
	t.Helper()
	s, dropped := NewSeries([]Sample[float64]{
		{Time: 400, Value: 4},
		{Time: 100, Value: 1},
		{Time: 200, Value: 2},
	})
	require.Zero(t, dropped)
	return s
}

func TestNearest(t *testing.T) {
	s := testSeries(t)

	tests := []struct {
		name   string
		target int64
		want   int64
	}{
		{"exact", 200, 200},
		{"closer to earlier", 120, 100},
		{"closer to earlier wide gap", 250, 200},
		{"tie prefers earlier", 150, 100},
		{"tie prefers earlier second gap", 300, 200},
		{"closer to later", 390, 400},
		{"before start", -50, 100},
		{"after end", 10_000, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Nearest(tt.target)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Time)
		})
	}
}

func TestNearestWithin(t *testing.T) {
	s := testSeries(t)

	got, ok := s.NearestWithin(130, 30)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Value)

	_, ok = s.NearestWithin(131, 30)
	assert.False(t, ok, "31ns away exceeds 30ns tolerance")

	_, ok = s.NearestWithin(100, 0)
	assert.True(t, ok, "exact match satisfies zero tolerance")

	_, ok = s.NearestWithin(100, -1)
	assert.False(t, ok)
}

func TestNearestEmpty(t *testing.T) {
	var nilSeries *Series[int]
	_, ok := nilSeries.Nearest(5)
	assert.False(t, ok)

	empty, _ := NewSeries[int](nil)
	_, ok = empty.Nearest(5)
	assert.False(t, ok)
	_, _, ok = empty.Span()
	assert.False(t, ok)
}

func TestNewSeriesDropsDuplicates(t *testing.T) {
	s, dropped := NewSeries([]Sample[string]{
		{Time: 10, Value: "a"},
		{Time: 5, Value: "b"},
		{Time: 10, Value: "c"},
		{Time: 10, Value: "d"},
	})
	assert.Equal(t, 2, dropped)
	want := []Sample[string]{{Time: 5, Value: "b"}, {Time: 10, Value: "a"}}
	if diff := cmp.Diff(want, s.Samples()); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestSpan(t *testing.T) {
	s := testSeries(t)
	first, last, ok := s.Span()
	require.True(t, ok)
	assert.Equal(t, int64(100), first)
	assert.Equal(t, int64(400), last)
}

func TestAbsDiffExtremes(t *testing.T) {
	assert.Equal(t, uint64(1<<64-1), absDiff(9223372036854775807, -9223372036854775808))
	assert.Equal(t, uint64(3), absDiff(-1, 2))
}
