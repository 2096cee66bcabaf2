package align

import (
	"cmp"
	"math"
	"slices"
	"sort"
)

// Unbounded disables the tolerance check in NearestWithin and JoinNearest.
const Unbounded int64 = math.MaxInt64

// Sample is one timestamped value from a channel.
type Sample[T any] struct {
	Time  int64 // Unix nanos
	Value T
}

// Series is an immutable channel: samples strictly increasing in time.
type Series[T any] struct {
	samples []Sample[T]
}

// NewSeries builds a Series from samples in any order. Samples are sorted
// stably by time; when two share a timestamp the first one supplied is kept
// and the rest are dropped. The second return value counts dropped samples.
func NewSeries[T any](samples []Sample[T]) (*Series[T], int) {
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b Sample[T]) int {
		return cmp.Compare(a.Time, b.Time)
	})
	out := sorted[:0]
	dropped := 0
	for i, s := range sorted {
		if i > 0 && len(out) > 0 && out[len(out)-1].Time == s.Time {
			dropped++
			continue
		}
		out = append(out, s)
	}
	return &Series[T]{samples: out}, dropped
}

// Len returns the number of samples.
func (s *Series[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// At returns the i-th sample in time order.
func (s *Series[T]) At(i int) Sample[T] {
	return s.samples[i]
}

// Samples returns a copy of the samples in time order.
func (s *Series[T]) Samples() []Sample[T] {
	if s == nil {
		return nil
	}
	return slices.Clone(s.samples)
}

// Span returns the first and last timestamps. ok is false for an empty series.
func (s *Series[T]) Span() (first, last int64, ok bool) {
	if s.Len() == 0 {
		return 0, 0, false
	}
	return s.samples[0].Time, s.samples[len(s.samples)-1].Time, true
}

// NearestIndex returns the index of the sample closest to target. Exact
// matches win; otherwise the smaller absolute difference wins and ties go to
// the earlier sample. ok is false only for an empty series.
func (s *Series[T]) NearestIndex(target int64) (int, bool) {
	n := s.Len()
	if n == 0 {
		return -1, false
	}
	i := sort.Search(n, func(i int) bool { return s.samples[i].Time >= target })
	if i == 0 {
		return 0, true
	}
	if i == n {
		return n - 1, true
	}
	before, after := s.samples[i-1].Time, s.samples[i].Time
	if after == target {
		return i, true
	}
	if absDiff(target, before) <= absDiff(after, target) {
		return i - 1, true
	}
	return i, true
}

// Nearest returns the sample closest to target with no tolerance bound.
func (s *Series[T]) Nearest(target int64) (Sample[T], bool) {
	return s.NearestWithin(target, Unbounded)
}

// NearestWithin returns the sample closest to target, or false when the
// series is empty or the closest sample is more than tolerance nanos away.
func (s *Series[T]) NearestWithin(target, tolerance int64) (Sample[T], bool) {
	i, ok := s.NearestIndex(target)
	if !ok {
		var zero Sample[T]
		return zero, false
	}
	sample := s.samples[i]
	if tolerance != Unbounded && (tolerance < 0 || absDiff(sample.Time, target) > uint64(tolerance)) {
		var zero Sample[T]
		return zero, false
	}
	return sample, true
}

// Times returns the timestamps in order.
func (s *Series[T]) Times() []int64 {
	times := make([]int64, s.Len())
	for i := range times {
		times[i] = s.samples[i].Time
	}
	return times
}

// absDiff returns |a-b| without overflowing for any pair of int64 values.
func absDiff(a, b int64) uint64 {
	if a >= b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}
