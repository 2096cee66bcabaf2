package align

// Pair is one row of a nearest-match join.
type Pair[L, R any] struct {
	Left      L
	Right     R
	RightTime int64 // timestamp of the matched right-hand sample
}

// JoinNearest is the bounded asof-join: every left sample is paired with the
// right sample nearest in time. Left rows whose nearest right sample is
// further than tolerance nanos away are dropped. The result keeps the left
// timestamps.
func JoinNearest[L, R any](left *Series[L], right *Series[R], tolerance int64) *Series[Pair[L, R]] {
	out := &Series[Pair[L, R]]{}
	if left.Len() == 0 || right.Len() == 0 {
		return out
	}
	out.samples = make([]Sample[Pair[L, R]], 0, left.Len())
	for _, l := range left.samples {
		r, ok := right.NearestWithin(l.Time, tolerance)
		if !ok {
			continue
		}
		out.samples = append(out.samples, Sample[Pair[L, R]]{
			Time:  l.Time,
			Value: Pair[L, R]{Left: l.Value, Right: r.Value, RightTime: r.Time},
		})
	}
	return out
}

// Map transforms every value of a series, keeping timestamps.
func Map[T, U any](s *Series[T], fn func(Sample[T]) U) *Series[U] {
	out := &Series[U]{samples: make([]Sample[U], 0, s.Len())}
	for i := 0; i < s.Len(); i++ {
		sample := s.samples[i]
		out.samples = append(out.samples, Sample[U]{Time: sample.Time, Value: fn(sample)})
	}
	return out
}
