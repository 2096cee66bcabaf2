package units

import (
	"math"
	"testing"
)

func TestAngles(t *testing.T) {
	if got := DegToRad(180); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("DegToRad(180) = %f", got)
	}

	wrap := []struct{ in, want float64 }{
		{0, 0},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{2 * math.Pi, 0},
		{math.Pi, -math.Pi},
	}
	for _, tt := range wrap {
		if got := WrapRadians(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("WrapRadians(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}
