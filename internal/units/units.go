// Package units provides shared angle conversions.
package units

import "math"

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// WrapRadians maps an angle into [-π, π).
func WrapRadians(rad float64) float64 {
	w := math.Mod(rad+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}
