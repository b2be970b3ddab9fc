package database

import "math"

// ChiSquareDistance computes the alternative chi-square distance between two
// histograms: 2 * sum((a-b)^2 / (a+b)), skipping bins where both are empty.
// Returns 0 for identical histograms and +Inf for invalid input.
func ChiSquareDistance(a, b []float32) float64 {
	d, _ := ChiSquareDistanceWithin(a, b, math.Inf(1))
	return d
}

// ChiSquareDistanceWithin computes ChiSquareDistance but stops as soon as the
// running distance exceeds bound. It then reports false and the partial value.
// When it reports true the value equals ChiSquareDistance(a, b) exactly.
func ChiSquareDistanceWithin(a, b []float32, bound float64) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1), false // Maximum distance for invalid input
	}

	var sum float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		denom := x + y
		if denom <= 0 {
			continue
		}
		d := x - y
		sum += d * d / denom
		if 2*sum > bound {
			return 2 * sum, false
		}
	}
	return 2 * sum, true
}

// chiSquareGraphDistance adapts ChiSquareDistance to the HNSW distance signature.
func chiSquareGraphDistance(a, b []float32) float32 {
	return float32(ChiSquareDistance(a, b))
}
