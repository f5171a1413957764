package facematch

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DistanceFunc measures the dissimilarity of two descriptors.
type DistanceFunc func(a, b []float64) float64

// EuclideanDistance is the L2 distance between a and b.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}
