// Package distance provides vector distance calculations.
package distance

import (
	"fmt"
	"math"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
//
// Squared L2 preserves nearest-neighbor ordering and avoids the square
// root on every pair, so it is used consistently for insert and query.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L2 calculates the true L2 (Euclidean) distance between two vectors.
func L2(a, b []float32) float32 {
	return float32(math.Sqrt(float64(SquaredL2(a, b))))
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricSquaredL2 Metric = iota
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricSquaredL2:
		return "SquaredL2"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricSquaredL2:
		return SquaredL2, nil
	case MetricDot:
		return Dot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
