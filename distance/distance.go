// Package distance provides the public API for vector distance calculations.
// All distance functions use the dispatched kernels from internal/simd.
package distance

import (
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/flatgo/internal/simd"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return simd.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return simd.SquaredL2(a, b)
}

// Angular calculates 1 minus the inner product of two vectors. For cosine
// distance the caller is responsible for unit-normalizing the inputs, e.g.
// via NormalizeL2InPlace before insertion and before querying.
func Angular(a, b []float32) float32 {
	return 1 - simd.Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := simd.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	simd.ScaleInPlace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricL2 is squared euclidean distance.
	MetricL2 Metric = iota
	// MetricAngular is 1 minus inner product.
	MetricAngular
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricAngular:
		return "Angular"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricAngular:
		return Angular, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
