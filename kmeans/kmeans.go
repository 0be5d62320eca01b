// Package kmeans trains centroids from flat float32 matrices using Lloyd's
// algorithm. It backs the product quantizer's per-slice codebooks but is
// usable on its own.
package kmeans

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/flatgo/distance"
)

// InitStrategy selects how the initial centroids are seeded.
type InitStrategy int

const (
	// InitUniform picks k distinct data points uniformly at random.
	InitUniform InitStrategy = iota
	// InitKMeansPlusPlus picks the first centroid uniformly and each next one
	// with probability proportional to the squared distance from each data
	// point to its nearest already-chosen centroid.
	InitKMeansPlusPlus
)

// ErrTooFewPoints is returned when the dataset has fewer points than the
// requested number of centroids.
type ErrTooFewPoints struct {
	N int
	K int
}

func (e *ErrTooFewPoints) Error() string {
	return fmt.Sprintf("kmeans: %d points cannot seed %d centroids", e.N, e.K)
}

// Options configures a training run.
type Options struct {
	// Iterations is the number of Lloyd iterations to run. Training may stop
	// earlier when no assignment changes.
	Iterations int

	// Init selects the centroid seeding strategy.
	Init InitStrategy

	// Seed seeds the RNG; runs with the same seed and data are identical.
	Seed int64

	// Parallelism bounds the number of goroutines used for the assignment
	// step. Values < 1 mean GOMAXPROCS.
	Parallelism int
}

// DefaultOptions contains the default training configuration.
var DefaultOptions = Options{
	Iterations:  20,
	Init:        InitUniform,
	Seed:        3333,
	Parallelism: 1,
}

// Train fits k centroids to n = len(data)/dim points and returns them as a
// flattened k*dim array.
func Train(data []float32, dim, k int, optFns ...func(o *Options)) ([]float32, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	n := len(data) / dim
	if n < k {
		return nil, &ErrTooFewPoints{N: n, K: k}
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	centroids := make([]float32, k*dim)
	switch opts.Init {
	case InitKMeansPlusPlus:
		plusPlusInit(rng, data, dim, k, centroids)
	default:
		uniformInit(rng, data, dim, k, centroids)
	}

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([]float32, k*dim)

	for iter := 0; iter < opts.Iterations; iter++ {
		// The first pass always runs its update: the zeroed assignments are
		// not a previous state to compare against.
		if !assign(data, centroids, dim, k, assignments, parallelism) && iter > 0 {
			break
		}

		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			counts[c]++
			vec := data[i*dim : (i+1)*dim]
			dst := sums[c*dim : (c+1)*dim]
			for d, v := range vec {
				dst[d] += v
			}
		}
		for c := 0; c < k; c++ {
			dst := centroids[c*dim : (c+1)*dim]
			if counts[c] > 0 {
				scale := 1 / float32(counts[c])
				for d := range dst {
					dst[d] = sums[c*dim+d] * scale
				}
			} else {
				// A centroid that captured no points is zeroed.
				for d := range dst {
					dst[d] = 0
				}
			}
		}
	}

	return centroids, nil
}

// assign writes each point's nearest centroid index (ties to the lowest
// index) and reports whether any assignment changed. The scan is split into
// disjoint ranges; workers share nothing but the read-only inputs.
func assign(data, centroids []float32, dim, k int, assignments []int, parallelism int) bool {
	n := len(assignments)
	if parallelism > n {
		parallelism = n
	}

	changed := make([]bool, parallelism)
	var g errgroup.Group

	chunk := (n + parallelism - 1) / parallelism
	for w := 0; w < parallelism; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				best := Assign(data[i*dim:(i+1)*dim], centroids, dim)
				if assignments[i] != best {
					assignments[i] = best
					changed[w] = true
				}
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	for _, c := range changed {
		if c {
			return true
		}
	}
	return false
}

// Assign returns the index of the centroid nearest to vec by squared L2,
// ties broken toward the lowest index.
func Assign(vec, centroids []float32, dim int) int {
	k := len(centroids) / dim
	best := 0
	minDist := float32(math.MaxFloat32)
	for c := 0; c < k; c++ {
		d := distance.SquaredL2(vec, centroids[c*dim:(c+1)*dim])
		if d < minDist {
			minDist = d
			best = c
		}
	}
	return best
}

// SquaredError returns the total within-cluster squared error of data
// against centroids, assigning each point to its nearest centroid.
func SquaredError(data, centroids []float32, dim int) float64 {
	n := len(data) / dim
	k := len(centroids) / dim
	var total float64
	for i := 0; i < n; i++ {
		vec := data[i*dim : (i+1)*dim]
		minDist := float32(math.MaxFloat32)
		for c := 0; c < k; c++ {
			d := distance.SquaredL2(vec, centroids[c*dim:(c+1)*dim])
			if d < minDist {
				minDist = d
			}
		}
		total += float64(minDist)
	}
	return total
}

func uniformInit(rng *rand.Rand, data []float32, dim, k int, centroids []float32) {
	perm := rng.Perm(len(data) / dim)
	for c := 0; c < k; c++ {
		copy(centroids[c*dim:(c+1)*dim], data[perm[c]*dim:(perm[c]+1)*dim])
	}
}

func plusPlusInit(rng *rand.Rand, data []float32, dim, k int, centroids []float32) {
	n := len(data) / dim

	first := rng.Intn(n)
	copy(centroids[:dim], data[first*dim:(first+1)*dim])

	// minDistSq[i] tracks point i's squared distance to its nearest chosen
	// centroid, updated incrementally as centroids are added.
	minDistSq := make([]float32, n)
	var sum float64
	for i := 0; i < n; i++ {
		d := distance.SquaredL2(data[i*dim:(i+1)*dim], centroids[:dim])
		minDistSq[i] = d
		sum += float64(d)
	}

	for c := 1; c < k; c++ {
		chosen := 0
		if sum > 0 {
			target := rng.Float64() * sum
			var cum float64
			for i, d := range minDistSq {
				cum += float64(d)
				if cum >= target {
					chosen = i
					break
				}
			}
		} else {
			// All points coincide with chosen centroids; any pick works.
			chosen = rng.Intn(n)
		}
		dst := centroids[c*dim : (c+1)*dim]
		copy(dst, data[chosen*dim:(chosen+1)*dim])

		sum = 0
		for i := 0; i < n; i++ {
			d := distance.SquaredL2(data[i*dim:(i+1)*dim], dst)
			if d < minDistSq[i] {
				minDistSq[i] = d
			}
			sum += float64(minDistSq[i])
		}
	}
}
