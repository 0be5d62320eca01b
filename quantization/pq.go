// Package quantization provides product quantization (PQ) for compressing
// stored vectors. A D-dimensional vector is split into M subvectors, each
// quantized to the nearest entry of an independently trained codebook, giving
// an M-byte code. Distances against codes are answered from lookup tables:
// per-query tables for asymmetric (query-to-code) distances and per-codebook
// pair tables for symmetric (code-to-code) distances.
package quantization

import (
	"errors"
	"fmt"

	"github.com/hupe1980/flatgo/distance"
	"github.com/hupe1980/flatgo/internal/simd"
	"github.com/hupe1980/flatgo/kmeans"
)

var (
	// ErrNotTrained is returned when codes or tables are requested before Train.
	ErrNotTrained = errors.New("product quantizer not trained")
	// ErrDimensionMismatch is returned when an input vector has the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidCodeSize is returned when a code has the wrong length.
	ErrInvalidCodeSize = errors.New("invalid code size")
)

// ProductQuantizer quantizes dim-dimensional vectors into m-byte codes.
type ProductQuantizer struct {
	dim    int // original vector dimension
	m      int // number of subquantizers
	nbits  int // bits per code symbol
	k      int // 1 << nbits centroids per subspace
	subDim int // dim / m
	metric distance.Metric

	// codebooks is m blocks of k centroids of subDim floats each.
	codebooks []float32
	// pairTables is m blocks of k*k symmetric slice distances, built at
	// training time for code-to-code distance queries.
	pairTables []float32

	trained bool
}

// New creates a product quantizer for dim-dimensional vectors with m
// subquantizers of nbits bits each. dim must be divisible by m and nbits
// must be in [1, 8] so that one code symbol fits a byte.
func New(dim, m, nbits int, metric distance.Metric) (*ProductQuantizer, error) {
	if dim <= 0 || m <= 0 || dim%m != 0 {
		return nil, fmt.Errorf("quantization: dimension %d not divisible by %d subquantizers", dim, m)
	}
	if nbits < 1 || nbits > 8 {
		return nil, fmt.Errorf("quantization: bits per code %d outside [1, 8]", nbits)
	}
	if metric != distance.MetricL2 && metric != distance.MetricAngular {
		return nil, fmt.Errorf("quantization: unsupported metric %v", metric)
	}

	k := 1 << nbits
	return &ProductQuantizer{
		dim:    dim,
		m:      m,
		nbits:  nbits,
		k:      k,
		subDim: dim / m,
		metric: metric,
	}, nil
}

// Dimension returns the vector dimensionality.
func (pq *ProductQuantizer) Dimension() int { return pq.dim }

// CodeSize returns the encoded size in bytes (one byte per subquantizer).
func (pq *ProductQuantizer) CodeSize() int { return pq.m }

// NumSubquantizers returns M.
func (pq *ProductQuantizer) NumSubquantizers() int { return pq.m }

// NumCentroids returns the per-subspace codebook size 2^nbits.
func (pq *ProductQuantizer) NumCentroids() int { return pq.k }

// Metric returns the metric the quantizer answers distances under.
func (pq *ProductQuantizer) Metric() distance.Metric { return pq.metric }

// IsTrained reports whether Train has completed.
func (pq *ProductQuantizer) IsTrained() bool { return pq.trained }

// Train fits one codebook per subvector slice on n = len(data)/dim training
// vectors and precomputes the symmetric pair tables. Training options (seed,
// iterations, init strategy) are forwarded to the centroid trainer.
func (pq *ProductQuantizer) Train(data []float32, optFns ...func(o *kmeans.Options)) error {
	if len(data)%pq.dim != 0 {
		return fmt.Errorf("quantization: training data length %d: %w", len(data), ErrDimensionMismatch)
	}
	n := len(data) / pq.dim
	if n < pq.k {
		return &kmeans.ErrTooFewPoints{N: n, K: pq.k}
	}

	codebooks := make([]float32, pq.m*pq.k*pq.subDim)
	slice := make([]float32, n*pq.subDim)

	for m := 0; m < pq.m; m++ {
		for i := 0; i < n; i++ {
			start := i*pq.dim + m*pq.subDim
			copy(slice[i*pq.subDim:(i+1)*pq.subDim], data[start:start+pq.subDim])
		}
		centroids, err := kmeans.Train(slice, pq.subDim, pq.k, optFns...)
		if err != nil {
			return err
		}
		copy(codebooks[m*pq.k*pq.subDim:], centroids)
	}

	pq.codebooks = codebooks
	pq.pairTables = buildPairTables(codebooks, pq.m, pq.k, pq.subDim, pq.metric)
	pq.trained = true
	return nil
}

// buildPairTables precomputes, per subquantizer, the k*k matrix of slice
// distances between codebook entries under the metric.
func buildPairTables(codebooks []float32, m, k, subDim int, metric distance.Metric) []float32 {
	tables := make([]float32, m*k*k)
	for sub := 0; sub < m; sub++ {
		book := codebooks[sub*k*subDim : (sub+1)*k*subDim]
		table := tables[sub*k*k : (sub+1)*k*k]
		for i := 0; i < k; i++ {
			ci := book[i*subDim : (i+1)*subDim]
			for j := 0; j < k; j++ {
				cj := book[j*subDim : (j+1)*subDim]
				if metric == distance.MetricAngular {
					table[i*k+j] = -distance.Dot(ci, cj)
				} else {
					table[i*k+j] = distance.SquaredL2(ci, cj)
				}
			}
		}
	}
	return tables
}

// Encode quantizes vec into code (len CodeSize). Each slice maps to its
// nearest codebook entry by squared L2.
func (pq *ProductQuantizer) Encode(vec []float32, code []byte) error {
	if !pq.trained {
		return ErrNotTrained
	}
	if len(vec) != pq.dim {
		return fmt.Errorf("quantization: vector length %d, want %d: %w", len(vec), pq.dim, ErrDimensionMismatch)
	}
	if len(code) != pq.m {
		return fmt.Errorf("quantization: code length %d, want %d: %w", len(code), pq.m, ErrInvalidCodeSize)
	}

	for m := 0; m < pq.m; m++ {
		sub := vec[m*pq.subDim : (m+1)*pq.subDim]
		book := pq.codebooks[m*pq.k*pq.subDim : (m+1)*pq.k*pq.subDim]
		code[m] = byte(kmeans.Assign(sub, book, pq.subDim))
	}
	return nil
}

// Decode reconstructs the approximate vector for code into vec.
func (pq *ProductQuantizer) Decode(code []byte, vec []float32) error {
	if !pq.trained {
		return ErrNotTrained
	}
	if len(code) != pq.m {
		return fmt.Errorf("quantization: code length %d, want %d: %w", len(code), pq.m, ErrInvalidCodeSize)
	}
	if len(vec) != pq.dim {
		return fmt.Errorf("quantization: vector length %d, want %d: %w", len(vec), pq.dim, ErrDimensionMismatch)
	}

	for m := 0; m < pq.m; m++ {
		c := int(code[m])
		centroid := pq.codebooks[(m*pq.k+c)*pq.subDim : (m*pq.k+c+1)*pq.subDim]
		copy(vec[m*pq.subDim:(m+1)*pq.subDim], centroid)
	}
	return nil
}

// NewTable allocates a distance table for BuildTable.
func (pq *ProductQuantizer) NewTable() []float32 {
	return make([]float32, pq.m*pq.k)
}

// BuildTable fills table (len m*k) with per-slice distances from query to
// every codebook entry: squared L2 under MetricL2, negated inner product
// under MetricAngular. Built once per query; Distance then answers each
// code in O(m) lookups.
func (pq *ProductQuantizer) BuildTable(query []float32, table []float32) error {
	if !pq.trained {
		return ErrNotTrained
	}
	if len(query) != pq.dim {
		return fmt.Errorf("quantization: query length %d, want %d: %w", len(query), pq.dim, ErrDimensionMismatch)
	}
	if len(table) != pq.m*pq.k {
		return fmt.Errorf("quantization: table length %d, want %d: %w", len(table), pq.m*pq.k, ErrInvalidCodeSize)
	}

	for m := 0; m < pq.m; m++ {
		sub := query[m*pq.subDim : (m+1)*pq.subDim]
		book := pq.codebooks[m*pq.k*pq.subDim : (m+1)*pq.k*pq.subDim]
		row := table[m*pq.k : (m+1)*pq.k]
		for c := 0; c < pq.k; c++ {
			centroid := book[c*pq.subDim : (c+1)*pq.subDim]
			if pq.metric == distance.MetricAngular {
				row[c] = -distance.Dot(sub, centroid)
			} else {
				row[c] = distance.SquaredL2(sub, centroid)
			}
		}
	}
	return nil
}

// Distance returns the asymmetric distance between the query represented by
// table and the given code. Under MetricAngular the summed negated inner
// products are folded into 1 - <q, decode(code)>.
func (pq *ProductQuantizer) Distance(table []float32, code []byte) float32 {
	sum := simd.PqAdcLookup(table, code, pq.k)
	if pq.metric == distance.MetricAngular {
		return 1 + sum
	}
	return sum
}

// SymmetricDistance returns the code-to-code distance from the precomputed
// pair tables, with the same angular folding as Distance so both scales are
// directly comparable.
func (pq *ProductQuantizer) SymmetricDistance(a, b []byte) float32 {
	var sum float32
	kk := pq.k * pq.k
	for m := 0; m < pq.m; m++ {
		sum += pq.pairTables[m*kk+int(a[m])*pq.k+int(b[m])]
	}
	if pq.metric == distance.MetricAngular {
		return 1 + sum
	}
	return sum
}
