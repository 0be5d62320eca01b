package graph

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/flatgo/distance"
	"github.com/hupe1980/flatgo/quantization"
)

// QueryDist evaluates distances from a prepared query to stored data regions.
type QueryDist func(data []byte) float32

// Space abstracts the stored form of vectors and the distances over them.
// Implementations exist for raw squared-L2, raw angular, and PQ-encoded
// data. The graph engine only ever touches vectors through a Space.
type Space interface {
	// DataSize returns the byte size of one stored data region.
	DataSize() int
	// Dimension returns the vector dimensionality.
	Dimension() int
	// Transform writes the stored form of vec into dst (len == DataSize).
	Transform(dst []byte, vec []float32)
	// Prepare returns a per-query evaluator. For PQ-backed spaces this
	// builds the asymmetric lookup table once, so each Prepare call pays
	// the table cost a single time per query.
	Prepare(q []float32) QueryDist
	// Symmetric returns the distance between two stored regions. During
	// neighbor pruning this must match how the data was stored: raw
	// regions use the configured metric, PQ codes use the code-to-code
	// tables.
	Symmetric(a, b []byte) float32
}

// NewSpace returns the raw-vector space for the given metric.
func NewSpace(metric distance.Metric, dim int) (Space, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("graph: invalid dimension %d", dim)
	}
	switch metric {
	case distance.MetricL2:
		return &l2Space{dim: dim}, nil
	case distance.MetricAngular:
		return &angularSpace{dim: dim}, nil
	default:
		return nil, fmt.Errorf("graph: unsupported metric %v", metric)
	}
}

// NewPQSpace wraps a trained product quantizer as a Space. The quantizer
// must be trained before the first insertion.
func NewPQSpace(pq *quantization.ProductQuantizer) (Space, error) {
	if !pq.IsTrained() {
		return nil, quantization.ErrNotTrained
	}
	return &pqSpace{pq: pq}, nil
}

// floatsView reinterprets a stored data region as float32s. Regions written
// by the raw spaces are always 4-byte aligned inside the arena.
func floatsView(data []byte, dim int) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), dim)
}

type l2Space struct {
	dim int
}

func (s *l2Space) DataSize() int  { return s.dim * 4 }
func (s *l2Space) Dimension() int { return s.dim }

func (s *l2Space) Transform(dst []byte, vec []float32) {
	copy(floatsView(dst, s.dim), vec)
}

func (s *l2Space) Prepare(q []float32) QueryDist {
	dim := s.dim
	return func(data []byte) float32 {
		return distance.SquaredL2(q, floatsView(data, dim))
	}
}

func (s *l2Space) Symmetric(a, b []byte) float32 {
	return distance.SquaredL2(floatsView(a, s.dim), floatsView(b, s.dim))
}

type angularSpace struct {
	dim int
}

func (s *angularSpace) DataSize() int  { return s.dim * 4 }
func (s *angularSpace) Dimension() int { return s.dim }

func (s *angularSpace) Transform(dst []byte, vec []float32) {
	copy(floatsView(dst, s.dim), vec)
}

func (s *angularSpace) Prepare(q []float32) QueryDist {
	dim := s.dim
	return func(data []byte) float32 {
		return 1 - distance.Dot(q, floatsView(data, dim))
	}
}

func (s *angularSpace) Symmetric(a, b []byte) float32 {
	return 1 - distance.Dot(floatsView(a, s.dim), floatsView(b, s.dim))
}

type pqSpace struct {
	pq *quantization.ProductQuantizer
}

func (s *pqSpace) DataSize() int  { return s.pq.CodeSize() }
func (s *pqSpace) Dimension() int { return s.pq.Dimension() }

func (s *pqSpace) Transform(dst []byte, vec []float32) {
	if err := s.pq.Encode(vec, dst); err != nil {
		// The engine validates dimensions before storing; anything else is
		// an internal invariant violation.
		panic(fmt.Sprintf("graph: pq encode: %v", err))
	}
}

func (s *pqSpace) Prepare(q []float32) QueryDist {
	table := s.pq.NewTable()
	if err := s.pq.BuildTable(q, table); err != nil {
		panic(fmt.Sprintf("graph: pq table: %v", err))
	}
	pq := s.pq
	return func(data []byte) float32 {
		return pq.Distance(table, data)
	}
}

func (s *pqSpace) Symmetric(a, b []byte) float32 {
	return s.pq.SymmetricDistance(a, b)
}
