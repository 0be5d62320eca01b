package flatgo

import (
	"errors"

	"github.com/hupe1980/flatgo/graph"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrMetricMismatch is returned when a supplied product quantizer was
	// trained under a different metric than the index.
	ErrMetricMismatch = errors.New("product quantizer metric does not match index metric")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch = graph.ErrDimensionMismatch

// ErrInvalidEF indicates a search beam width smaller than k.
type ErrInvalidEF = graph.ErrInvalidEF
