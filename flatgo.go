// Package flatgo provides an in-memory approximate nearest neighbor index
// over dense float32 vectors, built on a single-layer navigable proximity
// graph with a flat contiguous node arena.
//
// Create an index, feed it vectors one at a time, and query:
//
//	ix, err := flatgo.Create(distance.MetricL2, 128, 1_000_000, 16)
//	if err != nil {
//	    panic(err)
//	}
//	ok, err := ix.Insert(vec, label)
//	results, err := ix.Search(query, 10)
//
// Stored vectors can optionally be product-quantized:
//
//	pq, _ := quantization.New(128, 8, 8, distance.MetricL2)
//	pq.Train(sample)
//	ix, err := flatgo.Create(distance.MetricL2, 128, 1_000_000, 16,
//	    flatgo.WithPQ(pq))
//
// After construction, Reorder permutes node ids for cache locality:
//
//	err = ix.Reorder(flatgo.StrategyRCM)
//
// Construction is single-writer. Searches are read-only and safe to run
// concurrently with each other, but not with Insert or Reorder.
package flatgo

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/flatgo/blobstore"
	"github.com/hupe1980/flatgo/distance"
	"github.com/hupe1980/flatgo/graph"
	"github.com/hupe1980/flatgo/reorder"
)

// SearchResult is one query hit.
type SearchResult struct {
	Distance float32
	Label    uint64
}

// Strategy selects a reordering algorithm.
type Strategy int

const (
	// StrategyRCM is reverse Cuthill-McKee bandwidth reduction.
	StrategyRCM Strategy = iota
	// StrategyGorder is windowed greedy ordering for access locality.
	StrategyGorder
)

func (s Strategy) String() string {
	switch s {
	case StrategyRCM:
		return "rcm"
	case StrategyGorder:
		return "gorder"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Index is a handle over the graph engine with resolved options.
type Index struct {
	graph  *graph.Index
	metric distance.Metric
	opts   Options
}

// Create builds an empty index for dim-dimensional vectors under the given
// metric, with capacity maxNodes and fixed out-degree maxEdges.
func Create(metric distance.Metric, dim, maxNodes, maxEdges int, optFns ...func(o *Options)) (*Index, error) {
	opts := resolveOptions(optFns)

	space, err := newSpace(metric, dim, &opts)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(space, maxNodes, maxEdges)
	if err != nil {
		return nil, err
	}
	return &Index{graph: g, metric: metric, opts: opts}, nil
}

func resolveOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	return opts
}

func newSpace(metric distance.Metric, dim int, opts *Options) (graph.Space, error) {
	if opts.PQ == nil {
		return graph.NewSpace(metric, dim)
	}
	if opts.PQ.Metric() != metric {
		return nil, ErrMetricMismatch
	}
	if opts.PQ.Dimension() != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: opts.PQ.Dimension()}
	}
	return graph.NewPQSpace(opts.PQ)
}

// Insert appends a vector with its label. It returns false when the index
// is full; the index is not mutated in that case.
func (ix *Index) Insert(vec []float32, label uint64, optFns ...func(o *Options)) (bool, error) {
	opts := ix.callOptions(optFns)
	ok, err := ix.graph.Add(vec, label, opts.EFConstruction, opts.NumInitializations)
	ix.opts.Logger.LogInsert(context.Background(), label, ok, err)
	return ok, err
}

// BatchInsert inserts vectors in order and returns how many were accepted.
// Insertion stops at the first error; a full index stops the batch without
// an error.
func (ix *Index) BatchInsert(vecs [][]float32, labels []uint64, optFns ...func(o *Options)) (int, error) {
	if len(vecs) != len(labels) {
		return 0, fmt.Errorf("flatgo: %d vectors with %d labels", len(vecs), len(labels))
	}
	opts := ix.callOptions(optFns)

	inserted := 0
	for i, vec := range vecs {
		ok, err := ix.graph.Add(vec, labels[i], opts.EFConstruction, opts.NumInitializations)
		if err != nil {
			return inserted, err
		}
		if !ok {
			break
		}
		inserted++
	}
	return inserted, nil
}

// Search returns the k nearest labels to q, sorted by ascending distance.
func (ix *Index) Search(q []float32, k int, optFns ...func(o *Options)) ([]SearchResult, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	opts := ix.callOptions(optFns)

	ef := opts.EFSearch
	if ef < k {
		ef = k
	}
	results, err := ix.graph.Search(q, k, ef, opts.NumInitializations)
	ix.opts.Logger.LogSearch(context.Background(), k, len(results), err)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{Distance: r.Distance, Label: r.Label}
	}
	return out, nil
}

// Reorder permutes node ids in place with the given strategy to improve
// arena locality. The graph is unchanged up to renaming.
func (ix *Index) Reorder(strategy Strategy, optFns ...func(o *Options)) error {
	opts := ix.callOptions(optFns)

	adj := ix.graph.Adjacency()
	var perm []uint32
	switch strategy {
	case StrategyRCM:
		perm = reorder.RCM(adj)
	case StrategyGorder:
		perm = reorder.Gorder(adj, opts.GorderWindow)
	default:
		return fmt.Errorf("flatgo: unknown reorder strategy %v", strategy)
	}

	err := ix.graph.Relabel(perm)
	ix.opts.Logger.LogReorder(context.Background(), strategy.String(), ix.graph.Len(), err)
	return err
}

// Save writes the index snapshot to path. The metric and product quantizer
// are not part of the snapshot; Load needs them re-supplied.
func (ix *Index) Save(path string) error {
	err := ix.graph.SaveFile(path)
	ix.opts.Logger.LogSnapshot(context.Background(), "save", path, err)
	return err
}

// Load reads an index snapshot written by Save. metric and dim (plus the
// WithPQ option when the index was quantized) must match the saved index.
func Load(path string, metric distance.Metric, dim int, optFns ...func(o *Options)) (*Index, error) {
	opts := resolveOptions(optFns)

	space, err := newSpace(metric, dim, &opts)
	if err != nil {
		return nil, err
	}
	g, err := graph.LoadFile(path, space)
	opts.Logger.LogSnapshot(context.Background(), "load", path, err)
	if err != nil {
		return nil, err
	}
	return &Index{graph: g, metric: metric, opts: opts}, nil
}

// SaveTo serializes the index into a blob store, optionally compressed.
func (ix *Index) SaveTo(ctx context.Context, store blobstore.Store, name string, codec blobstore.Codec) error {
	err := blobstore.PutFunc(ctx, store, name, codec, func(w io.Writer) error {
		_, werr := ix.graph.WriteTo(w)
		return werr
	})
	ix.opts.Logger.LogSnapshot(ctx, "save", name, err)
	return err
}

// LoadFrom reads an index snapshot from a blob store written by SaveTo with
// the same codec.
func LoadFrom(ctx context.Context, store blobstore.Store, name string, codec blobstore.Codec, metric distance.Metric, dim int, optFns ...func(o *Options)) (*Index, error) {
	opts := resolveOptions(optFns)

	space, err := newSpace(metric, dim, &opts)
	if err != nil {
		return nil, err
	}

	var g *graph.Index
	err = blobstore.GetFunc(ctx, store, name, codec, func(r io.Reader) error {
		var rerr error
		g, rerr = graph.Read(r, space)
		return rerr
	})
	opts.Logger.LogSnapshot(ctx, "load", name, err)
	if err != nil {
		return nil, err
	}
	return &Index{graph: g, metric: metric, opts: opts}, nil
}

// callOptions resolves per-call overrides on top of the index options.
func (ix *Index) callOptions(optFns []func(o *Options)) Options {
	opts := ix.opts
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Len returns the number of inserted vectors.
func (ix *Index) Len() int { return ix.graph.Len() }

// Cap returns the maximum vector count.
func (ix *Index) Cap() int { return ix.graph.Cap() }

// Dimension returns the vector dimensionality.
func (ix *Index) Dimension() int { return ix.graph.Dimension() }

// Metric returns the configured metric.
func (ix *Index) Metric() distance.Metric { return ix.metric }

// Stats summarizes arena and link structure.
func (ix *Index) Stats() graph.Stats { return ix.graph.Stats() }

// Graph exposes the underlying engine for benchmarking and tooling.
func (ix *Index) Graph() *graph.Index { return ix.graph }
