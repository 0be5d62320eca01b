package flatgo

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flatgo/blobstore"
	"github.com/hupe1980/flatgo/distance"
	"github.com/hupe1980/flatgo/kmeans"
	"github.com/hupe1980/flatgo/quantization"
)

func gaussianVectors(seed int64, n, dim int) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		for d := range vecs[i] {
			vecs[i][d] = float32(r.NormFloat64())
		}
	}
	return vecs
}

func TestCreateInsertSearch(t *testing.T) {
	ix, err := Create(distance.MetricL2, 2, 16, 4)
	require.NoError(t, err)
	assert.Equal(t, 16, ix.Cap())
	assert.Equal(t, 2, ix.Dimension())
	assert.Equal(t, distance.MetricL2, ix.Metric())

	for i, v := range [][]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		ok, err := ix.Insert(v, uint64(i+1))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 4, ix.Len())

	results, err := ix.Search([]float32{0.1, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].Label)
	assert.InDelta(t, 0.02, results[0].Distance, 1e-6)
}

func TestSearchValidation(t *testing.T) {
	ix, err := Create(distance.MetricL2, 2, 8, 2)
	require.NoError(t, err)

	_, err = ix.Search([]float32{0, 0}, 0)
	require.ErrorIs(t, err, ErrInvalidK)

	var dimErr *ErrDimensionMismatch
	_, err = ix.Search([]float32{0, 0, 0}, 1)
	require.ErrorAs(t, err, &dimErr)
}

func TestInsertFullIndex(t *testing.T) {
	ix, err := Create(distance.MetricL2, 2, 2, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := ix.Insert([]float32{float32(i), 0}, uint64(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := ix.Insert([]float32{9, 9}, 99)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, ix.Len())
}

func TestBatchInsert(t *testing.T) {
	ix, err := Create(distance.MetricL2, 4, 10, 3)
	require.NoError(t, err)

	vecs := gaussianVectors(1, 12, 4)
	labels := make([]uint64, 12)
	for i := range labels {
		labels[i] = uint64(i)
	}

	inserted, err := ix.BatchInsert(vecs, labels)
	require.NoError(t, err)
	assert.Equal(t, 10, inserted, "batch stops when the index fills up")

	_, err = ix.BatchInsert(vecs[:2], labels[:1])
	require.Error(t, err)
}

func TestReorderStrategies(t *testing.T) {
	for _, strategy := range []Strategy{StrategyRCM, StrategyGorder} {
		t.Run(strategy.String(), func(t *testing.T) {
			ix, err := Create(distance.MetricL2, 8, 64, 4)
			require.NoError(t, err)

			vecs := gaussianVectors(2, 64, 8)
			for i, v := range vecs {
				_, err := ix.Insert(v, uint64(i))
				require.NoError(t, err)
			}

			exactBefore, err := ix.Graph().BruteSearch(vecs[0], 3)
			require.NoError(t, err)

			require.NoError(t, ix.Reorder(strategy, WithGorderWindow(4)))

			exactAfter, err := ix.Graph().BruteSearch(vecs[0], 3)
			require.NoError(t, err)
			assert.Equal(t, exactBefore, exactAfter, "reorder must not change contents")
		})
	}

	ix, err := Create(distance.MetricL2, 2, 4, 2)
	require.NoError(t, err)
	require.Error(t, ix.Reorder(Strategy(9)))
}

func TestSaveLoadFile(t *testing.T) {
	const dim = 4
	ix, err := Create(distance.MetricL2, dim, 32, 4)
	require.NoError(t, err)

	vecs := gaussianVectors(3, 32, dim)
	for i, v := range vecs {
		_, err := ix.Insert(v, uint64(i))
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "index.fg")
	require.NoError(t, ix.Save(path))

	loaded, err := Load(path, distance.MetricL2, dim)
	require.NoError(t, err)
	assert.Equal(t, ix.Len(), loaded.Len())

	a, err := ix.Search(vecs[0], 5)
	require.NoError(t, err)
	b, err := loaded.Search(vecs[0], 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBlobstoreRoundTrip(t *testing.T) {
	const dim = 4
	ix, err := Create(distance.MetricL2, dim, 16, 3)
	require.NoError(t, err)

	vecs := gaussianVectors(4, 16, dim)
	for i, v := range vecs {
		_, err := ix.Insert(v, uint64(i))
		require.NoError(t, err)
	}

	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	require.NoError(t, ix.SaveTo(ctx, store, "snapshots/main.fg", blobstore.CodecZSTD))

	loaded, err := LoadFrom(ctx, store, "snapshots/main.fg", blobstore.CodecZSTD, distance.MetricL2, dim)
	require.NoError(t, err)

	a, err := ix.Search(vecs[1], 4)
	require.NoError(t, err)
	b, err := loaded.Search(vecs[1], 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPQIndex(t *testing.T) {
	const dim, n = 8, 200

	vecs := gaussianVectors(5, n, dim)
	flat := make([]float32, 0, n*dim)
	for _, v := range vecs {
		flat = append(flat, v...)
	}

	pq, err := quantization.New(dim, 2, 4, distance.MetricL2)
	require.NoError(t, err)
	require.NoError(t, pq.Train(flat, func(o *kmeans.Options) { o.Iterations = 8 }))

	ix, err := Create(distance.MetricL2, dim, n, 4, WithPQ(pq))
	require.NoError(t, err)

	for i, v := range vecs {
		ok, err := ix.Insert(v, uint64(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	results, err := ix.Search(vecs[0], 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestPQOptionValidation(t *testing.T) {
	pq, err := quantization.New(8, 2, 4, distance.MetricAngular)
	require.NoError(t, err)
	require.NoError(t, pq.Train(gaussianFlat(6, 200, 8), func(o *kmeans.Options) { o.Iterations = 4 }))

	// Metric mismatch between PQ and index.
	_, err = Create(distance.MetricL2, 8, 16, 4, WithPQ(pq))
	require.ErrorIs(t, err, ErrMetricMismatch)

	// Dimension mismatch between PQ and index.
	var dimErr *ErrDimensionMismatch
	_, err = Create(distance.MetricAngular, 16, 16, 4, WithPQ(pq))
	require.ErrorAs(t, err, &dimErr)

	// Untrained PQ.
	untrained, err := quantization.New(8, 2, 4, distance.MetricAngular)
	require.NoError(t, err)
	_, err = Create(distance.MetricAngular, 8, 16, 4, WithPQ(untrained))
	require.ErrorIs(t, err, quantization.ErrNotTrained)
}

func gaussianFlat(seed int64, n, dim int) []float32 {
	r := rand.New(rand.NewSource(seed))
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = float32(r.NormFloat64())
	}
	return data
}

func TestPerCallOptionOverrides(t *testing.T) {
	ix, err := Create(distance.MetricL2, 4, 32, 4, WithEFConstruction(16), WithEFSearch(8))
	require.NoError(t, err)

	vecs := gaussianVectors(7, 32, 4)
	for i, v := range vecs {
		_, err := ix.Insert(v, uint64(i), WithEFConstruction(32))
		require.NoError(t, err)
	}

	// ef below k is clamped up to k.
	results, err := ix.Search(vecs[0], 10, WithEFSearch(2))
	require.NoError(t, err)
	assert.Len(t, results, 10)
}
