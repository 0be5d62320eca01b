package graph

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flatgo/distance"
	"github.com/hupe1980/flatgo/persistence"
)

func TestSaveLoadByteEquality(t *testing.T) {
	const dim, n = 4, 32
	ix := newL2Index(t, dim, n, 4)
	buildIndex(t, ix, gaussianVectors(30, n, dim), 16)

	path := filepath.Join(t.TempDir(), "index.fg")
	require.NoError(t, ix.SaveFile(path))

	space, err := NewSpace(distance.MetricL2, dim)
	require.NoError(t, err)
	loaded, err := LoadFile(path, space)
	require.NoError(t, err)

	assert.Equal(t, ix.Len(), loaded.Len())
	assert.Equal(t, ix.Cap(), loaded.Cap())
	assert.Equal(t, ix.MaxEdges(), loaded.MaxEdges())
	assert.Equal(t, ix.NodeBlock(), loaded.NodeBlock(), "node blocks must compare byte-equal")

	// The same query must return identical ordering on both indexes.
	q := []float32{0.3, -0.2, 0.9, 0.1}
	a, err := ix.Search(q, 5, 16, 100)
	require.NoError(t, err)
	b, err := loaded.Search(q, 5, 16, 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNodeBlockAlignment(t *testing.T) {
	const dim, n = 4, 8
	ix := newL2Index(t, dim, n, 2)
	buildIndex(t, ix, gaussianVectors(31, n, dim), 8)

	var buf bytes.Buffer
	written, err := ix.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), written)

	// Header is eight u64 fields padded to 64 bytes, then the arena, then
	// the query scratch.
	wantLen := 64 + len(ix.NodeBlock()) + ix.DataSize()
	assert.Equal(t, wantLen, buf.Len())
	assert.Equal(t, ix.NodeBlock(), buf.Bytes()[64:64+len(ix.NodeBlock())])
}

func TestLoadRejectsWrongMagic(t *testing.T) {
	space, err := NewSpace(distance.MetricL2, 4)
	require.NoError(t, err)

	buf := bytes.Repeat([]byte{0xFF}, 256)
	_, err = Read(bytes.NewReader(buf), space)
	require.ErrorIs(t, err, persistence.ErrInvalidMagic)
}

func TestLoadRejectsMismatchedSpace(t *testing.T) {
	const dim, n = 4, 8
	ix := newL2Index(t, dim, n, 2)
	buildIndex(t, ix, gaussianVectors(32, n, dim), 8)

	var buf bytes.Buffer
	_, err := ix.WriteTo(&buf)
	require.NoError(t, err)

	// A space of the wrong dimensionality must be rejected.
	wrong, err := NewSpace(distance.MetricL2, 8)
	require.NoError(t, err)
	_, err = Read(bytes.NewReader(buf.Bytes()), wrong)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match supplied space")
}

func TestLoadTruncatedSnapshot(t *testing.T) {
	const dim, n = 4, 8
	ix := newL2Index(t, dim, n, 2)
	buildIndex(t, ix, gaussianVectors(33, n, dim), 8)

	var buf bytes.Buffer
	_, err := ix.WriteTo(&buf)
	require.NoError(t, err)

	space, err := NewSpace(distance.MetricL2, dim)
	require.NoError(t, err)
	_, err = Read(bytes.NewReader(buf.Bytes()[:buf.Len()/2]), space)
	require.Error(t, err)
}

func TestLoadMissingFileHasPathContext(t *testing.T) {
	space, err := NewSpace(distance.MetricL2, 4)
	require.NoError(t, err)
	_, err = LoadFile("/does/not/exist.fg", space)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/does/not/exist.fg")
}
