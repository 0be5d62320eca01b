package persistence

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBinaryWriter(&buf)

	require.NoError(t, bw.WriteUint64(42))
	require.NoError(t, bw.WriteFloat32Slice([]float32{1, 2.5, -3}))
	require.NoError(t, bw.WriteUint32Slice([]uint32{7, 8}))
	require.NoError(t, bw.Align(64))
	require.NoError(t, bw.WriteBytes([]byte{0xAB}))

	require.Equal(t, int64(65), bw.Written())

	br := NewBinaryReader(&buf)

	v, err := br.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)

	fs, err := br.ReadFloat32Slice(3)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2.5, -3}, fs)

	us, err := br.ReadUint32Slice(2)
	require.NoError(t, err)
	require.Equal(t, []uint32{7, 8}, us)

	require.NoError(t, br.Align(64))

	tail := make([]byte, 1)
	require.NoError(t, br.ReadBytesInto(tail))
	require.Equal(t, byte(0xAB), tail[0])
}

func TestAlignNoop(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBinaryWriter(&buf)
	require.NoError(t, bw.WriteUint64(1))
	require.NoError(t, bw.Align(8))
	require.Equal(t, int64(8), bw.Written())
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.bin")

	err := SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("payload"))
		return err
	})
	require.NoError(t, err)

	var got []byte
	err = LoadFromFile(path, func(r io.Reader) error {
		var rerr error
		got, rerr = io.ReadAll(r)
		return rerr
	})
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadMissingFileHasPathContext(t *testing.T) {
	err := LoadFromFile("/nonexistent/snap.bin", func(io.Reader) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "/nonexistent/snap.bin")
}
