package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"local":  local,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			payload := []byte("snapshot-bytes")
			require.NoError(t, store.Put(ctx, "idx/main.fg", bytes.NewReader(payload)))

			rc, err := store.Open(ctx, "idx/main.fg")
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, payload, got)

			names, err := store.List(ctx, "idx/")
			require.NoError(t, err)
			assert.Equal(t, []string{"idx/main.fg"}, names)

			require.NoError(t, store.Delete(ctx, "idx/main.fg"))
			_, err = store.Open(ctx, "idx/main.fg")
			require.ErrorIs(t, err, ErrNotFound)

			// Deleting again is fine.
			require.NoError(t, store.Delete(ctx, "idx/main.fg"))
		})
	}
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "a", bytes.NewReader([]byte("one"))))
			require.NoError(t, store.Put(ctx, "a", bytes.NewReader([]byte("two"))))

			rc, err := store.Open(ctx, "a")
			require.NoError(t, err)
			got, _ := io.ReadAll(rc)
			_ = rc.Close()
			assert.Equal(t, []byte("two"), got)
		})
	}
}

func TestPutGetFuncWithCodecs(t *testing.T) {
	ctx := context.Background()
	payload := bytes.Repeat([]byte("abcdefgh"), 4096)

	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZSTD} {
		t.Run(codec.String(), func(t *testing.T) {
			store := NewMemoryStore()

			err := PutFunc(ctx, store, "blob", codec, func(w io.Writer) error {
				_, werr := w.Write(payload)
				return werr
			})
			require.NoError(t, err)

			var got []byte
			err = GetFunc(ctx, store, "blob", codec, func(r io.Reader) error {
				var rerr error
				got, rerr = io.ReadAll(r)
				return rerr
			})
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			if codec != CodecNone {
				rc, err := store.Open(ctx, "blob")
				require.NoError(t, err)
				raw, _ := io.ReadAll(rc)
				_ = rc.Close()
				assert.Less(t, len(raw), len(payload), "compressed blob should shrink")
			}
		})
	}
}

func TestGetFuncMissingBlob(t *testing.T) {
	err := GetFunc(context.Background(), NewMemoryStore(), "missing", CodecNone, func(io.Reader) error {
		return nil
	})
	require.ErrorIs(t, err, ErrNotFound)
}
