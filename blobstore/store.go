// Package blobstore abstracts where index snapshots live: in memory, on the
// local filesystem, or in S3-compatible object storage. Snapshots are
// immutable blobs written once and read back whole, optionally compressed
// through a Codec.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// Store is a named-blob store.
type Store interface {
	// Put writes a blob atomically under name, replacing any previous blob.
	Put(ctx context.Context, name string, r io.Reader) error
	// Open opens a blob for reading. The caller closes the returned reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// PutFunc streams the output of write into the store under name, passed
// through the codec.
func PutFunc(ctx context.Context, store Store, name string, codec Codec, write func(w io.Writer) error) error {
	pr, pw := io.Pipe()

	go func() {
		cw, err := codec.WrapWriter(pw)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if err := write(cw); err != nil {
			_ = cw.Close()
			_ = pw.CloseWithError(err)
			return
		}
		if err := cw.Close(); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.Close()
	}()

	err := store.Put(ctx, name, pr)
	if err != nil {
		// Unblock the writer goroutine if Put bailed early.
		_ = pr.CloseWithError(err)
	}
	return err
}

// GetFunc opens the named blob, routes it through the codec, and hands the
// decompressed stream to read.
func GetFunc(ctx context.Context, store Store, name string, codec Codec, read func(r io.Reader) error) error {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	cr, err := codec.WrapReader(rc)
	if err != nil {
		return err
	}
	defer cr.Close()

	return read(cr)
}
