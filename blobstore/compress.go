package blobstore

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the compression applied to blobs on their way through
// PutFunc/GetFunc. The codec is not recorded in the blob; readers must use
// the codec the blob was written with.
type Codec uint8

const (
	// CodecNone stores blobs uncompressed.
	CodecNone Codec = iota
	// CodecLZ4 is fast block compression, good for hot snapshots.
	CodecLZ4
	// CodecZSTD trades speed for ratio, good for cold snapshots.
	CodecZSTD
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// WrapWriter layers the codec's compressor over w. Closing the returned
// writer flushes the compressor but does not close w.
func (c Codec) WrapWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	case CodecZSTD:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("blobstore: unknown codec %d", uint8(c))
	}
}

// WrapReader layers the codec's decompressor over r.
func (c Codec) WrapReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CodecZSTD:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("blobstore: unknown codec %d", uint8(c))
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
