// Package persistence provides binary serialization primitives for index
// snapshots. Slices are written as raw little-endian bytes so that large node
// arenas round-trip without per-element encoding overhead.
package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"
)

// BinaryWriter writes snapshot sections in little-endian binary format.
type BinaryWriter struct {
	w       io.Writer
	written int64
}

// NewBinaryWriter creates a new binary writer.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{w: w}
}

// Written returns the number of bytes written so far.
func (bw *BinaryWriter) Written() int64 {
	return bw.written
}

// WriteUint64 writes a single little-endian uint64.
func (bw *BinaryWriter) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return bw.write(buf[:])
}

// WriteBytes writes a byte slice verbatim.
func (bw *BinaryWriter) WriteBytes(p []byte) error {
	return bw.write(p)
}

// WriteFloat32Slice writes a float32 slice as raw bytes (zero-copy).
func (bw *BinaryWriter) WriteFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	return bw.write(byteSlice)
}

// WriteUint32Slice writes a uint32 slice as raw bytes (zero-copy).
func (bw *BinaryWriter) WriteUint32Slice(slice []uint32) error {
	if len(slice) == 0 {
		return nil
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*4)
	return bw.write(byteSlice)
}

// Align pads the stream with zero bytes until Written is a multiple of n.
func (bw *BinaryWriter) Align(n int64) error {
	rem := bw.written % n
	if rem == 0 {
		return nil
	}
	return bw.write(make([]byte, n-rem))
}

func (bw *BinaryWriter) write(p []byte) error {
	n, err := bw.w.Write(p)
	bw.written += int64(n)
	return err
}

// BinaryReader reads snapshot sections written by BinaryWriter.
type BinaryReader struct {
	r    io.Reader
	read int64
}

// NewBinaryReader creates a new binary reader.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{r: r}
}

// Read returns the number of bytes consumed so far.
func (br *BinaryReader) Read() int64 {
	return br.read
}

// ReadUint64 reads a single little-endian uint64.
func (br *BinaryReader) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := br.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadBytesInto fills p from the stream.
func (br *BinaryReader) ReadBytesInto(p []byte) error {
	return br.readFull(p)
}

// ReadFloat32Slice reads count float32 values.
func (br *BinaryReader) ReadFloat32Slice(count int) ([]float32, error) {
	if count == 0 {
		return nil, nil
	}
	vec := make([]float32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), count*4)
	if err := br.readFull(byteSlice); err != nil {
		return nil, err
	}
	return vec, nil
}

// ReadUint32Slice reads count uint32 values.
func (br *BinaryReader) ReadUint32Slice(count int) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}
	slice := make([]uint32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*4)
	if err := br.readFull(byteSlice); err != nil {
		return nil, err
	}
	return slice, nil
}

// Align discards padding until Read is a multiple of n.
func (br *BinaryReader) Align(n int64) error {
	rem := br.read % n
	if rem == 0 {
		return nil
	}
	return br.readFull(make([]byte, n-rem))
}

func (br *BinaryReader) readFull(p []byte) error {
	n, err := io.ReadFull(br.r, p)
	br.read += int64(n)
	return err
}

// SaveToFile writes a snapshot to filename atomically: the content is staged
// in a temp file in the same directory and renamed over the target.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// LoadFromFile reads a snapshot from filename.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load %s: %w", filename, err)
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	if err := readFunc(buf); err != nil {
		return fmt.Errorf("load %s: %w", filename, err)
	}
	return nil
}
