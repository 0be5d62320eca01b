package graph

import (
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/flatgo/persistence"
)

// indexMagic identifies an index snapshot ("FLATG001", little-endian).
const indexMagic uint64 = 0x3130304754414C46

// nodeBlockAlign is the file offset alignment of the node arena.
const nodeBlockAlign = 64

// WriteTo serializes the index. Layout, all little-endian:
//
//	[u64 magic][u64 M][u64 dataSize][u64 recordSize]
//	[u64 maxNodes][u64 curNodes][u64 dim][u64 visitedCap]
//	[zero padding to a 64-byte file offset]
//	[node arena: maxNodes * recordSize bytes]
//	[query scratch: dataSize bytes]
//
// The metric and any product quantizer state are not part of the snapshot;
// the caller re-supplies the Space on load.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	bw := persistence.NewBinaryWriter(w)

	header := []uint64{
		indexMagic,
		uint64(ix.m),
		uint64(ix.dataSize),
		uint64(ix.recordSize),
		uint64(ix.maxNodes),
		uint64(ix.curNodes),
		uint64(ix.space.Dimension()),
		uint64(ix.visitedCap),
	}
	for _, v := range header {
		if err := bw.WriteUint64(v); err != nil {
			return bw.Written(), err
		}
	}
	if err := bw.Align(nodeBlockAlign); err != nil {
		return bw.Written(), err
	}
	if err := bw.WriteBytes(ix.memory); err != nil {
		return bw.Written(), err
	}
	if err := bw.WriteBytes(ix.queryScratch); err != nil {
		return bw.Written(), err
	}
	return bw.Written(), nil
}

// Read deserializes an index written by WriteTo. The caller re-supplies the
// space (metric or trained quantizer) the index was built with; header
// geometry is validated against it. The visited scratch starts cleared.
func Read(r io.Reader, space Space) (*Index, error) {
	br := persistence.NewBinaryReader(r)

	header := make([]uint64, 8)
	for i := range header {
		v, err := br.ReadUint64()
		if err != nil {
			return nil, err
		}
		header[i] = v
	}
	if header[0] != indexMagic {
		return nil, fmt.Errorf("graph: %w: got 0x%016x", persistence.ErrInvalidMagic, header[0])
	}

	m := int(header[1])
	dataSize := int(header[2])
	recordSize := int(header[3])
	maxNodes := int(header[4])
	curNodes := int(header[5])
	dim := int(header[6])
	visitedCap := int(header[7])

	if m <= 0 || maxNodes <= 0 || maxNodes > math.MaxUint32 {
		return nil, fmt.Errorf("graph: %w: m=%d maxNodes=%d", persistence.ErrCorruptSnapshot, m, maxNodes)
	}
	if recordSize != dataSize+m*4+labelSize {
		return nil, fmt.Errorf("graph: %w: record size %d does not match data size %d and out-degree %d",
			persistence.ErrCorruptSnapshot, recordSize, dataSize, m)
	}
	if curNodes < 0 || curNodes > maxNodes {
		return nil, fmt.Errorf("graph: %w: node count %d exceeds capacity %d",
			persistence.ErrCorruptSnapshot, curNodes, maxNodes)
	}
	if dataSize != space.DataSize() || dim != space.Dimension() {
		return nil, fmt.Errorf("graph: snapshot geometry (dim=%d, data=%dB) does not match supplied space (dim=%d, data=%dB)",
			dim, dataSize, space.Dimension(), space.DataSize())
	}

	ix, err := New(space, maxNodes, m)
	if err != nil {
		return nil, err
	}
	ix.curNodes = curNodes
	ix.visitedCap = visitedCap

	if err := br.Align(nodeBlockAlign); err != nil {
		return nil, err
	}
	if err := br.ReadBytesInto(ix.memory); err != nil {
		return nil, err
	}
	if err := br.ReadBytesInto(ix.queryScratch); err != nil {
		return nil, err
	}
	return ix, nil
}

// SaveFile writes the index snapshot to path atomically.
func (ix *Index) SaveFile(path string) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		_, err := ix.WriteTo(w)
		return err
	})
}

// LoadFile reads an index snapshot from path using the supplied space.
func LoadFile(path string, space Space) (*Index, error) {
	var ix *Index
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var rerr error
		ix, rerr = Read(r, space)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// NodeBlock exposes the raw arena for byte-level comparison in tests and
// tooling. The slice aliases index memory; callers must not write to it.
func (ix *Index) NodeBlock() []byte {
	return ix.memory
}
