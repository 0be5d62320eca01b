package quantization

import (
	"fmt"
	"io"

	"github.com/hupe1980/flatgo/distance"
	"github.com/hupe1980/flatgo/persistence"
)

const (
	// pqMagic identifies a serialized product quantizer ("FGPEQ001", LE).
	pqMagic uint64 = 0x3130305145504746
	// pqVersion is the current serialization version.
	pqVersion uint64 = 1
)

// WriteTo serializes a trained quantizer. The layout is little-endian:
// magic, version, metric, dim, m, nbits, then the codebooks and pair tables
// as raw float32 data.
func (pq *ProductQuantizer) WriteTo(w io.Writer) (int64, error) {
	if !pq.trained {
		return 0, ErrNotTrained
	}

	bw := persistence.NewBinaryWriter(w)
	for _, v := range []uint64{pqMagic, pqVersion, uint64(pq.metric), uint64(pq.dim), uint64(pq.m), uint64(pq.nbits)} {
		if err := bw.WriteUint64(v); err != nil {
			return bw.Written(), err
		}
	}
	if err := bw.WriteFloat32Slice(pq.codebooks); err != nil {
		return bw.Written(), err
	}
	if err := bw.WriteFloat32Slice(pq.pairTables); err != nil {
		return bw.Written(), err
	}
	return bw.Written(), nil
}

// ReadFrom deserializes a quantizer written by WriteTo. The receiver's
// configuration is replaced by the stored one.
func (pq *ProductQuantizer) ReadFrom(r io.Reader) (int64, error) {
	br := persistence.NewBinaryReader(r)

	header := make([]uint64, 6)
	for i := range header {
		v, err := br.ReadUint64()
		if err != nil {
			return br.Read(), err
		}
		header[i] = v
	}
	if header[0] != pqMagic {
		return br.Read(), fmt.Errorf("quantization: %w: got 0x%016x", persistence.ErrInvalidMagic, header[0])
	}
	if header[1] != pqVersion {
		return br.Read(), fmt.Errorf("quantization: %w: got %d", persistence.ErrInvalidVersion, header[1])
	}

	loaded, err := New(int(header[3]), int(header[4]), int(header[5]), distance.Metric(header[2]))
	if err != nil {
		return br.Read(), fmt.Errorf("quantization: %w: %w", persistence.ErrCorruptSnapshot, err)
	}

	loaded.codebooks, err = br.ReadFloat32Slice(loaded.m * loaded.k * loaded.subDim)
	if err != nil {
		return br.Read(), err
	}
	loaded.pairTables, err = br.ReadFloat32Slice(loaded.m * loaded.k * loaded.k)
	if err != nil {
		return br.Read(), err
	}
	loaded.trained = true

	*pq = *loaded
	return br.Read(), nil
}

// SaveFile writes the quantizer to path atomically.
func (pq *ProductQuantizer) SaveFile(path string) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		_, err := pq.WriteTo(w)
		return err
	})
}

// LoadFile reads a quantizer from path.
func LoadFile(path string) (*ProductQuantizer, error) {
	pq := &ProductQuantizer{}
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		_, rerr := pq.ReadFrom(r)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return pq, nil
}
