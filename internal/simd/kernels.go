package simd

var (
	dotImpl       = dotGeneric
	squaredL2Impl = squaredL2Generic
)

// bindKernels binds the kernel implementations for the selected tier.
func bindKernels(isa ISA) {
	switch isa {
	case AVX512:
		dotImpl = dotBlocked16
		squaredL2Impl = squaredL2Blocked16
	case AVX2:
		dotImpl = dotBlocked8
		squaredL2Impl = squaredL2Blocked8
	case NEON:
		dotImpl = dotBlocked4
		squaredL2Impl = squaredL2Blocked4
	default:
		dotImpl = dotGeneric
		squaredL2Impl = squaredL2Generic
	}
}

// Dot calculates the dot product of two vectors.
//
// SAFETY: assumes len(a) == len(b). No bounds checks are performed; callers
// must ensure lengths match to avoid buffer over-reads.
func Dot(a, b []float32) float32 {
	return dotImpl(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance.
//
// SAFETY: assumes len(a) == len(b), as for Dot.
func SquaredL2(a, b []float32) float32 {
	return squaredL2Impl(a, b)
}

// PqAdcLookup sums per-subvector distances out of a precomputed table.
// table is len(codes) rows of k floats each; codes selects one entry per row.
func PqAdcLookup(table []float32, codes []byte, k int) float32 {
	var sum float32
	for m, c := range codes {
		sum += table[m*k+int(c)]
	}
	return sum
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

func dotGeneric(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

func squaredL2Generic(a, b []float32) float32 {
	var distance float32
	for i := range a {
		d := a[i] - b[i]
		distance += d * d
	}
	return distance
}

// The blocked kernels below walk the input in 16-lane blocks with a scalar
// tail. The tier decides how many independent partial accumulators a block
// feeds: 16 for the 512-bit shape, 8 for 256-bit, 4 for 128-bit. The
// accumulators are reduced pairwise in a fixed order, so each tier is
// deterministic on its own.

func squaredL2Blocked16(a, b []float32) float32 {
	var acc [16]float32
	n := len(a) &^ 15
	for i := 0; i < n; i += 16 {
		for j := 0; j < 16; j++ {
			d := a[i+j] - b[i+j]
			acc[j] += d * d
		}
	}
	var tail float32
	for i := n; i < len(a); i++ {
		d := a[i] - b[i]
		tail += d * d
	}
	return reduce16(&acc) + tail
}

func squaredL2Blocked8(a, b []float32) float32 {
	var acc [8]float32
	n := len(a) &^ 15
	for i := 0; i < n; i += 16 {
		for j := 0; j < 8; j++ {
			d0 := a[i+j] - b[i+j]
			d1 := a[i+8+j] - b[i+8+j]
			acc[j] += d0*d0 + d1*d1
		}
	}
	var tail float32
	for i := n; i < len(a); i++ {
		d := a[i] - b[i]
		tail += d * d
	}
	return reduce8(&acc) + tail
}

func squaredL2Blocked4(a, b []float32) float32 {
	var acc [4]float32
	n := len(a) &^ 15
	for i := 0; i < n; i += 16 {
		for j := 0; j < 4; j++ {
			d0 := a[i+j] - b[i+j]
			d1 := a[i+4+j] - b[i+4+j]
			d2 := a[i+8+j] - b[i+8+j]
			d3 := a[i+12+j] - b[i+12+j]
			acc[j] += d0*d0 + d1*d1 + d2*d2 + d3*d3
		}
	}
	var tail float32
	for i := n; i < len(a); i++ {
		d := a[i] - b[i]
		tail += d * d
	}
	return reduce4(&acc) + tail
}

func dotBlocked16(a, b []float32) float32 {
	var acc [16]float32
	n := len(a) &^ 15
	for i := 0; i < n; i += 16 {
		for j := 0; j < 16; j++ {
			acc[j] += a[i+j] * b[i+j]
		}
	}
	var tail float32
	for i := n; i < len(a); i++ {
		tail += a[i] * b[i]
	}
	return reduce16(&acc) + tail
}

func dotBlocked8(a, b []float32) float32 {
	var acc [8]float32
	n := len(a) &^ 15
	for i := 0; i < n; i += 16 {
		for j := 0; j < 8; j++ {
			acc[j] += a[i+j]*b[i+j] + a[i+8+j]*b[i+8+j]
		}
	}
	var tail float32
	for i := n; i < len(a); i++ {
		tail += a[i] * b[i]
	}
	return reduce8(&acc) + tail
}

func dotBlocked4(a, b []float32) float32 {
	var acc [4]float32
	n := len(a) &^ 15
	for i := 0; i < n; i += 16 {
		for j := 0; j < 4; j++ {
			acc[j] += a[i+j]*b[i+j] + a[i+4+j]*b[i+4+j] +
				a[i+8+j]*b[i+8+j] + a[i+12+j]*b[i+12+j]
		}
	}
	var tail float32
	for i := n; i < len(a); i++ {
		tail += a[i] * b[i]
	}
	return reduce4(&acc) + tail
}

func reduce16(acc *[16]float32) float32 {
	for j := 0; j < 8; j++ {
		acc[j] += acc[j+8]
	}
	return reduce8((*[8]float32)(acc[:8]))
}

func reduce8(acc *[8]float32) float32 {
	for j := 0; j < 4; j++ {
		acc[j] += acc[j+4]
	}
	return reduce4((*[4]float32)(acc[:4]))
}

func reduce4(acc *[4]float32) float32 {
	return (acc[0] + acc[2]) + (acc[1] + acc[3])
}
