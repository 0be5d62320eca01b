package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 0.02, SquaredL2([]float32{0.1, 0.1}, []float32{0, 0}), 1e-6)
	assert.Equal(t, float32(2), SquaredL2([]float32{1, 0}, []float32{0, 1}))
}

func TestAngular(t *testing.T) {
	// Identical unit vectors have distance 0.
	assert.InDelta(t, 0, Angular([]float32{1, 0}, []float32{1, 0}), 1e-6)
	// Orthogonal unit vectors have distance 1.
	assert.InDelta(t, 1, Angular([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestNormalizeL2InPlace(t *testing.T) {
	v := []float32{3, 4}
	require.True(t, NormalizeL2InPlace(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1, norm, 1e-6)

	assert.False(t, NormalizeL2InPlace([]float32{0, 0}))
	assert.False(t, NormalizeL2InPlace(nil))
}

func TestNormalizeL2Copy(t *testing.T) {
	src := []float32{0, 2}
	dst, ok := NormalizeL2Copy(src)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 2}, src)
	assert.Equal(t, []float32{0, 1}, dst)

	_, ok = NormalizeL2Copy([]float32{0, 0})
	assert.False(t, ok)
}

func TestProvider(t *testing.T) {
	f, err := Provider(MetricL2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), f([]float32{1, 0}, []float32{0, 1}))

	f, err = Provider(MetricAngular)
	require.NoError(t, err)
	assert.InDelta(t, 1, f([]float32{1, 0}, []float32{0, 1}), 1e-6)

	_, err = Provider(Metric(99))
	require.Error(t, err)
}

func TestNaNPropagates(t *testing.T) {
	nan := float32(math.NaN())
	d := SquaredL2([]float32{nan, 0}, []float32{0, 0})
	assert.True(t, math.IsNaN(float64(d)))
}

func TestMetricString(t *testing.T) {
	assert.Equal(t, "L2", MetricL2.String())
	assert.Equal(t, "Angular", MetricAngular.String())
	assert.Equal(t, "Unknown(7)", Metric(7).String())
}
