package nn_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/maskrefine/internal/backend/cpu"
	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"orthogonal", []float32{1, 0, 0, 0}, []float32{0, 0, 1, 0}, 0},
		{"opposite", []float32{1, 2, 3, 4}, []float32{-2, -4, -6, -8}, -1},
		{"parallel", []float32{1, 2, 3, 4}, []float32{0.5, 1, 1.5, 2}, 1},
		{"45 degrees", []float32{1, 0, 0, 0}, []float32{1, 1, 0, 0}, 0.70710678},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := cpu.New()
			a := mustTensor(t, backend, tt.a, 1, 4)
			b := mustTensor(t, backend, tt.b, 1, 4)

			s, err := nn.CosineSimilarity(a, b)
			require.NoError(t, err)
			require.Equal(t, tensor.Shape{1}, s.Shape())
			assert.InDelta(t, tt.want, s.Data()[0], 1e-6)
		})
	}
}

func TestCosineSimilarityScaleInvariance(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 20; trial++ {
		a := tensor.RandnFrom[float32](tensor.Shape{3, 8}, rng, backend)
		b := tensor.RandnFrom[float32](tensor.Shape{3, 8}, rng, backend)
		alpha := 0.01 + rng.Float64()*100
		beta := 0.01 + rng.Float64()*100

		s, err := nn.CosineSimilarity(a, b)
		require.NoError(t, err)
		scaled, err := nn.CosineSimilarity(a.MulScalar(alpha), b.MulScalar(beta))
		require.NoError(t, err)

		assert.InDeltaSlice(t, s.Data(), scaled.Data(), 1e-5, "trial %d", trial)
	}
}

func TestCosineSimilarityExtremeScales(t *testing.T) {
	backend := cpu.New()
	a := mustTensor(t, backend, []float32{1, 2, 3, 4}, 2, 2)
	b := mustTensor(t, backend, []float32{2, 1, 6, 8}, 2, 2)

	for _, scale := range []float64{1e-30, 1e-23, 1e-20, 1, 1e20, 1e30} {
		s, err := nn.CosineSimilarity(a.MulScalar(scale), b.MulScalar(scale))
		require.NoError(t, err, "scale %v", scale)
		assert.InDeltaSlice(t, []float32{0.8, 1}, s.Data(), 1e-6, "scale %v", scale)
	}

	s, err := nn.CosineSimilarity(a.MulScalar(1e30), b.MulScalar(1e-30))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.8, 1}, s.Data(), 1e-6)
}

func TestCosineSimilarityNonFinite(t *testing.T) {
	backend := cpu.New()
	b := mustTensor(t, backend, []float32{1, 1, 1, 1}, 2, 2)

	for _, bad := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		a := mustTensor(t, backend, []float32{1, 0, 0, bad}, 2, 2)
		_, err := nn.CosineSimilarity(a, b)
		require.ErrorIs(t, err, nn.ErrNumericDomain)

		var domainErr *nn.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, 1, domainErr.Index)
	}
}

func TestCosineSimilarityRange(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(3))

	a := tensor.RandnFrom[float32](tensor.Shape{64, 5}, rng, backend)
	b := tensor.RandnFrom[float32](tensor.Shape{64, 5}, rng, backend)
	s, err := nn.CosineSimilarity(a, b)
	require.NoError(t, err)

	for i, v := range s.Data() {
		assert.GreaterOrEqual(t, v, float32(-1-1e-6), "index %d", i)
		assert.LessOrEqual(t, v, float32(1+1e-6), "index %d", i)
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	backend := cpu.New()
	a := mustTensor(t, backend, []float32{1, 2, 0, 0}, 2, 2)
	b := mustTensor(t, backend, []float32{1, 1, 3, 4}, 2, 2)

	_, err := nn.CosineSimilarity(a, b)
	require.ErrorIs(t, err, nn.ErrNumericDomain)

	var domainErr *nn.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, 1, domainErr.Index)
	assert.Equal(t, "cosine_similarity", domainErr.Op)

	_, err = nn.CosineSimilarity(b, a)
	assert.ErrorIs(t, err, nn.ErrNumericDomain)
}

func TestCosineSimilarityShapeErrors(t *testing.T) {
	backend := cpu.New()

	_, err := nn.CosineSimilarity(
		tensor.Ones[float32](tensor.Shape{2, 3}, backend),
		tensor.Ones[float32](tensor.Shape{2, 4}, backend),
	)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	_, err = nn.CosineSimilarity(
		tensor.Ones[float32](tensor.Shape{6}, backend),
		tensor.Ones[float32](tensor.Shape{6}, backend),
	)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)
}
