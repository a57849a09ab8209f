package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestShape_Validate(t *testing.T) {
	assert.NoError(t, Shape{1, 2}.Validate())
	assert.Error(t, Shape{2, 0}.Validate())
}

func TestNormalizeDim(t *testing.T) {
	d, err := NormalizeDim(-1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	_, err = NormalizeDim(3, 3)
	assert.Error(t, err)
	_, err = NormalizeDim(-4, 3)
	assert.Error(t, err)
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"equal", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"column", Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"rank padding", Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{"single channel mask", Shape{2, 1, 4, 4}, Shape{2, 3, 4, 4}, Shape{2, 3, 4, 4}, true, false},
		{"scalar", Shape{}, Shape{2, 2}, Shape{2, 2}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestRawTensor(t *testing.T) {
	r, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)

	assert.Equal(t, 6, r.NumElements())
	assert.Equal(t, 24, r.ByteSize())
	assert.Equal(t, []int{3, 1}, r.Strides())
	assert.Panics(t, func() { r.AsFloat64() })

	r.SetAt64(4, 2.5)
	assert.Equal(t, 2.5, r.At64(4))

	c := r.Clone()
	c.AsFloat32()[4] = 7
	assert.Equal(t, float32(2.5), r.AsFloat32()[4], "clone must not share storage")

	v, err := r.WithShape(Shape{3, 2})
	require.NoError(t, err)
	v.AsFloat32()[0] = 1
	assert.Equal(t, float32(1), r.AsFloat32()[0], "view shares storage")

	_, err = r.WithShape(Shape{4})
	assert.Error(t, err)

	_, err = NewRaw(Shape{0}, Float32, CPU)
	assert.Error(t, err)
}
