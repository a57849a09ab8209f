package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Scalar creates a 0-D tensor holding value.
func Scalar[T DType, B Backend](value T, b B) *Tensor[T, B] {
	return Full[T, B](Shape{}, value, b)
}

// Randn creates a tensor with values drawn from N(0, 1) using the global source.
//
// Example:
//
//	t := tensor.Randn[float32](Shape{100, 100}, backend)
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return RandnFrom[T, B](shape, nil, b)
}

// RandnFrom is Randn with an explicit random source for reproducible runs.
// A nil rng falls back to the global math/rand source.
func RandnFrom[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	float := rand.Float64 //nolint:gosec // G404: ML uses math/rand intentionally for reproducibility
	if rng != nil {
		float = rng.Float64
	}

	t := Zeros[T, B](shape, b)
	data := t.Data()

	// Box-Muller transform
	for i := 0; i < len(data); i += 2 {
		u1 := 1 - float() // (0, 1]: keeps log finite
		u2 := float()
		r := math.Sqrt(-2.0 * math.Log(u1))
		data[i] = T(r * math.Cos(2.0*math.Pi*u2))
		if i+1 < len(data) {
			data[i+1] = T(r * math.Sin(2.0*math.Pi*u2))
		}
	}
	return t
}

// RandFrom creates a tensor with values uniformly distributed in [0, 1).
// A nil rng falls back to the global math/rand source.
func RandFrom[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	float := rand.Float64 //nolint:gosec // G404: ML uses math/rand intentionally
	if rng != nil {
		float = rng.Float64
	}

	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(float())
	}
	return t
}
