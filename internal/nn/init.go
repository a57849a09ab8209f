package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// A nil rng uses the global math/rand source.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	uniform := tensor.RandFrom[float32](shape, rng, backend)
	data := uniform.Data()
	for i := range data {
		data[i] = float32((float64(data[i])*2.0 - 1.0) * bound)
	}
	return uniform
}

// Zeros creates a float32 tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
