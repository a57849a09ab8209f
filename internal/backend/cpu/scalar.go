package cpu

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// MulScalar multiplies each element of the tensor by a scalar value.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("mulScalar", x, func(v float64) float64 { return v * scalar })
}

// AddScalar adds a scalar value to each element of the tensor.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("addScalar", x, func(v float64) float64 { return v + scalar })
}

// unary applies f element-wise, computing in float64 and storing in x's dtype.
func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(f(float64(v)))
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			dst[i] = f(v)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", op, x.DType()))
	}

	return result
}
