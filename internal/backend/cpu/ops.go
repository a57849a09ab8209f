package cpu

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, addF32, addF64)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, subF32, subF64)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, mulF32, mulF64)
}

// Div performs element-wise division with broadcasting.
// Division by zero follows IEEE-754 (±Inf or NaN).
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, divF32, divF64)
}

func (cpu *CPUBackend) binary(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	switch a.DType() {
	case tensor.Float32:
		binaryBroadcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, f32)
	case tensor.Float64:
		binaryBroadcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, f64)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}

func addF32(x, y float32) float32 { return x + y }
func addF64(x, y float64) float64 { return x + y }
func subF32(x, y float32) float32 { return x - y }
func subF64(x, y float64) float64 { return x - y }
func mulF32(x, y float32) float32 { return x * y }
func mulF64(x, y float64) float64 { return x * y }
func divF32(x, y float32) float32 { return x / y }
func divF64(x, y float64) float64 { return x / y }
