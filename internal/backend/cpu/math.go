package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// Exp computes element-wise exponential: exp(x).
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, math.Exp)
}

// Log computes element-wise natural logarithm: ln(x).
// Panics on non-positive input.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	for i := 0; i < x.NumElements(); i++ {
		if v := x.At64(i); v <= 0 {
			panic(fmt.Sprintf("log: non-positive value at index %d: %g", i, v))
		}
	}
	return cpu.unary("log", x, math.Log)
}

// Sqrt computes element-wise square root: sqrt(x).
// Panics on negative input.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	for i := 0; i < x.NumElements(); i++ {
		if v := x.At64(i); v < 0 {
			panic(fmt.Sprintf("sqrt: negative value at index %d: %g", i, v))
		}
	}
	return cpu.unary("sqrt", x, math.Sqrt)
}

// Sigmoid computes element-wise logistic function: 1 / (1 + exp(-x)).
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, sigmoid)
}

// sigmoid is evaluated on the branch that never overflows exp.
func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}
