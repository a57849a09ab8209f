// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records every op on a
// GradientTape while recording is enabled. Backward then walks the tape in
// reverse to produce gradients for all contributing tensors.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x, _ := tensor.FromSlice([]float32{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x) // y = x²
//	grads := autodiff.Backward(y, backend)
//	_ = grads[x.Raw()] // dy/dx = 2x = 4.0
package autodiff

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/autodiff/ops"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface.
//
// The tape is backend state: one AutodiffBackend must not run concurrent
// forward passes.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.tape.Record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.tape.Record(ops.NewMulOp(a, c, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.tape.Record(ops.NewDivOp(a, c, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.tape.Record(ops.NewMatMulOp(a, c, result))
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape must be recorded: the result is a new tensor, and without the op
// gradients would stop at the reshaped copy instead of reaching the source
// (e.g. a bias reshaped to [1, out] for broadcasting).
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose transposes a tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	result := b.inner.Transpose(t, axes...)

	resolved := axes
	if len(resolved) == 0 {
		ndim := len(t.Shape())
		resolved = make([]int, ndim)
		for i := range resolved {
			resolved[i] = ndim - 1 - i
		}
	}
	b.tape.Record(ops.NewTransposeOp(t, result, append([]int(nil), resolved...)))
	return result
}

// MulScalar multiplies by a scalar and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	b.tape.Record(ops.NewMulScalarOp(x, result, scalar))
	return result
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	b.tape.Record(ops.NewAddScalarOp(x, result))
	return result
}

// Exp computes exp(x) and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Exp(x)
	b.tape.Record(ops.NewExpOp(x, result))
	return result
}

// Log computes log(x) and records the operation.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Log(x)
	b.tape.Record(ops.NewLogOp(x, result))
	return result
}

// Sqrt computes sqrt(x) and records the operation.
func (b *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sqrt(x)
	b.tape.Record(ops.NewSqrtOp(x, result))
	return result
}

// Sigmoid computes sigmoid(x) and records the operation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sigmoid(x)
	b.tape.Record(ops.NewSigmoidOp(x, result))
	return result
}

// Sum reduces all elements and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.tape.Record(ops.NewSumOp(x, result))
	return result
}

// SumDim sums along dim and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	b.tape.Record(ops.NewSumDimOp(x, result, mustNormalize("sumdim", dim, x), keepDim))
	return result
}

// MeanDim averages along dim and records the operation.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.MeanDim(x, dim, keepDim)
	b.tape.Record(ops.NewMeanDimOp(x, result, mustNormalize("meandim", dim, x), keepDim))
	return result
}

// mustNormalize resolves dim; the inner backend has already validated it.
func mustNormalize(op string, dim int, x *tensor.RawTensor) int {
	d, err := tensor.NormalizeDim(dim, len(x.Shape()))
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	return d
}
