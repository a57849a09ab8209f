// Package ops defines the differentiable operations recorded by the autodiff tape.
//
// Each operation keeps its inputs and output from the forward pass and
// computes input gradients in Backward:
//   - AddOp, SubOp, MulOp, DivOp: element-wise binary ops with broadcasting
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - ExpOp, LogOp, SqrtOp, SigmoidOp, MulScalarOp, AddScalarOp: element-wise unary ops
//   - SumOp, SumDimOp, MeanDimOp: reductions
//   - ReshapeOp, TransposeOp: layout changes
package ops

import "github.com/born-ml/maskrefine/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns one gradient per input, in the order of Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// base holds the bookkeeping shared by every operation.
type base struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensors.
func (b *base) Inputs() []*tensor.RawTensor {
	return b.inputs
}

// Output returns the output tensor.
func (b *base) Output() *tensor.RawTensor {
	return b.output
}
