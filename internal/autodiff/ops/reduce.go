package ops

import (
	"github.com/born-ml/maskrefine/internal/tensor"
)

// SumOp represents output = sum(input) (0-D result).
type SumOp struct{ base }

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{base{inputs: []*tensor.RawTensor{input}, output: output}}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandTo(outputGrad, op.inputs[0].Shape(), backend)}
}

// SumDimOp represents output = sum(input, dim).
type SumDimOp struct {
	base
	dim     int // normalized (non-negative)
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. dim must already be normalized.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{base: base{inputs: []*tensor.RawTensor{input}, output: output}, dim: dim, keepDim: keepDim}
}

// Backward broadcasts the gradient back along the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandReduced(outputGrad, op.inputs[0].Shape(), op.dim, op.keepDim, backend)}
}

// MeanDimOp represents output = mean(input, dim).
type MeanDimOp struct {
	base
	dim     int // normalized (non-negative)
	keepDim bool
}

// NewMeanDimOp creates a new MeanDimOp. dim must already be normalized.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *MeanDimOp {
	return &MeanDimOp{base: base{inputs: []*tensor.RawTensor{input}, output: output}, dim: dim, keepDim: keepDim}
}

// Backward spreads the gradient evenly over the reduced dimension.
func (op *MeanDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.inputs[0].Shape()
	grad := expandReduced(outputGrad, shape, op.dim, op.keepDim, backend)
	return []*tensor.RawTensor{backend.MulScalar(grad, 1/float64(shape[op.dim]))}
}

// expandReduced restores the reduced dimension (size 1) and broadcasts to shape.
func expandReduced(grad *tensor.RawTensor, shape tensor.Shape, dim int, keepDim bool, backend tensor.Backend) *tensor.RawTensor {
	if !keepDim {
		kept := shape.Clone()
		kept[dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	return expandTo(grad, shape, backend)
}
