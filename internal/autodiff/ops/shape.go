package ops

import "github.com/born-ml/maskrefine/internal/tensor"

// ReshapeOp represents a reshape; the gradient is reshaped back.
type ReshapeOp struct{ base }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{base{inputs: []*tensor.RawTensor{input}, output: output}}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inputs[0].Shape())}
}

// TransposeOp represents a permutation of dimensions.
type TransposeOp struct {
	base
	axes []int // resolved permutation, never empty for rank > 0
}

// NewTransposeOp creates a new TransposeOp with the resolved permutation.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{base: base{inputs: []*tensor.RawTensor{input}, output: output}, axes: axes}
}

// Backward applies the inverse permutation to the gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}
