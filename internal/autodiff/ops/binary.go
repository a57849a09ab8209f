package ops

import "github.com/born-ml/maskrefine/internal/tensor"

// AddOp represents output = a + b.
// Both inputs receive the output gradient, folded back over broadcast dims.
type AddOp struct{ base }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape(), backend),
		reduceBroadcast(outputGrad, op.inputs[1].Shape(), backend),
	}
}

// SubOp represents output = a - b.
type SubOp struct{ base }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for subtraction: grad_a = g, grad_b = -g.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape(), backend),
		reduceBroadcast(backend.MulScalar(outputGrad, -1), op.inputs[1].Shape(), backend),
	}
}

// MulOp represents output = a * b.
//
// Backward pass:
//   - grad_a = outputGrad * b
//   - grad_b = outputGrad * a
type MulOp struct{ base }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend),
	}
}

// DivOp represents output = a / b.
//
// Backward pass:
//   - grad_a = outputGrad / b
//   - grad_b = -outputGrad * output / b
type DivOp struct{ base }

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for division.
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(outputGrad, b)
	gradB := backend.MulScalar(backend.Div(backend.Mul(outputGrad, op.output), b), -1)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}

// MatMulOp represents output = a @ b for 2D tensors.
type MatMulOp struct{ base }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes grad_a = g @ b^T and grad_b = a^T @ g.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(b, 1, 0)),
		backend.MatMul(backend.Transpose(a, 1, 0), outputGrad),
	}
}
