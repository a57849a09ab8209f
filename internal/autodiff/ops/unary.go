package ops

import "github.com/born-ml/maskrefine/internal/tensor"

// ExpOp represents output = exp(input); grad = g * output.
type ExpOp struct{ base }

// NewExpOp creates a new ExpOp.
func NewExpOp(input, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{base{inputs: []*tensor.RawTensor{input}, output: output}}
}

// Backward computes the gradient with respect to input.
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp represents output = log(input); grad = g / input.
type LogOp struct{ base }

// NewLogOp creates a new LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{base{inputs: []*tensor.RawTensor{input}, output: output}}
}

// Backward computes the gradient with respect to input.
// Input is positive: the forward pass rejects anything else.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.inputs[0])}
}

// SqrtOp represents output = sqrt(input); grad = g / (2 * output).
type SqrtOp struct{ base }

// NewSqrtOp creates a new SqrtOp.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{base{inputs: []*tensor.RawTensor{input}, output: output}}
}

// Backward computes the gradient with respect to input.
// The gradient is infinite at input 0; callers guard zero norms before sqrt.
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, backend.MulScalar(op.output, 2))}
}

// SigmoidOp represents output = sigmoid(input); grad = g * output * (1 - output).
type SigmoidOp struct{ base }

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{base{inputs: []*tensor.RawTensor{input}, output: output}}
}

// Backward computes the gradient with respect to input.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	oneMinus := backend.AddScalar(backend.MulScalar(op.output, -1), 1)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.Mul(op.output, oneMinus))}
}

// MulScalarOp represents output = input * s.
type MulScalarOp struct {
	base
	scalar float64
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar float64) *MulScalarOp {
	return &MulScalarOp{base: base{inputs: []*tensor.RawTensor{input}, output: output}, scalar: scalar}
}

// Backward computes grad = g * s.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// AddScalarOp represents output = input + s; the gradient passes through.
type AddScalarOp struct{ base }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(input, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{base{inputs: []*tensor.RawTensor{input}, output: output}}
}

// Backward returns the output gradient unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}
