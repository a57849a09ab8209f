package nn

import (
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The optimizer looks up a parameter's gradient by the identity of its
// RawTensor, so the tensor must be updated in place and never replaced.
//
// Example:
//
//	weight := nn.NewParameter("head.weight", weightTensor)
//	grads := autodiff.Backward(loss, backend)
//	g := grads[weight.Tensor().Raw()]
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B] // Set by the optimizer after a backward pass
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before the first backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// prefixed renames params as "<prefix>.<name>".
func prefixed[B tensor.Backend](prefix string, params []*Parameter[B]) []*Parameter[B] {
	for _, p := range params {
		p.name = prefix + "." + p.name
	}
	return params
}
