// Package optim implements the optimizers that train the mask generator and
// encoders against the refinement loss.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Example usage:
//
//	optimizer := optim.NewSGD(params, optim.SGDConfig{LR: 0.1}, backend)
//
//	backend.Tape().StartRecording()
//	out, err := loss.Forward(images, background, text)
//	grads := autodiff.Backward(out.Loss, backend)
//	backend.Tape().Clear()
//
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
//
// Parameter updates write straight into the parameter storage and never go
// through the backend, so they are not recorded on an autodiff tape.
package optim

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	//
	// grads maps a parameter's RawTensor to its gradient, as returned by
	// autodiff.Backward. Parameters missing from grads are left unchanged.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// gradientFor looks up the gradient of param and records it on the parameter.
//
// Returns nil if the parameter was not part of the computation graph.
func gradientFor[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, backend B) []float32 {
	raw, ok := grads[param.Tensor().Raw()]
	if !ok || raw == nil {
		return nil
	}
	if !raw.Shape().Equal(param.Tensor().Shape()) {
		panic(fmt.Sprintf("optim: gradient shape %v does not match parameter %q shape %v",
			raw.Shape(), param.Name(), param.Tensor().Shape()))
	}
	param.SetGrad(tensor.New[float32, B](raw, backend))
	return raw.AsFloat32()
}
