// Package nn implements the neural network building blocks of the mask
// refinement objective.
//
// This package provides:
//   - Module and Encoder interfaces for injected collaborators
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear, Sigmoid, PixelMaskHead, PooledImageEncoder
//   - CosineSimilarity along the embedding axis
//   - RefinementLoss: the background-repulsion loss with an injected match term
//
// All modules compute through the tensor backend, so wrapping the backend
// with autodiff makes every loss term differentiable.
package nn

import (
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Encoder maps one tensor to another.
//
// Image encoders, text encoders and mask generators are all Encoders from the
// loss's point of view: the loss only calls Forward and checks the result's shape.
type Encoder[B tensor.Backend] interface {
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// EncoderFunc adapts a plain function to the Encoder interface.
type EncoderFunc[B tensor.Backend] func(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

// Forward calls f(input).
func (f EncoderFunc[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return f(input)
}

// Module is an Encoder with trainable parameters.
//
// Modules can be composed to build the mask generator:
//
//	head := nn.NewPixelMaskHead(3, backend)
//	mask := head.Forward(images) // [batch, 1, H, W]
type Module[B tensor.Backend] interface {
	Encoder[B]

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter[B]
}
