package nn

import (
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
//
// Sigmoid squashes mask logits into (0, 1).
//
// Example:
//
//	sigmoid := nn.NewSigmoid[Backend]()
//	mask := sigmoid.Forward(logits)
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies σ(x) element-wise.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sigmoid()
}

// Parameters returns nil (Sigmoid has no trainable parameters).
func (s *Sigmoid[B]) Parameters() []*Parameter[B] {
	return nil
}
