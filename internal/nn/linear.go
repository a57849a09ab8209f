package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// As a text encoder it maps prompt embeddings [batch, prompt_dim] into the
// shared embedding space [batch, embedding_dim].
//
// Example:
//
//	backend := cpu.New()
//	textEncoder := nn.NewLinear(16, 8, backend)
//	u := textEncoder.Forward(prompts) // [batch, 8]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features], nil when disabled
}

// LinearOption configures a Linear layer.
type LinearOption func(*linearOptions)

type linearOptions struct {
	rng    *rand.Rand
	noBias bool
}

// WithRand draws the initial weights from rng instead of the global source.
func WithRand(rng *rand.Rand) LinearOption {
	return func(o *linearOptions) { o.rng = rng }
}

// WithoutBias disables the bias term.
func WithoutBias() LinearOption {
	return func(o *linearOptions) { o.noBias = true }
}

// NewLinear creates a new Linear layer.
//
// Weights are initialized using Xavier/Glorot uniform distribution.
// Biases are initialized to zeros.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, opts ...LinearOption) *Linear[B] {
	var o linearOptions
	for _, opt := range opts {
		opt(&o)
	}

	weightShape := tensor.Shape{outFeatures, inFeatures}
	l := &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, o.rng, backend)),
	}
	if !o.noBias {
		l.bias = NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend))
	}
	return l
}

// Forward computes y = x @ W.T + b.
//
// Panics if input is not [batch_size, in_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	output := input.MatMul(l.weight.Tensor().T())
	if l.bias != nil {
		// [out] -> [1, out] so it broadcasts over the batch.
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}
	return output
}

// Parameters returns [weight, bias], or [weight] without bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter (nil when disabled).
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
