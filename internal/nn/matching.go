package nn

import (
	"github.com/born-ml/maskrefine/internal/tensor"
)

// MatchInput carries everything a match loss may consume.
type MatchInput[B tensor.Backend] struct {
	Mask                *tensor.Tensor[float32, B] // [batch, c, h, w], broadcastable to the images
	Foreground          *tensor.Tensor[float32, B] // mask * images
	ForegroundEmbedding *tensor.Tensor[float32, B] // encode_image(foreground), [batch, dim]
	BackgroundEmbedding *tensor.Tensor[float32, B] // encode_text(background prompt), [batch, dim]
	TextPrompt          *tensor.Tensor[float32, B] // [batch, prompt_dim]
	TextEmbedding       *tensor.Tensor[float32, B] // encode_text(text prompt), [batch, dim]
}

// MatchLoss is the primary term the refinement loss is added to.
//
// Forward must return a single-element tensor. Errors are returned to the
// RefinementLoss caller unchanged.
type MatchLoss[B tensor.Backend] interface {
	Forward(in MatchInput[B]) (*tensor.Tensor[float32, B], error)
}

// MatchFunc adapts a plain function to the MatchLoss interface.
type MatchFunc[B tensor.Backend] func(in MatchInput[B]) (*tensor.Tensor[float32, B], error)

// Forward calls f(in).
func (f MatchFunc[B]) Forward(in MatchInput[B]) (*tensor.Tensor[float32, B], error) {
	return f(in)
}

// ZeroMatch is a placeholder match loss that always returns 0.
//
// With ZeroMatch the total loss equals the refinement term alone. Use it in
// tests and for isolating the refinement gradient.
type ZeroMatch[B tensor.Backend] struct{}

// Forward returns a scalar zero.
func (ZeroMatch[B]) Forward(in MatchInput[B]) (*tensor.Tensor[float32, B], error) {
	return tensor.Scalar[float32](0, in.Mask.Backend()), nil
}

// CosineMatch is a placeholder match loss for demos:
//
//	mean_i(1 - cos(v_foreground_i, u_text_i))
//
// It pulls the foreground embedding toward the text prompt embedding. It is
// a stand-in, not a reproduction of any particular segmentation objective.
type CosineMatch[B tensor.Backend] struct{}

// Forward computes the mean cosine distance between foreground and text embeddings.
func (CosineMatch[B]) Forward(in MatchInput[B]) (*tensor.Tensor[float32, B], error) {
	s, err := CosineSimilarity(in.ForegroundEmbedding, in.TextEmbedding)
	if err != nil {
		return nil, err
	}
	batch := float64(s.Shape()[0])
	return s.MulScalar(-1).AddScalar(1).Sum().MulScalar(1 / batch), nil
}
