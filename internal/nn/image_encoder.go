package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// PooledImageEncoder embeds images by global average pooling followed by a
// Linear(channels, embedDim) projection.
//
//	[B, C, H, W] -> mean over W, H -> [B, C] -> Linear -> [B, embedDim]
type PooledImageEncoder[B tensor.Backend] struct {
	channels int
	proj     *Linear[B]
}

// NewPooledImageEncoder creates an image encoder. A nil rng uses the global source.
func NewPooledImageEncoder[B tensor.Backend](channels, embedDim int, rng *rand.Rand, backend B) *PooledImageEncoder[B] {
	proj := NewLinear(channels, embedDim, backend, WithRand(rng))
	prefixed("image_encoder", proj.Parameters())
	return &PooledImageEncoder[B]{
		channels: channels,
		proj:     proj,
	}
}

// Forward returns [batch, embedDim] embeddings.
//
// Panics if input is not [batch, channels, height, width].
func (e *PooledImageEncoder[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != e.channels {
		panic(fmt.Sprintf("PooledImageEncoder.Forward: expected [batch, %d, height, width], got %v", e.channels, shape))
	}
	pooled := input.MeanDim(3, false).MeanDim(2, false) // [B, C]
	return e.proj.Forward(pooled)
}

// Parameters returns the projection weight and bias.
func (e *PooledImageEncoder[B]) Parameters() []*Parameter[B] {
	return e.proj.Parameters()
}
