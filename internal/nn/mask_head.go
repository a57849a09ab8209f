package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// PixelMaskHead predicts a soft foreground mask from an image batch.
//
// Every pixel's channel vector goes through the same Linear(channels, 1)
// projection followed by a sigmoid, i.e. a 1x1 convolution:
//
//	[B, C, H, W] -> [B, H, W, C] -> [B*H*W, C] -> Linear -> [B*H*W, 1] -> [B, 1, H, W]
//
// The single-channel mask broadcasts over the image channels.
type PixelMaskHead[B tensor.Backend] struct {
	channels int
	proj     *Linear[B]
	act      *Sigmoid[B]
}

// NewPixelMaskHead creates a mask head for images with the given channel count.
// A nil rng uses the global math/rand source.
func NewPixelMaskHead[B tensor.Backend](channels int, rng *rand.Rand, backend B) *PixelMaskHead[B] {
	proj := NewLinear(channels, 1, backend, WithRand(rng))
	prefixed("mask_head", proj.Parameters())
	return &PixelMaskHead[B]{
		channels: channels,
		proj:     proj,
		act:      NewSigmoid[B](),
	}
}

// Forward returns mask values in (0, 1) with shape [batch, 1, height, width].
//
// Panics if input is not [batch, channels, height, width].
func (m *PixelMaskHead[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != m.channels {
		panic(fmt.Sprintf("PixelMaskHead.Forward: expected [batch, %d, height, width], got %v", m.channels, shape))
	}
	batch, height, width := shape[0], shape[2], shape[3]

	pixels := input.Transpose(0, 2, 3, 1).Reshape(batch*height*width, m.channels)
	logits := m.proj.Forward(pixels).
		Reshape(batch, height, width, 1).
		Transpose(0, 3, 1, 2)
	return m.act.Forward(logits)
}

// Parameters returns the projection weight and bias.
func (m *PixelMaskHead[B]) Parameters() []*Parameter[B] {
	return m.proj.Parameters()
}
