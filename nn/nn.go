// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the refinement loss and its building blocks.
//
// RefinementLoss combines an injected match loss with a term that pushes
// the masked foreground's image embedding away from a background prompt:
//
//	total = mean(-log(1 - cos(encode_image(mask * X), encode_text(P)))) + lambda * match
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	head := nn.NewPixelMaskHead(3, nil, backend)
//	imageEnc := nn.NewPooledImageEncoder(3, 8, nil, backend)
//	textEnc := nn.NewLinear(16, 8, backend)
//
//	loss, err := nn.NewRefinementLoss(nn.DefaultRefinementConfig(),
//	    imageEnc, textEnc, head, nn.CosineMatch[B]{})
//	out, err := loss.Forward(images, background, text)
package nn

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Errors returned by the refinement loss.
var (
	ErrShapeMismatch      = nn.ErrShapeMismatch
	ErrNumericDomain      = nn.ErrNumericDomain
	ErrMatchLossUndefined = nn.ErrMatchLossUndefined
	ErrMissingComponent   = nn.ErrMissingComponent
)

// ShapeError describes an operand with an incompatible shape.
type ShapeError = nn.ShapeError

// DomainError describes a value outside the domain of cosine or log.
type DomainError = nn.DomainError

// Encoder maps one tensor to another.
type Encoder[B tensor.Backend] = nn.Encoder[B]

// EncoderFunc adapts a function to Encoder.
type EncoderFunc[B tensor.Backend] = nn.EncoderFunc[B]

// Module is an Encoder with trainable parameters.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// LinearOption configures a Linear layer.
type LinearOption = nn.LinearOption

// Sigmoid is the logistic activation module.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// PixelMaskHead predicts a [batch, 1, H, W] soft mask.
type PixelMaskHead[B tensor.Backend] = nn.PixelMaskHead[B]

// PooledImageEncoder embeds images by average pooling and a projection.
type PooledImageEncoder[B tensor.Backend] = nn.PooledImageEncoder[B]

// RefinementConfig holds the loss hyperparameters.
type RefinementConfig = nn.RefinementConfig

// RefinementOption configures optional loss behaviour.
type RefinementOption = nn.RefinementOption

// RefinementLoss is the background-repulsion loss.
type RefinementLoss[B tensor.Backend] = nn.RefinementLoss[B]

// RefinementOutput is the result of a forward pass.
type RefinementOutput[B tensor.Backend] = nn.RefinementOutput[B]

// MatchInput carries the tensors a match loss may consume.
type MatchInput[B tensor.Backend] = nn.MatchInput[B]

// MatchLoss is the injected primary loss term.
type MatchLoss[B tensor.Backend] = nn.MatchLoss[B]

// MatchFunc adapts a function to MatchLoss.
type MatchFunc[B tensor.Backend] = nn.MatchFunc[B]

// ZeroMatch is a placeholder match loss returning 0.
type ZeroMatch[B tensor.Backend] = nn.ZeroMatch[B]

// CosineMatch is a placeholder match loss: mean(1 - cos(foreground, text)).
type CosineMatch[B tensor.Backend] = nn.CosineMatch[B]

// NewRefinementLoss creates a RefinementLoss.
//
// Returns ErrMatchLossUndefined when match is nil and ErrMissingComponent
// when an encoder or the mask generator is nil.
func NewRefinementLoss[B tensor.Backend](
	cfg RefinementConfig,
	imageEncoder, textEncoder, maskGenerator Encoder[B],
	match MatchLoss[B],
	opts ...RefinementOption,
) (*RefinementLoss[B], error) {
	return nn.NewRefinementLoss(cfg, imageEncoder, textEncoder, maskGenerator, match, opts...)
}

// DefaultRefinementConfig returns LambdaRefine 0.05 and SaturationTolerance 1e-6.
func DefaultRefinementConfig() RefinementConfig {
	return nn.DefaultRefinementConfig()
}

// WithLogger logs every forward pass at debug level.
func WithLogger(logger *zap.Logger) RefinementOption {
	return nn.WithLogger(logger)
}

// CosineSimilarity computes row-wise cosine similarity of two [batch, dim] tensors.
func CosineSimilarity[B tensor.Backend](a, b *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return nn.CosineSimilarity(a, b)
}

// NewLinear creates a Linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B, opts ...LinearOption) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend, opts...)
}

// WithRand draws initial weights from rng.
func WithRand(rng *rand.Rand) LinearOption {
	return nn.WithRand(rng)
}

// WithoutBias disables the bias term.
func WithoutBias() LinearOption {
	return nn.WithoutBias()
}

// NewSigmoid creates a Sigmoid module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return nn.NewSigmoid[B]()
}

// NewPixelMaskHead creates a per-pixel mask head.
func NewPixelMaskHead[B tensor.Backend](channels int, rng *rand.Rand, backend B) *PixelMaskHead[B] {
	return nn.NewPixelMaskHead(channels, rng, backend)
}

// NewPooledImageEncoder creates a pooled image encoder.
func NewPooledImageEncoder[B tensor.Backend](channels, embedDim int, rng *rand.Rand, backend B) *PooledImageEncoder[B] {
	return nn.NewPooledImageEncoder(channels, embedDim, rng, backend)
}

// NewParameter creates a trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}
