package nn

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// RefinementConfig holds the loss hyperparameters.
type RefinementConfig struct {
	// LambdaRefine weights the match term in the total loss (default: 0.05).
	LambdaRefine float32

	// SaturationTolerance rejects batch elements with 1 - s <= tolerance.
	// float32 cosine of parallel vectors lands within a few ulps of 1, so an
	// exact s == 1 test would miss saturation (default: 1e-6).
	SaturationTolerance float64
}

// DefaultRefinementConfig returns the default loss configuration.
func DefaultRefinementConfig() RefinementConfig {
	return RefinementConfig{
		LambdaRefine:        0.05,
		SaturationTolerance: 1e-6,
	}
}

// RefinementOption configures optional RefinementLoss behaviour.
type RefinementOption func(*refinementOptions)

type refinementOptions struct {
	logger *zap.Logger
}

// WithLogger logs every forward pass at debug level.
func WithLogger(logger *zap.Logger) RefinementOption {
	return func(o *refinementOptions) { o.logger = logger }
}

// RefinementOutput is the result of a RefinementLoss forward pass.
type RefinementOutput[B tensor.Backend] struct {
	Loss       *tensor.Tensor[float32, B] // refinement + lambda * matching, shape []
	Mask       *tensor.Tensor[float32, B] // generate_mask(images)
	Foreground *tensor.Tensor[float32, B] // mask * images, same shape as images
	Refinement *tensor.Tensor[float32, B] // mean(-log(1 - s)), shape []
	Matching   *tensor.Tensor[float32, B] // match loss, shape []
	Similarity *tensor.Tensor[float32, B] // s, shape [batch]
}

// RefinementLoss pushes the masked foreground away from a background prompt.
//
//	mask        = generate_mask(X)
//	foreground  = mask * X
//	s_i         = cos(encode_image(foreground)_i, encode_text(P)_i)
//	refinement  = mean_i(-log(1 - s_i))
//	total       = refinement + lambda_refine * match_loss
//
// The refinement term is 0 when the foreground is orthogonal to the
// background prompt and grows without bound as s approaches 1. The match
// loss is injected; RefinementLoss has no default for it.
//
// RefinementLoss holds no mutable state. Calling Forward concurrently is safe
// only if the collaborators and the backend are.
//
// Example:
//
//	loss, err := nn.NewRefinementLoss(nn.DefaultRefinementConfig(),
//	    imageEncoder, textEncoder, maskHead, nn.CosineMatch[B]{})
//	out, err := loss.Forward(images, background, text)
//	grads := autodiff.Backward(out.Loss, backend)
type RefinementLoss[B tensor.Backend] struct {
	cfg           RefinementConfig
	imageEncoder  Encoder[B]
	textEncoder   Encoder[B]
	maskGenerator Encoder[B]
	match         MatchLoss[B]
	logger        *zap.Logger
}

// NewRefinementLoss creates a RefinementLoss.
//
// Returns ErrMatchLossUndefined if match is nil, ErrMissingComponent if any
// encoder or the mask generator is nil, and an error for a negative or NaN
// LambdaRefine. A zero SaturationTolerance is replaced by the default; a
// negative one is rejected.
func NewRefinementLoss[B tensor.Backend](
	cfg RefinementConfig,
	imageEncoder, textEncoder, maskGenerator Encoder[B],
	match MatchLoss[B],
	opts ...RefinementOption,
) (*RefinementLoss[B], error) {
	if match == nil {
		return nil, ErrMatchLossUndefined
	}
	switch {
	case imageEncoder == nil:
		return nil, fmt.Errorf("%w: image encoder", ErrMissingComponent)
	case textEncoder == nil:
		return nil, fmt.Errorf("%w: text encoder", ErrMissingComponent)
	case maskGenerator == nil:
		return nil, fmt.Errorf("%w: mask generator", ErrMissingComponent)
	}

	lambda := float64(cfg.LambdaRefine)
	if math.IsNaN(lambda) || lambda < 0 || math.IsInf(lambda, 0) {
		return nil, fmt.Errorf("refinement loss: lambda_refine must be finite and non-negative, got %v", cfg.LambdaRefine)
	}
	if cfg.SaturationTolerance < 0 || math.IsNaN(cfg.SaturationTolerance) {
		return nil, fmt.Errorf("refinement loss: saturation tolerance must be non-negative, got %v", cfg.SaturationTolerance)
	}
	if cfg.SaturationTolerance == 0 {
		cfg.SaturationTolerance = DefaultRefinementConfig().SaturationTolerance
	}

	o := refinementOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &RefinementLoss[B]{
		cfg:           cfg,
		imageEncoder:  imageEncoder,
		textEncoder:   textEncoder,
		maskGenerator: maskGenerator,
		match:         match,
		logger:        o.logger,
	}, nil
}

// Config returns the loss configuration.
func (r *RefinementLoss[B]) Config() RefinementConfig {
	return r.cfg
}

// Forward computes the total loss for one batch.
//
// Parameters:
//   - images: [batch, channels, height, width]
//   - background: background prompt embeddings [batch, prompt_dim]
//   - text: text prompt embeddings [batch, prompt_dim]
//
// Errors are *ShapeError (ErrShapeMismatch), *DomainError (ErrNumericDomain)
// or whatever the match loss returns. No partial output is returned on error.
func (r *RefinementLoss[B]) Forward(images, background, text *tensor.Tensor[float32, B]) (*RefinementOutput[B], error) {
	const op = "refinement_loss"

	if err := validateInputs(images, background, text); err != nil {
		return nil, err
	}

	mask := r.maskGenerator.Forward(images)
	if err := validateMask(mask.Shape(), images.Shape()); err != nil {
		return nil, err
	}
	foreground := mask.Mul(images)

	vForeground := r.imageEncoder.Forward(foreground)
	uBackground := r.textEncoder.Forward(background)
	if err := validateEmbeddings(vForeground.Shape(), uBackground.Shape(), images.Shape()[0]); err != nil {
		return nil, err
	}

	s, err := CosineSimilarity(vForeground, uBackground)
	if err != nil {
		return nil, err
	}
	for i, v := range s.Data() {
		// NaN counts as saturated.
		if !(1-float64(v) > r.cfg.SaturationTolerance) {
			return nil, &DomainError{
				Op:      op,
				Index:   i,
				Value:   float64(v),
				Details: "foreground embedding parallel to background prompt, -log(1 - s) is unbounded",
			}
		}
	}

	batch := float64(s.Shape()[0])
	refinement := s.MulScalar(-1).AddScalar(1).Log().Sum().MulScalar(-1 / batch)

	uText := r.textEncoder.Forward(text)
	matching, err := r.match.Forward(MatchInput[B]{
		Mask:                mask,
		Foreground:          foreground,
		ForegroundEmbedding: vForeground,
		BackgroundEmbedding: uBackground,
		TextPrompt:          text,
		TextEmbedding:       uText,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: match loss: %w", op, err)
	}
	if matching == nil || matching.NumElements() != 1 {
		var got tensor.Shape
		if matching != nil {
			got = matching.Shape()
		}
		return nil, &ShapeError{Op: op, Operand: "match_loss", Got: got, Want: tensor.Shape{}, Details: "match loss must be a scalar"}
	}
	if len(matching.Shape()) != 0 {
		matching = matching.Reshape()
	}

	total := refinement.Add(matching.MulScalar(float64(r.cfg.LambdaRefine)))

	if ce := r.logger.Check(zap.DebugLevel, "refinement forward"); ce != nil {
		ce.Write(
			zap.Int("batch", int(batch)),
			zap.Float32("refinement", refinement.Item()),
			zap.Float32("matching", matching.Item()),
			zap.Float32("total", total.Item()),
		)
	}

	return &RefinementOutput[B]{
		Loss:       total,
		Mask:       mask,
		Foreground: foreground,
		Refinement: refinement,
		Matching:   matching,
		Similarity: s,
	}, nil
}

func validateInputs[B tensor.Backend](images, background, text *tensor.Tensor[float32, B]) error {
	const op = "refinement_loss"

	x := images.Shape()
	if len(x) != 4 {
		return &ShapeError{Op: op, Operand: "images", Got: x, Details: "expected rank 4 [batch, channels, height, width]"}
	}
	prompts := []struct {
		name  string
		shape tensor.Shape
	}{
		{"background_prompt", background.Shape()},
		{"text_prompt", text.Shape()},
	}
	for _, p := range prompts {
		if len(p.shape) != 2 {
			return &ShapeError{Op: op, Operand: p.name, Got: p.shape, Details: "expected rank 2 [batch, prompt_dim]"}
		}
		if p.shape[0] != x[0] {
			return &ShapeError{Op: op, Operand: p.name, Got: p.shape, Details: fmt.Sprintf("batch %d, images have batch %d", p.shape[0], x[0])}
		}
	}
	if !background.Shape().Equal(text.Shape()) {
		return &ShapeError{Op: op, Operand: "text_prompt", Got: text.Shape(), Want: background.Shape(), Details: "prompt_dim differs from background prompt"}
	}
	return nil
}

func validateMask(mask, images tensor.Shape) error {
	const op = "refinement_loss"

	if len(mask) != 4 {
		return &ShapeError{Op: op, Operand: "mask", Got: mask, Details: "expected rank 4"}
	}
	if mask[0] != images[0] {
		return &ShapeError{Op: op, Operand: "mask", Got: mask, Details: fmt.Sprintf("batch %d, images have batch %d", mask[0], images[0])}
	}
	out, _, err := tensor.BroadcastShapes(mask, images)
	if err != nil || !out.Equal(images) {
		return &ShapeError{Op: op, Operand: "mask", Got: mask, Want: images, Details: "mask must broadcast to the image shape"}
	}
	return nil
}

func validateEmbeddings(foreground, background tensor.Shape, batch int) error {
	const op = "refinement_loss"

	if len(foreground) != 2 || foreground[0] != batch {
		return &ShapeError{Op: op, Operand: "foreground_embedding", Got: foreground, Details: fmt.Sprintf("expected [%d, embedding_dim]", batch)}
	}
	if !foreground.Equal(background) {
		return &ShapeError{Op: op, Operand: "background_embedding", Got: background, Want: foreground}
	}
	return nil
}
