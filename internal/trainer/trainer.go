// Package trainer runs the mask refinement training loop: forward pass on a
// recording autodiff tape, backward pass, optimizer step.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/born-ml/maskrefine/internal/autodiff"
	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/optim"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Config holds loop settings.
type Config struct {
	Steps    int // Number of steps Run performs
	LogEvery int // Info-level progress every LogEvery steps (0 disables)
}

// Batch is one training batch.
type Batch[B tensor.Backend] struct {
	Images     *tensor.Tensor[float32, B] // [batch, channels, height, width]
	Background *tensor.Tensor[float32, B] // [batch, prompt_dim]
	Text       *tensor.Tensor[float32, B] // [batch, prompt_dim]
}

// BatchSource returns the batch for a step.
type BatchSource[B tensor.Backend] func(step int) (Batch[B], error)

// StepResult summarizes one completed step.
type StepResult struct {
	Step           int
	Loss           float32
	Refinement     float32
	Matching       float32
	MeanSimilarity float32
	GradNorm       float64 // L2 norm over all parameter gradients
}

// Trainer owns the loop state. It is not safe for concurrent use: the
// autodiff tape belongs to the backend.
type Trainer[B autodiff.BackwardCapable] struct {
	cfg       Config
	loss      *nn.RefinementLoss[B]
	params    []*nn.Parameter[B]
	optimizer optim.Optimizer
	backend   B
	logger    *zap.Logger
	step      int
}

// New creates a Trainer. A nil logger disables logging.
func New[B autodiff.BackwardCapable](
	cfg Config,
	loss *nn.RefinementLoss[B],
	params []*nn.Parameter[B],
	optimizer optim.Optimizer,
	backend B,
	logger *zap.Logger,
) (*Trainer[B], error) {
	if loss == nil {
		return nil, errors.New("trainer: loss is nil")
	}
	if optimizer == nil {
		return nil, errors.New("trainer: optimizer is nil")
	}
	if cfg.Steps < 0 {
		return nil, fmt.Errorf("trainer: steps must be >= 0, got %d", cfg.Steps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Trainer[B]{
		cfg:       cfg,
		loss:      loss,
		params:    params,
		optimizer: optimizer,
		backend:   backend,
		logger:    logger,
	}, nil
}

// Steps returns the number of completed steps.
func (t *Trainer[B]) Steps() int {
	return t.step
}

// Step runs one forward/backward/update cycle.
//
// On error the parameters are left untouched and the step counter does not
// advance.
func (t *Trainer[B]) Step(ctx context.Context, batch Batch[B]) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	out, err := t.loss.Forward(batch.Images, batch.Background, batch.Text)
	if err != nil {
		return StepResult{}, err
	}

	grads := autodiff.Backward(out.Loss, t.backend)
	tape.StopRecording()

	gradNorm := t.gradNorm(grads)
	t.optimizer.Step(grads)
	t.optimizer.ZeroGrad()

	result := StepResult{
		Step:           t.step,
		Loss:           out.Loss.Item(),
		Refinement:     out.Refinement.Item(),
		Matching:       out.Matching.Item(),
		MeanSimilarity: mean(out.Similarity.Data()),
		GradNorm:       gradNorm,
	}
	t.step++

	t.logger.Debug("step",
		zap.Int("step", result.Step),
		zap.Float32("loss", result.Loss),
		zap.Float32("refinement", result.Refinement),
		zap.Float32("matching", result.Matching),
		zap.Float32("mean_similarity", result.MeanSimilarity),
		zap.Float64("grad_norm", result.GradNorm),
		zap.Int("tape_ops", tape.NumOps()),
	)
	if t.cfg.LogEvery > 0 && result.Step%t.cfg.LogEvery == 0 {
		t.logger.Info("training progress",
			zap.Int("step", result.Step),
			zap.Float32("loss", result.Loss),
			zap.Float32("mean_similarity", result.MeanSimilarity),
			zap.Float32("lr", t.optimizer.GetLR()),
		)
	}
	return result, nil
}

// Run performs cfg.Steps steps, pulling each batch from next.
//
// ctx is checked between steps. Run stops at the first error and returns
// the results of the steps completed before it.
func (t *Trainer[B]) Run(ctx context.Context, next BatchSource[B]) ([]StepResult, error) {
	results := make([]StepResult, 0, t.cfg.Steps)
	for i := 0; i < t.cfg.Steps; i++ {
		if err := ctx.Err(); err != nil {
			t.logger.Warn("training cancelled", zap.Int("completed_steps", i), zap.Error(err))
			return results, err
		}

		batch, err := next(i)
		if err != nil {
			return results, fmt.Errorf("step %d: batch: %w", i, err)
		}
		res, err := t.Step(ctx, batch)
		if err != nil {
			t.logger.Error("step failed", zap.Int("step", i), zap.Error(err))
			return results, fmt.Errorf("step %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (t *Trainer[B]) gradNorm(grads map[*tensor.RawTensor]*tensor.RawTensor) float64 {
	var sum float64
	for _, p := range t.params {
		g, ok := grads[p.Tensor().Raw()]
		if !ok {
			continue
		}
		for _, v := range g.AsFloat32() {
			sum += float64(v) * float64(v)
		}
	}
	return math.Sqrt(sum)
}

func mean(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return float32(sum / float64(len(values)))
}
