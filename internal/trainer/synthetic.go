package trainer

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// SyntheticConfig describes generated image batches.
type SyntheticConfig struct {
	BatchSize int
	Channels  int
	Height    int
	Width     int
	Noise     float32 // Background noise amplitude (default: 0.2)
}

// Synthetic returns a BatchSource of images with one bright rectangle on a
// noisy background. background and text are reused for every batch and
// must have BatchSize rows.
//
// Batches are drawn from rng in step order, so a fixed seed reproduces a run.
func Synthetic[B tensor.Backend](
	cfg SyntheticConfig,
	rng *rand.Rand,
	background, text *tensor.Tensor[float32, B],
	backend B,
) (BatchSource[B], error) {
	if cfg.BatchSize <= 0 || cfg.Channels <= 0 || cfg.Height <= 0 || cfg.Width <= 0 {
		return nil, fmt.Errorf("trainer: synthetic dimensions must be positive, got %+v", cfg)
	}
	for i, p := range []*tensor.Tensor[float32, B]{background, text} {
		if p == nil {
			return nil, fmt.Errorf("trainer: prompt %d is nil", i)
		}
		if s := p.Shape(); len(s) != 2 || s[0] != cfg.BatchSize {
			return nil, fmt.Errorf("trainer: prompt %d has shape %v, want [%d, dim]", i, s, cfg.BatchSize)
		}
	}
	if cfg.Noise == 0 {
		cfg.Noise = 0.2
	}

	return func(int) (Batch[B], error) {
		images := tensor.RandFrom[float32](tensor.Shape{cfg.BatchSize, cfg.Channels, cfg.Height, cfg.Width}, rng, backend)
		data := images.Data()
		for i := range data {
			data[i] *= cfg.Noise
		}

		plane := cfg.Height * cfg.Width
		for b := 0; b < cfg.BatchSize; b++ {
			y0, x0 := rng.Intn(cfg.Height), rng.Intn(cfg.Width)
			y1 := y0 + 1 + rng.Intn(cfg.Height-y0)
			x1 := x0 + 1 + rng.Intn(cfg.Width-x0)
			for c := 0; c < cfg.Channels; c++ {
				base := (b*cfg.Channels + c) * plane
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						data[base+y*cfg.Width+x] = 1
					}
				}
			}
		}

		return Batch[B]{Images: images, Background: background, Text: text}, nil
	}, nil
}
