package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/maskrefine/internal/autodiff"
	"github.com/born-ml/maskrefine/internal/backend/cpu"
	"github.com/born-ml/maskrefine/internal/config"
	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/optim"
	"github.com/born-ml/maskrefine/internal/prompt"
	"github.com/born-ml/maskrefine/internal/trainer"
)

type trainBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type trainFlags struct {
	configPath string
	steps      int
	seed       int64
	debug      bool
}

func newTrainCmd() *cobra.Command {
	var flags trainFlags

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a mask head on synthetic images",
		Long: `Train a per-pixel mask head, an image encoder and a text projection with the
refinement loss on synthetic images (one bright rectangle on noise).

Settings come from --config when given, otherwise from the built-in defaults.
--steps, --seed and --debug override the corresponding config values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Debug)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runTraining(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().IntVar(&flags.steps, "steps", 0, "number of training steps")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "random seed for weights and batches")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	return cmd
}

func loadConfig(cmd *cobra.Command, flags trainFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("steps") {
		cfg.Train.Steps = flags.steps
	}
	if cmd.Flags().Changed("seed") {
		cfg.Train.Seed = flags.seed
	}
	if flags.debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runTraining builds the model from cfg, trains it and writes a summary to out.
func runTraining(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(cfg.Train.Seed)) //nolint:gosec // G404: reproducible training runs

	tok, err := prompt.NewTokenizer(cfg.Prompt.Tokenizer, cfg.Prompt.Encoding)
	if err != nil {
		return err
	}
	enc, err := prompt.NewEncoder(tok, prompt.EncoderConfig{
		Buckets: cfg.Prompt.Buckets,
		Dim:     cfg.Prompt.Dim,
		Seed:    cfg.Prompt.Seed,
	})
	if err != nil {
		return err
	}
	background, err := prompt.Encode(enc, prompt.Repeat(cfg.Prompt.Background, cfg.Train.BatchSize), backend)
	if err != nil {
		return fmt.Errorf("background prompt: %w", err)
	}
	text, err := prompt.Encode(enc, prompt.Repeat(cfg.Prompt.Text, cfg.Train.BatchSize), backend)
	if err != nil {
		return fmt.Errorf("text prompt: %w", err)
	}

	m := cfg.Model
	head := nn.NewPixelMaskHead(m.Channels, rng, backend)
	imageEnc := nn.NewPooledImageEncoder(m.Channels, m.EmbedDim, rng, backend)
	textEnc := nn.NewLinear(cfg.Prompt.Dim, m.EmbedDim, backend, nn.WithRand(rng))

	var match nn.MatchLoss[trainBackend] = nn.CosineMatch[trainBackend]{}
	if cfg.Loss.Match == config.MatchZero {
		match = nn.ZeroMatch[trainBackend]{}
	}

	loss, err := nn.NewRefinementLoss[trainBackend](nn.RefinementConfig{
		LambdaRefine:        cfg.Loss.Lambda(),
		SaturationTolerance: cfg.Loss.SaturationTolerance,
	}, imageEnc, textEnc, head, match, nn.WithLogger(logger))
	if err != nil {
		return err
	}

	params := append(head.Parameters(), imageEnc.Parameters()...)
	params = append(params, textEnc.Parameters()...)

	var optimizer optim.Optimizer
	switch cfg.Train.Optimizer {
	case config.OptimizerAdam:
		optimizer = optim.NewAdam(params, optim.AdamConfig{LR: cfg.Train.LR}, backend)
	default:
		optimizer = optim.NewSGD(params, optim.SGDConfig{LR: cfg.Train.LR, Momentum: cfg.Train.Momentum}, backend)
	}

	source, err := trainer.Synthetic(trainer.SyntheticConfig{
		BatchSize: cfg.Train.BatchSize,
		Channels:  m.Channels,
		Height:    m.Height,
		Width:     m.Width,
	}, rng, background, text, backend)
	if err != nil {
		return err
	}

	tr, err := trainer.New(trainer.Config{Steps: cfg.Train.Steps, LogEvery: cfg.Train.LogEvery},
		loss, params, optimizer, backend, logger)
	if err != nil {
		return err
	}

	logger.Info("starting training",
		zap.String("tokenizer", tok.Name()),
		zap.String("match", cfg.Loss.Match),
		zap.String("optimizer", cfg.Train.Optimizer),
		zap.Int("steps", cfg.Train.Steps),
		zap.Int("params", len(params)))

	results, err := tr.Run(ctx, source)
	if len(results) > 0 {
		first, last := results[0], results[len(results)-1]
		fmt.Fprintf(out, "steps:           %d\n", len(results))
		fmt.Fprintf(out, "loss:            %.6f -> %.6f\n", first.Loss, last.Loss)
		fmt.Fprintf(out, "refinement:      %.6f -> %.6f\n", first.Refinement, last.Refinement)
		fmt.Fprintf(out, "mean similarity: %.6f -> %.6f\n", first.MeanSimilarity, last.MeanSimilarity)
	}
	return err
}
