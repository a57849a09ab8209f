// Package config provides configuration loading for the maskrefine CLI.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// Match loss names.
const (
	MatchZero   = "zero"
	MatchCosine = "cosine"
)

// Optimizer names.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Config holds all configuration for a refinement training run.
type Config struct {
	Debug  bool         `yaml:"debug"`
	Loss   LossConfig   `yaml:"loss"`
	Model  ModelConfig  `yaml:"model"`
	Train  TrainConfig  `yaml:"train"`
	Prompt PromptConfig `yaml:"prompt"`
}

// LossConfig holds refinement loss settings.
type LossConfig struct {
	// LambdaRefine weights the match term; nil means the default 0.05.
	// A pointer so that an explicit 0 (refinement term only) survives defaults.
	LambdaRefine        *float32 `yaml:"lambda_refine"`
	SaturationTolerance float64  `yaml:"saturation_tolerance"`
	Match               string   `yaml:"match"`
}

// Lambda returns LambdaRefine or its default.
func (l *LossConfig) Lambda() float32 {
	if l.LambdaRefine != nil {
		return *l.LambdaRefine
	}
	return defaultLambdaRefine
}

// ModelConfig holds the synthetic image shape and encoder width.
type ModelConfig struct {
	Channels int `yaml:"channels"`
	Height   int `yaml:"height"`
	Width    int `yaml:"width"`
	EmbedDim int `yaml:"embed_dim"`
}

// TrainConfig holds optimizer and loop settings.
type TrainConfig struct {
	Steps     int     `yaml:"steps"`
	BatchSize int     `yaml:"batch_size"`
	Optimizer string  `yaml:"optimizer"`
	LR        float32 `yaml:"lr"`
	Momentum  float32 `yaml:"momentum"`
	Seed      int64   `yaml:"seed"`
	LogEvery  int     `yaml:"log_every"`
}

// PromptConfig holds prompt tokenization and embedding settings.
type PromptConfig struct {
	Tokenizer  string `yaml:"tokenizer"`
	Encoding   string `yaml:"encoding"`
	Background string `yaml:"background"`
	Text       string `yaml:"text"`
	Buckets    int    `yaml:"buckets"`
	Dim        int    `yaml:"dim"`
	Seed       int64  `yaml:"seed"`
}

// Load reads and parses the config file at path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks ranges and enumerations. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	lambda := float64(c.Loss.Lambda())
	switch {
	case math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0:
		return invalid("loss.lambda_refine must be finite and >= 0, got %v", lambda)
	case c.Loss.SaturationTolerance < 0:
		return invalid("loss.saturation_tolerance must be >= 0, got %v", c.Loss.SaturationTolerance)
	case c.Loss.Match != MatchZero && c.Loss.Match != MatchCosine:
		return invalid("loss.match must be %q or %q, got %q", MatchZero, MatchCosine, c.Loss.Match)
	case c.Model.Channels <= 0 || c.Model.Height <= 0 || c.Model.Width <= 0 || c.Model.EmbedDim <= 0:
		return invalid("model dimensions must be positive, got %+v", c.Model)
	case c.Train.Steps <= 0:
		return invalid("train.steps must be positive, got %d", c.Train.Steps)
	case c.Train.BatchSize <= 0:
		return invalid("train.batch_size must be positive, got %d", c.Train.BatchSize)
	case c.Train.Optimizer != OptimizerSGD && c.Train.Optimizer != OptimizerAdam:
		return invalid("train.optimizer must be %q or %q, got %q", OptimizerSGD, OptimizerAdam, c.Train.Optimizer)
	case c.Train.LR <= 0:
		return invalid("train.lr must be positive, got %v", c.Train.LR)
	case c.Train.Momentum < 0 || c.Train.Momentum >= 1:
		return invalid("train.momentum must be in [0, 1), got %v", c.Train.Momentum)
	case c.Prompt.Background == "" || c.Prompt.Text == "":
		return invalid("prompt.background and prompt.text are required")
	case c.Prompt.Dim <= 0 || c.Prompt.Buckets <= 0:
		return invalid("prompt.dim and prompt.buckets must be positive")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
