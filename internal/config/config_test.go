package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
debug: true
loss:
  lambda_refine: 0.2
  match: zero
train:
  steps: 7
  optimizer: adam
prompt:
  tokenizer: tiktoken
  background: "grass"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, float32(0.2), cfg.Loss.Lambda())
	assert.Equal(t, MatchZero, cfg.Loss.Match)
	assert.Equal(t, 7, cfg.Train.Steps)
	assert.Equal(t, OptimizerAdam, cfg.Train.Optimizer)
	assert.Equal(t, "tiktoken", cfg.Prompt.Tokenizer)
	assert.Equal(t, "grass", cfg.Prompt.Background)

	// Unset fields take defaults.
	assert.Equal(t, 1e-6, cfg.Loss.SaturationTolerance)
	assert.Equal(t, 4, cfg.Train.BatchSize)
	assert.Equal(t, 16, cfg.Prompt.Dim)
}

func TestLoadExplicitZeroLambda(t *testing.T) {
	cfg, err := Load(writeConfig(t, "loss:\n  lambda_refine: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, float32(0), cfg.Loss.Lambda())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.05), cfg.Loss.Lambda())
	assert.Equal(t, MatchCosine, cfg.Loss.Match)
	assert.Equal(t, OptimizerSGD, cfg.Train.Optimizer)
	assert.False(t, cfg.Debug)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "loss: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative lambda", func(c *Config) { v := float32(-1); c.Loss.LambdaRefine = &v }},
		{"negative tolerance", func(c *Config) { c.Loss.SaturationTolerance = -1 }},
		{"unknown match", func(c *Config) { c.Loss.Match = "l2" }},
		{"negative channels", func(c *Config) { c.Model.Channels = -3 }},
		{"negative steps", func(c *Config) { c.Train.Steps = -1 }},
		{"unknown optimizer", func(c *Config) { c.Train.Optimizer = "lbfgs" }},
		{"momentum one", func(c *Config) { c.Train.Momentum = 1 }},
		{"negative lr", func(c *Config) { c.Train.LR = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Train.Steps = 3

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
