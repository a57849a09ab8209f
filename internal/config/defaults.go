package config

const defaultLambdaRefine float32 = 0.05

// Default returns a config with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Loss.LambdaRefine == nil {
		lambda := defaultLambdaRefine
		cfg.Loss.LambdaRefine = &lambda
	}
	if cfg.Loss.SaturationTolerance == 0 {
		cfg.Loss.SaturationTolerance = 1e-6
	}
	if cfg.Loss.Match == "" {
		cfg.Loss.Match = MatchCosine
	}
	if cfg.Model.Channels == 0 {
		cfg.Model.Channels = 3
	}
	if cfg.Model.Height == 0 {
		cfg.Model.Height = 8
	}
	if cfg.Model.Width == 0 {
		cfg.Model.Width = 8
	}
	if cfg.Model.EmbedDim == 0 {
		cfg.Model.EmbedDim = 8
	}
	if cfg.Train.Steps == 0 {
		cfg.Train.Steps = 50
	}
	if cfg.Train.BatchSize == 0 {
		cfg.Train.BatchSize = 4
	}
	if cfg.Train.Optimizer == "" {
		cfg.Train.Optimizer = OptimizerSGD
	}
	if cfg.Train.LR == 0 {
		cfg.Train.LR = 0.05
	}
	if cfg.Train.Seed == 0 {
		cfg.Train.Seed = 1
	}
	if cfg.Train.LogEvery == 0 {
		cfg.Train.LogEvery = 10
	}
	if cfg.Prompt.Tokenizer == "" {
		cfg.Prompt.Tokenizer = "word"
	}
	if cfg.Prompt.Encoding == "" {
		cfg.Prompt.Encoding = "cl100k_base"
	}
	if cfg.Prompt.Background == "" {
		cfg.Prompt.Background = "blurry background, sky, wall, floor"
	}
	if cfg.Prompt.Text == "" {
		cfg.Prompt.Text = "a photo of the main object"
	}
	if cfg.Prompt.Buckets == 0 {
		cfg.Prompt.Buckets = 4096
	}
	if cfg.Prompt.Dim == 0 {
		cfg.Prompt.Dim = 16
	}
}
