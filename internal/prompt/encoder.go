package prompt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// EncoderConfig holds configuration for Encoder.
type EncoderConfig struct {
	Buckets int   // Rows of the embedding table (default: 4096)
	Dim     int   // Embedding width, i.e. prompt_dim (default: 16)
	Seed    int64 // Seed for the embedding table
}

// Encoder maps prompt text to a fixed-width embedding.
//
// Each token id selects row id % Buckets of a seeded table of unit-norm
// Gaussian vectors; the prompt embedding is the mean of its rows. Equal
// text, tokenizer and config always give the same embedding.
type Encoder struct {
	tokenizer Tokenizer
	dim       int
	table     [][]float32 // [buckets][dim]
}

// NewEncoder creates an Encoder. Zero Buckets or Dim take their defaults.
func NewEncoder(tok Tokenizer, cfg EncoderConfig) (*Encoder, error) {
	if tok == nil {
		return nil, fmt.Errorf("prompt: tokenizer is nil")
	}
	if cfg.Buckets == 0 {
		cfg.Buckets = 4096
	}
	if cfg.Dim == 0 {
		cfg.Dim = 16
	}
	if cfg.Buckets < 0 || cfg.Dim < 0 {
		return nil, fmt.Errorf("prompt: buckets and dim must be positive, got %d and %d", cfg.Buckets, cfg.Dim)
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // G404: reproducible table, not security
	table := make([][]float32, cfg.Buckets)
	for i := range table {
		row := make([]float32, cfg.Dim)
		var norm float64
		for j := range row {
			v := rng.NormFloat64()
			row[j] = float32(v)
			norm += v * v
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range row {
				row[j] *= scale
			}
		}
		table[i] = row
	}

	return &Encoder{
		tokenizer: tok,
		dim:       cfg.Dim,
		table:     table,
	}, nil
}

// Dim returns the embedding width.
func (e *Encoder) Dim() int {
	return e.dim
}

// Tokenizer returns the underlying tokenizer.
func (e *Encoder) Tokenizer() Tokenizer {
	return e.tokenizer
}

// Embed returns the mean-pooled embedding of text.
func (e *Encoder) Embed(text string) ([]float32, error) {
	ids, err := e.tokenizer.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("prompt: tokenize %q: %w", text, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyPrompt, text)
	}

	out := make([]float32, e.dim)
	for _, id := range ids {
		row := e.table[int(uint32(id))%len(e.table)] //nolint:gosec // G115: ids are non-negative
		for j, v := range row {
			out[j] += v
		}
	}
	inv := 1 / float32(len(ids))
	for j := range out {
		out[j] *= inv
	}
	return out, nil
}

// Encode embeds every text and stacks the results into a [len(texts), dim] tensor.
func Encode[B tensor.Backend](e *Encoder, texts []string, backend B) (*tensor.Tensor[float32, B], error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("prompt: no texts to encode")
	}

	data := make([]float32, 0, len(texts)*e.dim)
	for _, text := range texts {
		v, err := e.Embed(text)
		if err != nil {
			return nil, err
		}
		data = append(data, v...)
	}
	return tensor.FromSlice(data, tensor.Shape{len(texts), e.dim}, backend)
}

// Repeat returns a batch of n copies of text.
func Repeat(text string, n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = text
	}
	return texts
}
