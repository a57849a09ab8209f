package prompt

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// TikToken wraps the pkoukk/tiktoken-go library for OpenAI tokenizers.
//
// Supported encodings:
//   - cl100k_base: GPT-4, GPT-3.5-turbo, text-embedding-ada-002
//   - p50k_base: GPT-3, Codex
//   - r50k_base: GPT-3, davinci-002, babbage-002
//
// The BPE ranks are downloaded on first use and cached by tiktoken-go
// (see TIKTOKEN_CACHE_DIR).
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a new TikToken tokenizer with the specified encoding.
// An empty name selects DefaultEncoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &TikToken{
		encoding: encoding,
		name:     encodingName,
	}, nil
}

// Encode converts text to token IDs. Special tokens are treated as text.
func (t *TikToken) Encode(text string) ([]int32, error) {
	tokens := t.encoding.Encode(text, nil, nil)

	result := make([]int32, len(tokens))
	for i, tok := range tokens {
		result[i] = int32(tok) //nolint:gosec // G115: Token ID fits in int32 - vocab size < 2^31.
	}
	return result, nil
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []int32) string {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = int(tok)
	}
	return t.encoding.Decode(ids)
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}
