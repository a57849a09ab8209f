// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package prompt turns text prompts into fixed-width embeddings.
//
// Two tokenizers are available: a dependency-free word tokenizer and
// OpenAI BPE encodings through tiktoken.
//
// Example:
//
//	tok, err := prompt.NewTokenizer(prompt.TokenizerWord, "")
//	enc, err := prompt.NewEncoder(tok, prompt.EncoderConfig{Dim: 16})
//	background, err := prompt.Encode(enc, prompt.Repeat("sky, wall", 4), backend)
package prompt

import (
	"github.com/born-ml/maskrefine/internal/prompt"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Tokenizer kinds accepted by NewTokenizer.
const (
	TokenizerWord     = prompt.TokenizerWord
	TokenizerTikToken = prompt.TokenizerTikToken
)

// DefaultEncoding is the tiktoken encoding used when none is given.
const DefaultEncoding = prompt.DefaultEncoding

// Errors returned by tokenizers.
var (
	ErrEmptyPrompt      = prompt.ErrEmptyPrompt
	ErrUnknownTokenizer = prompt.ErrUnknownTokenizer
)

// Tokenizer converts text to token ids.
type Tokenizer = prompt.Tokenizer

// TikToken wraps a tiktoken BPE encoding.
type TikToken = prompt.TikToken

// WordTokenizer hashes words into a fixed vocabulary.
type WordTokenizer = prompt.WordTokenizer

// Encoder maps prompt text to an embedding.
type Encoder = prompt.Encoder

// EncoderConfig holds configuration for Encoder.
type EncoderConfig = prompt.EncoderConfig

// NewTokenizer creates a tokenizer by kind.
func NewTokenizer(kind, encoding string) (Tokenizer, error) {
	return prompt.NewTokenizer(kind, encoding)
}

// NewTikToken loads a tiktoken encoding such as "cl100k_base".
func NewTikToken(encoding string) (*TikToken, error) {
	return prompt.NewTikToken(encoding)
}

// NewWordTokenizer creates a word tokenizer with vocab buckets.
func NewWordTokenizer(vocab int) *WordTokenizer {
	return prompt.NewWordTokenizer(vocab)
}

// NewEncoder creates an Encoder.
func NewEncoder(tok Tokenizer, cfg EncoderConfig) (*Encoder, error) {
	return prompt.NewEncoder(tok, cfg)
}

// Encode embeds each text as one row of a [len(texts), dim] tensor.
func Encode[B tensor.Backend](e *Encoder, texts []string, backend B) (*tensor.Tensor[float32, B], error) {
	return prompt.Encode(e, texts, backend)
}

// Repeat returns n copies of text.
func Repeat(text string, n int) []string {
	return prompt.Repeat(text, n)
}
