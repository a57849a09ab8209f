// Package prompt turns prompt strings into the prompt embeddings consumed by
// the refinement loss.
//
// A Tokenizer splits text into token IDs; an Encoder hashes those IDs into a
// fixed, seeded embedding table and mean-pools them into one [dim] vector per
// prompt. Encode stacks a batch of prompts into a [batch, dim] tensor.
package prompt

import (
	"errors"
	"fmt"
)

// Tokenizer names accepted by NewTokenizer.
const (
	TokenizerWord     = "word"
	TokenizerTikToken = "tiktoken"
)

var (
	// ErrEmptyPrompt is returned for prompts that produce no tokens.
	ErrEmptyPrompt = errors.New("prompt has no tokens")

	// ErrUnknownTokenizer is returned by NewTokenizer for an unsupported name.
	ErrUnknownTokenizer = errors.New("unknown tokenizer")
)

// Tokenizer converts prompt text to token IDs.
type Tokenizer interface {
	// Encode converts text to token IDs.
	Encode(text string) ([]int32, error)

	// Name returns the tokenizer name.
	Name() string
}

// NewTokenizer creates a tokenizer by kind.
//
// kind is TokenizerWord or TokenizerTikToken; encoding selects the tiktoken
// encoding (e.g. "cl100k_base") and is ignored for the word tokenizer.
func NewTokenizer(kind, encoding string) (Tokenizer, error) {
	switch kind {
	case TokenizerWord:
		return NewWordTokenizer(DefaultWordVocab), nil
	case TokenizerTikToken:
		return NewTikToken(encoding)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTokenizer, kind)
	}
}
