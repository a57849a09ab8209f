package prompt

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultWordVocab is the id space of NewTokenizer's word tokenizer.
const DefaultWordVocab = 1 << 16

// WordTokenizer is an offline tokenizer: it lowercases text, splits it on
// anything that is not a letter or digit and hashes every word into
// [0, vocab). Hash collisions are accepted.
type WordTokenizer struct {
	vocab uint32
}

// NewWordTokenizer creates a word tokenizer over vocab ids.
// Panics if vocab is not positive.
func NewWordTokenizer(vocab int) *WordTokenizer {
	if vocab <= 0 {
		panic("prompt: word tokenizer vocab must be positive")
	}
	return &WordTokenizer{vocab: uint32(vocab)} //nolint:gosec // G115: checked positive above
}

// Encode converts text to word ids.
func (w *WordTokenizer) Encode(text string) ([]int32, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	ids := make([]int32, len(words))
	for i, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		ids[i] = int32(h.Sum32() % w.vocab) //nolint:gosec // G115: vocab <= 2^31
	}
	return ids, nil
}

// Name returns "word".
func (w *WordTokenizer) Name() string {
	return TokenizerWord
}
