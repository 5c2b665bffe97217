package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/teilomillet/socialwiz/server/processing"
)

// DefaultEncoding is the tiktoken encoding used to estimate prompt size.
// The inference models do not publish a tiktoken encoding; cl100k_base is a
// close enough estimate for a budget check.
const DefaultEncoding = "cl100k_base"

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement our Tokenizer interface
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// TokenCounter handles token counting for prompts using tiktoken
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a token counter for the named tiktoken encoding.
// Loading an encoding may fetch its rank file on first use.
func NewTokenCounter(encodingName string) (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}, nil
}

// NewTokenCounterWith wraps an existing tokenizer.
func NewTokenCounterWith(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountPromptTokens counts the tokens of every turn in the prompt plus the
// requested completion length.
func (tc *TokenCounter) CountPromptTokens(spec processing.PromptSpec) int {
	total := 0
	for _, msg := range spec.Messages {
		total += tc.encoding.CountTokens(msg.Content)
	}
	return total + spec.MaxTokens
}

// ValidateTokens checks if the prompt's token count is within limits.
// A limit of zero or less disables the check.
func (tc *TokenCounter) ValidateTokens(spec processing.PromptSpec, maxTokens int) error {
	if maxTokens <= 0 {
		return nil
	}

	total := tc.CountPromptTokens(spec)
	if total > maxTokens {
		return fmt.Errorf("total tokens (%d) exceeds max prompt tokens (%d)", total, maxTokens)
	}
	return nil
}
