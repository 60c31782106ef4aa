// Package tiktoken counts prompt tokens with a BPE encoding.
package tiktoken

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/paperlens/internal/core/ports/driven"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// DefaultModel selects the encoding when none is configured.
const DefaultModel = "gpt-3.5-turbo"

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// Counter counts tokens with the encoding of a model. When the encoding
// cannot be loaded it falls back to four runes per token.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads the encoding for model.
func NewCounter(model string) *Counter {
	if model == "" {
		model = DefaultModel
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("Token encoding for %s unavailable, estimating: %v", model, err)
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc == nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Estimating reports whether the counter is using the rune estimate.
func (c *Counter) Estimating() bool {
	return c.enc == nil
}
