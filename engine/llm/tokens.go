package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultEncoding       = "cl100k_base"
	fallbackCharsPerToken = 4
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of text. It uses the
// cl100k_base encoding when available and falls back to a runes/4 estimate
// when the encoding cannot be loaded.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding(defaultEncoding); err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	tokens := utf8.RuneCountInString(text) / fallbackCharsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}
