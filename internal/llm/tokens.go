package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// loadTokenizer initializes a shared cl100k_base tokenizer. All four backend
// families tokenize close enough to it for context budgeting purposes.
// Initialization can fail (the encoding tables may be unavailable offline);
// counting then falls back to a bytes/4 estimate.
func loadTokenizer() *tiktoken.Tiktoken {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return
		}
		tokenizer = enc
	})
	return tokenizer
}

// CountTokens returns the token count for the provided content.
func CountTokens(content string) int {
	if content == "" {
		return 0
	}
	if enc := loadTokenizer(); enc != nil {
		return len(enc.Encode(content, nil, nil))
	}
	return charsToTokens(len(content))
}

// CountTokensForMessages returns the token estimate for a message sequence,
// including tool call payloads.
func CountTokensForMessages(messages []*Message) int {
	total := 0
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		total += CountTokens(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += charsToTokens(len(stringifyArguments(tc)))
		}
	}
	return total
}

func charsToTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	tokens := chars / 4
	if tokens <= 0 {
		tokens = 1
	}
	return tokens
}
