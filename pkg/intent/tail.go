package intent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/crxforge/crxforge/pkg/types"
)

// defaultTailBudget bounds the transcript context handed to the fallback
// classifier, in tokens.
const defaultTailBudget = 1500

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens returns the token count of text under the cl100k_base
// encoding, falling back to a character estimate if the encoding cannot be
// loaded.
func countTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// TranscriptTail returns the longest suffix of the transcript whose combined
// token count fits the budget. The newest messages are always preferred; a
// single over-budget message still yields a one-message tail so the
// classifier never sees an empty context.
func TranscriptTail(messages []*types.Message, budget int) []*types.Message {
	if budget <= 0 {
		budget = defaultTailBudget
	}

	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		total += countTokens(messages[i].Content)
		if total > budget && start < len(messages) {
			break
		}
		start = i
	}
	return messages[start:]
}
