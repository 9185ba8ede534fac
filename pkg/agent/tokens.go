package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nestorlabs/nestor/pkg/threads"
)

// Token overhead per message (consistent across GPT models).
const tokensPerTurn = 3

// tokenizer lazily loads the tiktoken encoder for a model. The encoder data
// is fetched over the network on first use, so loading stays off the startup
// path and a missing encoder degrades to a character estimate.
type tokenizer struct {
	model string
	once  sync.Once
	enc   *tiktoken.Tiktoken
}

func newTokenizer(model string) *tokenizer {
	return &tokenizer{model: model}
}

func (t *tokenizer) count(text string) int {
	t.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(t.model)
		if err != nil {
			// Fall back to cl100k_base for unknown models
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return
			}
		}
		t.enc = enc
	})
	if t.enc == nil {
		return approxTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// approxTokens estimates roughly four characters per token.
func approxTokens(text string) int {
	return len(text)/4 + 1
}

// trimHistory drops the oldest turns until the system prompt, the kept
// history, and the current prompt together fit within budget tokens. A
// budget of zero or less disables trimming. When the two prompts alone
// exceed the budget, no history is kept.
func trimHistory(turns []threads.Turn, systemPrompt, prompt string, budget int, count func(string) int) []threads.Turn {
	if budget <= 0 || len(turns) == 0 {
		return turns
	}
	budget -= count(systemPrompt) + tokensPerTurn + count(prompt) + tokensPerTurn
	if budget <= 0 {
		return nil
	}
	return trimToBudget(turns, budget, count)
}

// trimToBudget drops the oldest turns until the remainder fits within budget
// tokens. A budget of zero or less disables trimming.
func trimToBudget(turns []threads.Turn, budget int, count func(string) int) []threads.Turn {
	if budget <= 0 || len(turns) == 0 {
		return turns
	}
	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := count(turns[i].Text) + tokensPerTurn
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}
	return turns[start:]
}
