package providers

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentdesk/pkg/models"
)

// Token estimation for streams that end without a usage report. cl100k_base
// is close enough for both providers; when the encoding cannot be loaded the
// estimate falls back to four characters per token.

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn().Err(err).Msg("tiktoken encoding unavailable, using length estimate")
			return
		}
		enc = e
	})
	return enc
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return int64(len(e.Encode(text, nil, nil)))
	}
	n := int64(len(text) / 4)
	if n == 0 {
		n = 1
	}
	return n
}

// EstimatePromptTokens approximates the prompt size of a request.
func EstimatePromptTokens(systemPrompt string, messages []models.Message) int64 {
	total := EstimateTokens(systemPrompt)
	for _, m := range messages {
		total += EstimateTokens(m.Content)
	}
	return total
}
