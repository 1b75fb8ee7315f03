package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/agentdesk/pkg/models"
)

// MockAdapter answers without network access. It backs the "mock" provider
// mode used for local development and demos.
type MockAdapter struct {
	provider models.Provider
}

// NewMock creates a mock adapter that reports itself as provider p.
func NewMock(p models.Provider) *MockAdapter {
	return &MockAdapter{provider: p}
}

func (m *MockAdapter) Provider() models.Provider { return m.provider }

func (m *MockAdapter) reply(messages []models.Message, model string) string {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			last = messages[i].Content
			break
		}
	}
	return fmt.Sprintf("[%s/%s] You said: %s", m.provider, model, last)
}

// Invoke returns a canned reply echoing the latest user message.
func (m *MockAdapter) Invoke(ctx context.Context, systemPrompt string, messages []models.Message, model string) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, newProviderError(m.provider, 0, "", err)
	}
	text := m.reply(messages, model)
	return &Completion{
		Text:             text,
		PromptTokens:     wordCount(systemPrompt, messages),
		CompletionTokens: int64(len(strings.Fields(text))),
	}, nil
}

// Stream emits the canned reply word by word.
func (m *MockAdapter) Stream(ctx context.Context, systemPrompt string, messages []models.Message, model string, onDelta DeltaFunc) (*Completion, error) {
	text := m.reply(messages, model)
	words := strings.Fields(text)
	for i, w := range words {
		if err := ctx.Err(); err != nil {
			return nil, newProviderError(m.provider, 0, "", err)
		}
		if i > 0 {
			w = " " + w
		}
		if err := onDelta(w); err != nil {
			return nil, newProviderError(m.provider, 0, "", err)
		}
	}
	return &Completion{
		Text:             strings.Join(words, " "),
		PromptTokens:     wordCount(systemPrompt, messages),
		CompletionTokens: int64(len(words)),
	}, nil
}

func wordCount(systemPrompt string, messages []models.Message) int64 {
	n := len(strings.Fields(systemPrompt))
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return int64(n)
}
