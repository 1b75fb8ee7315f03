package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agentoven/agentdesk/pkg/models"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter talks to the OpenAI chat completions API.
type OpenAIAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates the OpenAI adapter. The API key is required.
func NewOpenAI(cfg Config) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingCredential)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	return &OpenAIAdapter{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		client:  cfg.client(),
	}, nil
}

func (a *OpenAIAdapter) Provider() models.Provider { return models.ProviderOpenAI }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model         string               `json:"model"`
	Messages      []openAIMessage      `json:"messages"`
	Temperature   float64              `json:"temperature"`
	MaxTokens     int                  `json:"max_tokens"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *openAIStreamOptions `json:"stream_options,omitempty"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage openAIUsage `json:"usage"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *openAIUsage `json:"usage"`
}

// errorEnvelope is the error body shape shared by both providers.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (a *OpenAIAdapter) buildRequest(systemPrompt string, messages []models.Message, model string, stream bool) openAIRequest {
	msgs := make([]openAIMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		msgs = append(msgs, openAIMessage{Role: string(m.Role), Content: m.Content})
	}
	req := openAIRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: Temperature,
		MaxTokens:   MaxOutputTokens,
	}
	if stream {
		req.Stream = true
		req.StreamOptions = &openAIStreamOptions{IncludeUsage: true}
	}
	return req
}

func (a *OpenAIAdapter) do(ctx context.Context, payload openAIRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newProviderError(models.ProviderOpenAI, 0, "", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, newProviderError(models.ProviderOpenAI, 0, "", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, newProviderError(models.ProviderOpenAI, 0, "", fmt.Errorf("request failed: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError(models.ProviderOpenAI, resp)
	}
	return resp, nil
}

// Invoke sends a chat completion request.
func (a *OpenAIAdapter) Invoke(ctx context.Context, systemPrompt string, messages []models.Message, model string) (*Completion, error) {
	resp, err := a.do(ctx, a.buildRequest(systemPrompt, messages, model, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, newProviderError(models.ProviderOpenAI, resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return nil, newProviderError(models.ProviderOpenAI, resp.StatusCode, "response contained no choices", nil)
	}

	return &Completion{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

// Stream sends a streaming chat completion request.
func (a *OpenAIAdapter) Stream(ctx context.Context, systemPrompt string, messages []models.Message, model string, onDelta DeltaFunc) (*Completion, error) {
	resp, err := a.do(ctx, a.buildRequest(systemPrompt, messages, model, true))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		text  strings.Builder
		usage *openAIUsage
	)
	err = readSSE(ctx, resp.Body, func(ev sseEvent) (bool, error) {
		if ev.Data == "[DONE]" {
			return true, nil
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return false, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			text.WriteString(c.Delta.Content)
			if err := onDelta(c.Delta.Content); err != nil {
				return false, err
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, newProviderError(models.ProviderOpenAI, 0, "", fmt.Errorf("stream: %w", err))
	}

	c := &Completion{Text: text.String()}
	if usage != nil {
		c.PromptTokens, c.CompletionTokens = usage.PromptTokens, usage.CompletionTokens
	} else {
		c.PromptTokens = EstimatePromptTokens(systemPrompt, messages)
		c.CompletionTokens = EstimateTokens(c.Text)
	}
	return c, nil
}

// upstreamError reads a non-2xx response into a ProviderError, keeping the
// provider's own message when the body has the usual error envelope.
func upstreamError(p models.Provider, resp *http.Response) *ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	msg := strings.TrimSpace(string(raw))
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return newProviderError(p, resp.StatusCode, msg, nil)
}
