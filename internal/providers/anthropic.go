package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentoven/agentdesk/pkg/models"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// AnthropicAdapter talks to the Anthropic messages API.
type AnthropicAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAnthropic creates the Anthropic adapter. The API key is required.
func NewAnthropic(cfg Config) (*AnthropicAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingCredential)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultAnthropicBaseURL
	}
	return &AnthropicAdapter{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		client:  cfg.client(),
	}, nil
}

func (a *AnthropicAdapter) Provider() models.Provider { return models.ProviderAnthropic }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage anthropicUsage `json:"usage"`
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AnthropicAdapter) buildRequest(systemPrompt string, messages []models.Message, model string, stream bool) anthropicRequest {
	msgs := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	return anthropicRequest{
		Model:       model,
		System:      systemPrompt,
		Messages:    msgs,
		Temperature: Temperature,
		MaxTokens:   MaxOutputTokens,
		Stream:      stream,
	}
}

func (a *AnthropicAdapter) do(ctx context.Context, payload anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newProviderError(models.ProviderAnthropic, 0, "", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, newProviderError(models.ProviderAnthropic, 0, "", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, newProviderError(models.ProviderAnthropic, 0, "", fmt.Errorf("request failed: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, upstreamError(models.ProviderAnthropic, resp)
	}
	return resp, nil
}

// Invoke sends a messages request.
func (a *AnthropicAdapter) Invoke(ctx context.Context, systemPrompt string, messages []models.Message, model string) (*Completion, error) {
	resp, err := a.do(ctx, a.buildRequest(systemPrompt, messages, model, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, newProviderError(models.ProviderAnthropic, resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if len(out.Content) == 0 {
		return nil, newProviderError(models.ProviderAnthropic, resp.StatusCode, "response contained no content", nil)
	}

	return &Completion{
		Text:             text.String(),
		PromptTokens:     out.Usage.InputTokens,
		CompletionTokens: out.Usage.OutputTokens,
	}, nil
}

// Stream sends a streaming messages request.
func (a *AnthropicAdapter) Stream(ctx context.Context, systemPrompt string, messages []models.Message, model string, onDelta DeltaFunc) (*Completion, error) {
	resp, err := a.do(ctx, a.buildRequest(systemPrompt, messages, model, true))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		text                strings.Builder
		input, output       int64
		sawInput, sawOutput bool
		upstreamMsg         string
	)
	err = readSSE(ctx, resp.Body, func(ev sseEvent) (bool, error) {
		var e anthropicStreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
			return false, fmt.Errorf("decode stream event: %w", err)
		}
		switch e.Type {
		case "message_start":
			if e.Message != nil {
				input = e.Message.Usage.InputTokens
				output = e.Message.Usage.OutputTokens
				sawInput = true
			}
		case "content_block_delta":
			if e.Delta != nil && e.Delta.Text != "" {
				text.WriteString(e.Delta.Text)
				if err := onDelta(e.Delta.Text); err != nil {
					return false, err
				}
			}
		case "message_delta":
			if e.Usage != nil {
				output = e.Usage.OutputTokens
				sawOutput = true
			}
		case "message_stop":
			return true, nil
		case "error":
			if e.Error != nil {
				upstreamMsg = e.Error.Message
			}
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, newProviderError(models.ProviderAnthropic, 0, "", fmt.Errorf("stream: %w", err))
	}
	if upstreamMsg != "" {
		return nil, newProviderError(models.ProviderAnthropic, 0, upstreamMsg, nil)
	}

	// message_start carries a placeholder output count; the final one comes
	// with message_delta.
	c := &Completion{Text: text.String(), PromptTokens: input, CompletionTokens: output}
	if !sawInput {
		c.PromptTokens = EstimatePromptTokens(systemPrompt, messages)
	}
	if !sawOutput {
		c.CompletionTokens = max(output, EstimateTokens(c.Text))
	}
	return c, nil
}
