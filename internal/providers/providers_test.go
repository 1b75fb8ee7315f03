package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentoven/agentdesk/internal/providers"
	"github.com/agentoven/agentdesk/pkg/models"
)

var history = []models.Message{
	{Role: models.RoleUser, Content: "earlier question"},
	{Role: models.RoleAssistant, Content: "earlier answer"},
	{Role: models.RoleUser, Content: "new question"},
}

func TestNewRequiresCredential(t *testing.T) {
	if _, err := providers.NewOpenAI(providers.Config{}); !errors.Is(err, providers.ErrMissingCredential) {
		t.Errorf("NewOpenAI() error = %v, want ErrMissingCredential", err)
	}
	if _, err := providers.NewAnthropic(providers.Config{}); !errors.Is(err, providers.ErrMissingCredential) {
		t.Errorf("NewAnthropic() error = %v, want ErrMissingCredential", err)
	}
}

func TestOpenAI_Invoke(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello back"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
	}))
	defer srv.Close()

	a, err := providers.NewOpenAI(providers.Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Invoke(context.Background(), "be brief", history, "gpt-4o")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if c.Text != "hello back" {
		t.Errorf("Text = %q, want %q", c.Text, "hello back")
	}
	if u := c.Usage(); u.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", u.TotalTokens)
	}

	msgs := got["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want 4 (system + 3)", len(msgs))
	}
	if first := msgs[0].(map[string]any); first["role"] != "system" || first["content"] != "be brief" {
		t.Errorf("first message = %v, want system prompt", first)
	}
	if got["temperature"] != 0.7 || got["max_tokens"] != float64(4096) {
		t.Errorf("temperature/max_tokens = %v/%v, want 0.7/4096", got["temperature"], got["max_tokens"])
	}
}

func TestAnthropic_Invoke(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "ak-test" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}],"usage":{"input_tokens":20,"output_tokens":5}}`)
	}))
	defer srv.Close()

	a, err := providers.NewAnthropic(providers.Config{APIKey: "ak-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Invoke(context.Background(), "be brief", history, "claude-3-5-haiku-20241022")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if c.Text != "part one, part two" {
		t.Errorf("Text = %q", c.Text)
	}
	if c.PromptTokens != 20 || c.CompletionTokens != 5 {
		t.Errorf("usage = %d/%d, want 20/5", c.PromptTokens, c.CompletionTokens)
	}
	if got["system"] != "be brief" {
		t.Errorf("system = %v, want top-level system prompt", got["system"])
	}
	if msgs := got["messages"].([]any); len(msgs) != 3 {
		t.Errorf("sent %d messages, want 3", len(msgs))
	}
}

func TestUpstreamErrorIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"type":"rate_limit_error","message":"Rate limit reached for gpt-4o"}}`)
	}))
	defer srv.Close()

	adapters := []providers.Adapter{}
	oa, _ := providers.NewOpenAI(providers.Config{APIKey: "k", BaseURL: srv.URL})
	an, _ := providers.NewAnthropic(providers.Config{APIKey: "k", BaseURL: srv.URL})
	adapters = append(adapters, oa, an)

	for _, a := range adapters {
		t.Run(string(a.Provider()), func(t *testing.T) {
			_, err := a.Invoke(context.Background(), "", history, "m")
			var pe *providers.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("Invoke() error = %v, want *ProviderError", err)
			}
			if pe.Provider != a.Provider() {
				t.Errorf("Provider = %q, want %q", pe.Provider, a.Provider())
			}
			if pe.StatusCode != http.StatusTooManyRequests {
				t.Errorf("StatusCode = %d, want 429", pe.StatusCode)
			}
			if pe.Message != "Rate limit reached for gpt-4o" {
				t.Errorf("Message = %q", pe.Message)
			}
		})
	}
}

func TestUpstreamError_RawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway from proxy", http.StatusBadGateway)
	}))
	defer srv.Close()

	a, _ := providers.NewOpenAI(providers.Config{APIKey: "k", BaseURL: srv.URL})
	_, err := a.Invoke(context.Background(), "", history, "m")
	var pe *providers.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.Message != "bad gateway from proxy" {
		t.Errorf("Message = %q", pe.Message)
	}
}

func TestOpenAI_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"include_usage":true`) {
			t.Errorf("request body missing stream_options: %s", body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":9,\"completion_tokens\":2}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	a, _ := providers.NewOpenAI(providers.Config{APIKey: "k", BaseURL: srv.URL})
	var deltas []string
	c, err := a.Stream(context.Background(), "sys", history, "gpt-4o", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if c.Text != "Hello" || strings.Join(deltas, "|") != "Hel|lo" {
		t.Errorf("Text = %q, deltas = %q", c.Text, deltas)
	}
	if c.PromptTokens != 9 || c.CompletionTokens != 2 {
		t.Errorf("usage = %d/%d, want 9/2", c.PromptTokens, c.CompletionTokens)
	}
}

func TestAnthropic_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":30}}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Good \"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"morning\"}}\n\n")
		fmt.Fprint(w, "event: message_delta\ndata: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":4}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	a, _ := providers.NewAnthropic(providers.Config{APIKey: "k", BaseURL: srv.URL})
	c, err := a.Stream(context.Background(), "sys", history, "claude", func(string) error { return nil })
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if c.Text != "Good morning" {
		t.Errorf("Text = %q, want %q", c.Text, "Good morning")
	}
	if c.PromptTokens != 30 || c.CompletionTokens != 4 {
		t.Errorf("usage = %d/%d, want 30/4", c.PromptTokens, c.CompletionTokens)
	}
}

func TestAnthropic_StreamWithoutMessageDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":12,\"output_tokens\":1}}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"hello there friend\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	a, _ := providers.NewAnthropic(providers.Config{APIKey: "k", BaseURL: srv.URL})
	c, err := a.Stream(context.Background(), "sys", history, "claude", func(string) error { return nil })
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if c.PromptTokens != 12 {
		t.Errorf("PromptTokens = %d, want 12 from message_start", c.PromptTokens)
	}
	if want := providers.EstimateTokens("hello there friend"); c.CompletionTokens != max(1, want) || c.CompletionTokens == 0 {
		t.Errorf("CompletionTokens = %d, want estimate %d", c.CompletionTokens, want)
	}
}

func TestAnthropic_StreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	a, _ := providers.NewAnthropic(providers.Config{APIKey: "k", BaseURL: srv.URL})
	_, err := a.Stream(context.Background(), "", history, "claude", func(string) error { return nil })
	var pe *providers.ProviderError
	if !errors.As(err, &pe) || pe.Message != "Overloaded" {
		t.Errorf("Stream() error = %v, want ProviderError with message Overloaded", err)
	}
}

func TestStream_CallbackErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"w%d \"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	a, _ := providers.NewOpenAI(providers.Config{APIKey: "k", BaseURL: srv.URL})
	stop := errors.New("client went away")
	calls := 0
	_, err := a.Stream(context.Background(), "", history, "m", func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Stream() error = %v, want wrapped callback error", err)
	}
	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestMock(t *testing.T) {
	m := providers.NewMock(models.ProviderAnthropic)
	if m.Provider() != models.ProviderAnthropic {
		t.Errorf("Provider() = %q", m.Provider())
	}
	c, err := m.Invoke(context.Background(), "sys", history, "claude")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !strings.Contains(c.Text, "new question") {
		t.Errorf("Text = %q, want echo of the latest user message", c.Text)
	}

	var b strings.Builder
	sc, err := m.Stream(context.Background(), "sys", history, "claude", func(d string) error {
		b.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if b.String() != sc.Text || sc.Text != c.Text {
		t.Errorf("streamed %q, completion %q, invoke %q", b.String(), sc.Text, c.Text)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Invoke(ctx, "", history, "m"); err == nil {
		t.Error("Invoke() with cancelled context error = nil")
	}
}

func TestSet(t *testing.T) {
	s := providers.NewSet(providers.NewMock(models.ProviderOpenAI))
	if !s.Has(models.ProviderOpenAI) {
		t.Error("Has(openai) = false")
	}
	if _, ok := s.Get(models.ProviderAnthropic); ok {
		t.Error("Get(anthropic) ok = true, want false")
	}
}

func TestEstimateTokens(t *testing.T) {
	if n := providers.EstimateTokens(""); n != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", n)
	}
	if n := providers.EstimateTokens("The quick brown fox jumps over the lazy dog"); n <= 0 {
		t.Errorf("EstimateTokens() = %d, want > 0", n)
	}
}
