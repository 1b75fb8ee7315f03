package executor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agentoven/agentdesk/internal/executor"
	"github.com/agentoven/agentdesk/internal/providers"
	"github.com/agentoven/agentdesk/internal/registry"
	"github.com/agentoven/agentdesk/pkg/models"
)

// fakeAdapter records its last call and answers with fn.
type fakeAdapter struct {
	provider models.Provider
	fn       func(ctx context.Context) (*providers.Completion, error)

	gotSystem string
	gotMsgs   []models.Message
	gotModel  string
}

func (f *fakeAdapter) Provider() models.Provider { return f.provider }

func (f *fakeAdapter) Invoke(ctx context.Context, sp string, msgs []models.Message, model string) (*providers.Completion, error) {
	f.gotSystem, f.gotMsgs, f.gotModel = sp, msgs, model
	return f.fn(ctx)
}

func (f *fakeAdapter) Stream(ctx context.Context, sp string, msgs []models.Message, model string, onDelta providers.DeltaFunc) (*providers.Completion, error) {
	c, err := f.Invoke(ctx, sp, msgs, model)
	if err != nil {
		return nil, err
	}
	for _, w := range strings.SplitAfter(c.Text, " ") {
		if err := onDelta(w); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func ok(text string, p, c int64) func(context.Context) (*providers.Completion, error) {
	return func(context.Context) (*providers.Completion, error) {
		return &providers.Completion{Text: text, PromptTokens: p, CompletionTokens: c}, nil
	}
}

// noBindingCatalog knows every builtin agent but has lost all bindings.
type noBindingCatalog struct{ *registry.Registry }

func (noBindingCatalog) ModelBindingFor(id string) (models.ModelBinding, error) {
	return models.ModelBinding{}, registry.ErrBindingNotFound
}

func TestExecute_Success(t *testing.T) {
	anthropic := &fakeAdapter{provider: models.ProviderAnthropic, fn: ok("Here is your report.", 120, 30)}
	e := executor.New(registry.MustBuiltin(), providers.NewSet(anthropic), executor.Options{})

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := e.Execute(context.Background(), "ledger", "Help me draft a financial report", executor.ExecContext{
		UserID: "u1", SessionID: "s1", Timestamp: ts,
	})

	if !res.Success {
		t.Fatalf("Execute() Success = false, Error = %q", res.Error)
	}
	if res.Response != "Here is your report." {
		t.Errorf("Response = %q", res.Response)
	}
	if res.Provider != models.ProviderAnthropic || res.Model == "" {
		t.Errorf("Provider/Model = %q/%q, want anthropic binding", res.Provider, res.Model)
	}
	if res.AgentName != "Ledger" {
		t.Errorf("AgentName = %q, want Ledger", res.AgentName)
	}
	if res.Usage.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", res.Usage.TotalTokens)
	}
	if !res.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", res.Timestamp, ts)
	}
	if res.ExecutionTimeMs < 0 {
		t.Errorf("ExecutionTimeMs = %d", res.ExecutionTimeMs)
	}
	if !strings.Contains(anthropic.gotSystem, "Ledger") {
		t.Errorf("system prompt = %q, want the ledger prompt", anthropic.gotSystem)
	}
}

func TestExecute_SendsHistoryThenMessage(t *testing.T) {
	openai := &fakeAdapter{provider: models.ProviderOpenAI, fn: ok("ok", 1, 1)}
	e := executor.New(registry.MustBuiltin(), providers.NewSet(openai), executor.Options{})

	history := []models.StoredTurn{
		{UserMessage: "q1", AgentResponse: "a1"},
		{UserMessage: "q2", AgentResponse: "a2"},
	}
	e.Execute(context.Background(), "forge", "q3", executor.ExecContext{History: history})

	if len(openai.gotMsgs) != 5 {
		t.Fatalf("sent %d messages, want 5", len(openai.gotMsgs))
	}
	last := openai.gotMsgs[4]
	if last.Role != models.RoleUser || last.Content != "q3" {
		t.Errorf("last message = %+v, want the new user message", last)
	}
}

func TestExecute_UnknownAgent(t *testing.T) {
	e := executor.New(registry.MustBuiltin(), providers.NewSet(), executor.Options{})

	res := e.Execute(context.Background(), "not-a-real-id", "hi", executor.ExecContext{})
	if res.Success {
		t.Fatal("Execute() Success = true, want false")
	}
	if !errors.Is(res.Err, registry.ErrAgentNotFound) {
		t.Errorf("Err = %v, want ErrAgentNotFound", res.Err)
	}
	if res.Error == "" || res.Timestamp.IsZero() {
		t.Errorf("failed result missing Error or Timestamp: %+v", res)
	}
}

func TestExecute_BindingMissing(t *testing.T) {
	cat := noBindingCatalog{registry.MustBuiltin()}
	e := executor.New(cat, providers.NewSet(providers.NewMock(models.ProviderOpenAI)), executor.Options{})

	res := e.Execute(context.Background(), "forge", "hi", executor.ExecContext{})
	if !errors.Is(res.Err, executor.ErrModelBindingMissing) {
		t.Errorf("Err = %v, want ErrModelBindingMissing", res.Err)
	}
	if errors.Is(res.Err, registry.ErrAgentNotFound) {
		t.Error("binding failure must be distinct from agent not found")
	}
}

func TestExecute_ProviderUnavailable(t *testing.T) {
	// Only openai configured; ledger is bound to anthropic.
	e := executor.New(registry.MustBuiltin(), providers.NewSet(providers.NewMock(models.ProviderOpenAI)), executor.Options{})

	res := e.Execute(context.Background(), "ledger", "budget", executor.ExecContext{})
	if !errors.Is(res.Err, executor.ErrProviderUnavailable) {
		t.Errorf("Err = %v, want ErrProviderUnavailable", res.Err)
	}
	if res.Provider != models.ProviderAnthropic {
		t.Errorf("Provider = %q, want anthropic", res.Provider)
	}
}

func TestExecute_ProviderErrorVerbatim(t *testing.T) {
	failing := &fakeAdapter{provider: models.ProviderOpenAI, fn: func(context.Context) (*providers.Completion, error) {
		return nil, &providers.ProviderError{Provider: models.ProviderOpenAI, StatusCode: 500, Message: "upstream exploded"}
	}}
	e := executor.New(registry.MustBuiltin(), providers.NewSet(failing), executor.Options{})

	res := e.Execute(context.Background(), "forge", "deploy", executor.ExecContext{})
	var pe *providers.ProviderError
	if !errors.As(res.Err, &pe) {
		t.Fatalf("Err = %v, want *ProviderError", res.Err)
	}
	if !strings.Contains(res.Error, "upstream exploded") {
		t.Errorf("Error = %q, want upstream message", res.Error)
	}
	if res.Usage.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, want 0 on failure", res.Usage.TotalTokens)
	}
}

func TestExecute_TurnTimeout(t *testing.T) {
	slow := &fakeAdapter{provider: models.ProviderOpenAI, fn: func(ctx context.Context) (*providers.Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := executor.New(registry.MustBuiltin(), providers.NewSet(slow), executor.Options{TurnTimeout: 20 * time.Millisecond})

	res := e.Execute(context.Background(), "forge", "deploy", executor.ExecContext{})
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want DeadlineExceeded", res.Err)
	}
}

func TestExecute_AdapterPanicBecomesFailure(t *testing.T) {
	bad := &fakeAdapter{provider: models.ProviderOpenAI, fn: func(context.Context) (*providers.Completion, error) {
		panic("boom")
	}}
	e := executor.New(registry.MustBuiltin(), providers.NewSet(bad), executor.Options{})

	res := e.Execute(context.Background(), "forge", "deploy", executor.ExecContext{})
	if res.Success || !strings.Contains(res.Error, "boom") {
		t.Errorf("result = %+v, want failure mentioning the panic", res)
	}
}

func TestExecuteStream(t *testing.T) {
	a := &fakeAdapter{provider: models.ProviderOpenAI, fn: ok("one two three", 5, 3)}
	e := executor.New(registry.MustBuiltin(), providers.NewSet(a), executor.Options{})

	var got []string
	res := e.ExecuteStream(context.Background(), "forge", "code", executor.ExecContext{}, func(d string) error {
		got = append(got, d)
		return nil
	})
	if !res.Success {
		t.Fatalf("ExecuteStream() Error = %q", res.Error)
	}
	if strings.Join(got, "") != "one two three" || len(got) != 3 {
		t.Errorf("deltas = %q", got)
	}
	if res.Response != "one two three" || res.Usage.TotalTokens != 8 {
		t.Errorf("result = %+v", res)
	}
}
