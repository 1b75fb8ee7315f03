// Package executor dispatches one user turn to the model provider bound to an
// agent and normalizes the outcome into an ExecutionResult.
//
// Flow:
//
//	lookup agent → resolve model binding → build context →
//	pick adapter → call provider under the turn deadline → normalize
//
// Execute never returns an error or panics past its boundary: every failure
// becomes a result with Success=false, a readable Error and the typed cause
// in Err.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentoven/agentdesk/internal/conversation"
	"github.com/agentoven/agentdesk/internal/providers"
	"github.com/agentoven/agentdesk/internal/telemetry"
	"github.com/agentoven/agentdesk/pkg/models"
)

// DefaultTurnTimeout bounds the provider call of one turn.
const DefaultTurnTimeout = 90 * time.Second

var (
	// ErrModelBindingMissing means the agent exists but has no model binding.
	ErrModelBindingMissing = errors.New("model binding missing")

	// ErrProviderUnavailable means no adapter is configured for the bound provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Catalog is the subset of the agent registry the executor reads.
type Catalog interface {
	Lookup(id string) (models.AgentDescriptor, error)
	ModelBindingFor(id string) (models.ModelBinding, error)
}

// Adapters resolves a provider tag to its adapter.
type Adapters interface {
	Get(p models.Provider) (providers.Adapter, bool)
}

// ExecContext carries the per-turn inputs that are not the message itself.
type ExecContext struct {
	UserID    string
	SessionID string
	Timestamp time.Time
	History   []models.StoredTurn
}

// Options tunes an Executor. Zero values select the defaults.
type Options struct {
	TurnTimeout time.Duration
	Metrics     *telemetry.Metrics
}

// Executor dispatches turns to provider adapters.
type Executor struct {
	catalog  Catalog
	adapters Adapters
	timeout  time.Duration
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// New creates an executor.
func New(c Catalog, a Adapters, opts Options) *Executor {
	timeout := opts.TurnTimeout
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}
	return &Executor{
		catalog:  c,
		adapters: a,
		timeout:  timeout,
		metrics:  opts.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type callFunc func(ctx context.Context, a providers.Adapter, systemPrompt string, msgs []models.Message, model string) (*providers.Completion, error)

// Execute runs one non-streaming turn for agentID.
func (e *Executor) Execute(ctx context.Context, agentID, userText string, ec ExecContext) *models.ExecutionResult {
	return e.run(ctx, agentID, userText, ec, func(ctx context.Context, a providers.Adapter, sp string, msgs []models.Message, model string) (*providers.Completion, error) {
		return a.Invoke(ctx, sp, msgs, model)
	})
}

// ExecuteStream runs one streaming turn, forwarding text chunks to onDelta.
// The result carries the assembled text.
func (e *Executor) ExecuteStream(ctx context.Context, agentID, userText string, ec ExecContext, onDelta providers.DeltaFunc) *models.ExecutionResult {
	return e.run(ctx, agentID, userText, ec, func(ctx context.Context, a providers.Adapter, sp string, msgs []models.Message, model string) (*providers.Completion, error) {
		return a.Stream(ctx, sp, msgs, model, onDelta)
	})
}

func (e *Executor) run(ctx context.Context, agentID, userText string, ec ExecContext, call callFunc) (res *models.ExecutionResult) {
	start := time.Now()
	ts := ec.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	res = &models.ExecutionResult{AgentID: agentID, Timestamp: ts}

	ctx, span := telemetry.Tracer().Start(ctx, "executor.execute",
		trace.WithAttributes(
			attribute.String("agentdesk.agent_id", agentID),
			attribute.String("agentdesk.session_id", ec.SessionID),
			attribute.Int("agentdesk.history_turns", len(ec.History)),
		),
	)
	defer span.End()

	fail := func(err error) *models.ExecutionResult {
		res.Success = false
		res.Err = err
		res.Error = err.Error()
		res.ExecutionTimeMs = time.Since(start).Milliseconds()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().
			Err(err).
			Str("agent", agentID).
			Str("session", ec.SessionID).
			Int64("ms", res.ExecutionTimeMs).
			Msg("Agent execution failed")
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Errorf("executor panic: %v", r))
		}
	}()

	agent, err := e.catalog.Lookup(agentID)
	if err != nil {
		return fail(err)
	}
	res.AgentName = agent.DisplayName

	binding, err := e.catalog.ModelBindingFor(agentID)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrModelBindingMissing, err))
	}
	res.Provider, res.Model = binding.Provider, binding.ModelName
	span.SetAttributes(
		attribute.String("agentdesk.provider", string(binding.Provider)),
		attribute.String("agentdesk.model", binding.ModelName),
	)

	msgs := conversation.Build(ec.History, userText)

	adapter, ok := e.adapters.Get(binding.Provider)
	if !ok {
		return fail(fmt.Errorf("%w: %s", ErrProviderUnavailable, binding.Provider))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	callStart := time.Now()
	completion, err := call(callCtx, adapter, agent.SystemPrompt, msgs, binding.ModelName)
	callDur := time.Since(callStart)
	if err != nil {
		e.metrics.ProviderCall(string(binding.Provider), binding.ModelName, callDur, false, 0, 0)
		return fail(err)
	}
	e.metrics.ProviderCall(string(binding.Provider), binding.ModelName, callDur, true, completion.PromptTokens, completion.CompletionTokens)

	res.Success = true
	res.Response = completion.Text
	res.Usage = completion.Usage()
	res.ExecutionTimeMs = time.Since(start).Milliseconds()

	span.SetAttributes(attribute.Int64("agentdesk.tokens.total", res.Usage.TotalTokens))
	log.Info().
		Str("agent", agentID).
		Str("provider", string(binding.Provider)).
		Str("model", binding.ModelName).
		Int64("tokens", res.Usage.TotalTokens).
		Int64("ms", res.ExecutionTimeMs).
		Msg("Agent execution complete")

	return res
}
