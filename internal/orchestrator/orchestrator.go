// Package orchestrator runs one chat turn end to end.
//
// Each turn walks a fixed sequence of phases:
//
//	START → AGENT_SELECTED → HISTORY_LOADED → DISPATCHED →
//	{SUCCEEDED | FAILED} → LOGGED → SESSION_UPDATED → RETURNED
//
// RETURNED is reached the same way whether dispatch succeeded or failed: a
// failed dispatch yields a well-formed result with Success=false and an
// apology. The LOGGED and SESSION_UPDATED phases are best effort; their errors
// land in TurnResult.Persistence and never change the answer.
//
// A turn that names a session owned by another user stops at START and is
// neither dispatched nor recorded.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentoven/agentdesk/internal/executor"
	"github.com/agentoven/agentdesk/internal/providers"
	"github.com/agentoven/agentdesk/internal/registry"
	"github.com/agentoven/agentdesk/internal/store"
	"github.com/agentoven/agentdesk/internal/telemetry"
	"github.com/agentoven/agentdesk/pkg/models"
)

// ApologyText is the response shown to the user when dispatch fails.
const ApologyText = "Sorry, I wasn't able to answer that just now. Please try again in a moment."

// persistTimeout bounds the best-effort writes, which run detached from the
// request's cancellation.
const persistTimeout = 5 * time.Second

// CheckOwner returns store.ErrForeignSession when sessionID exists under a
// user other than userID. An unknown session id is free to claim.
func CheckOwner(ctx context.Context, gw store.Gateway, sessionID, userID string) error {
	sess, err := gw.GetSession(ctx, sessionID)
	var nf *store.ErrNotFound
	switch {
	case errors.As(err, &nf):
		return nil
	case err != nil:
		return fmt.Errorf("check session owner: %w", err)
	case sess.UserID != userID:
		return store.ErrForeignSession
	}
	return nil
}

// Phase is a step of the per-turn state machine.
type Phase string

const (
	PhaseStart          Phase = "START"
	PhaseAgentSelected  Phase = "AGENT_SELECTED"
	PhaseHistoryLoaded  Phase = "HISTORY_LOADED"
	PhaseDispatched     Phase = "DISPATCHED"
	PhaseSucceeded      Phase = "SUCCEEDED"
	PhaseFailed         Phase = "FAILED"
	PhaseLogged         Phase = "LOGGED"
	PhaseSessionUpdated Phase = "SESSION_UPDATED"
	PhaseReturned       Phase = "RETURNED"
)

// Router picks an agent from message text.
type Router interface {
	Route(text string) models.AgentDescriptor
}

// Dispatcher runs a turn against the bound provider.
type Dispatcher interface {
	Execute(ctx context.Context, agentID, userText string, ec executor.ExecContext) *models.ExecutionResult
	ExecuteStream(ctx context.Context, agentID, userText string, ec executor.ExecContext, onDelta providers.DeltaFunc) *models.ExecutionResult
}

// TurnRequest is one inbound user message. SessionID and AgentID are optional.
type TurnRequest struct {
	Message   string
	UserID    string
	SessionID string
	AgentID   string
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	HistoryLimit int
	Metrics      *telemetry.Metrics
}

// Orchestrator wires router, store and dispatcher together.
type Orchestrator struct {
	router       Router
	dispatcher   Dispatcher
	store        store.Gateway
	metrics      *telemetry.Metrics
	historyLimit int

	newSessionID func() string
	now          func() time.Time
}

// New creates an orchestrator. All collaborators are required.
func New(r Router, d Dispatcher, gw store.Gateway, opts Options) *Orchestrator {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = store.DefaultHistoryLimit
	}
	return &Orchestrator{
		router:       r,
		dispatcher:   d,
		store:        gw,
		metrics:      opts.Metrics,
		historyLimit: limit,
		newSessionID: uuid.NewString,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// HandleTurn answers one message. It always returns a result.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) *models.TurnResult {
	return o.turn(ctx, req, func(ctx context.Context, agentID string, ec executor.ExecContext) *models.ExecutionResult {
		return o.dispatcher.Execute(ctx, agentID, req.Message, ec)
	})
}

// StreamTurn answers one message, forwarding text chunks to onDelta as they
// arrive. The returned result is the same as HandleTurn's.
func (o *Orchestrator) StreamTurn(ctx context.Context, req TurnRequest, onDelta providers.DeltaFunc) *models.TurnResult {
	return o.turn(ctx, req, func(ctx context.Context, agentID string, ec executor.ExecContext) *models.ExecutionResult {
		return o.dispatcher.ExecuteStream(ctx, agentID, req.Message, ec, onDelta)
	})
}

type dispatchFunc func(ctx context.Context, agentID string, ec executor.ExecContext) *models.ExecutionResult

func (o *Orchestrator) turn(ctx context.Context, req TurnRequest, dispatch dispatchFunc) *models.TurnResult {
	claimed := req.SessionID != ""
	if !claimed {
		req.SessionID = o.newSessionID()
	}
	ts := o.now()

	ctx, span := telemetry.Tracer().Start(ctx, "orchestrator.turn",
		trace.WithAttributes(
			attribute.String("agentdesk.session_id", req.SessionID),
			attribute.String("agentdesk.user_id", req.UserID),
			attribute.Bool("agentdesk.explicit_agent", req.AgentID != ""),
		),
	)
	defer span.End()

	t := &turnLog{span: span, session: req.SessionID}
	t.enter(PhaseStart)

	// A caller may only continue its own sessions. If ownership cannot be
	// read, the turn runs without history.
	verified := true
	if claimed {
		if err := CheckOwner(ctx, o.store, req.SessionID, req.UserID); err != nil {
			if errors.Is(err, store.ErrForeignSession) {
				log.Warn().Str("session", req.SessionID).Str("user", req.UserID).Msg("Turn rejected for another user's session")
				t.enter(PhaseReturned, attribute.Bool("rejected", true))
				return rejected(req, ts, err)
			}
			verified = false
			o.metrics.StoreFailed(telemetry.OpOwner)
			log.Warn().Err(err).Str("session", req.SessionID).Msg("Session owner lookup failed, continuing without history")
		}
	}

	// AGENT_SELECTED: an explicit id bypasses the router and is checked by the
	// dispatcher's registry lookup, never rerouted.
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		agentID = o.router.Route(req.Message).ID
	}
	span.SetAttributes(attribute.String("agentdesk.agent_id", agentID))
	t.enter(PhaseAgentSelected, attribute.String("agent", agentID))

	// HISTORY_LOADED: a read failure degrades to no history.
	var history []models.StoredTurn
	if verified {
		var err error
		history, err = o.store.FetchHistory(ctx, req.SessionID, o.historyLimit)
		if err != nil {
			o.metrics.StoreFailed(telemetry.OpHistory)
			log.Warn().Err(err).Str("session", req.SessionID).Msg("History fetch failed, continuing without history")
			history = nil
		}
	}
	t.enter(PhaseHistoryLoaded, attribute.Int("turns", len(history)))

	res := dispatch(ctx, agentID, executor.ExecContext{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Timestamp: ts,
		History:   history,
	})
	t.enter(PhaseDispatched)
	if res.Success {
		t.enter(PhaseSucceeded)
	} else {
		t.enter(PhaseFailed, attribute.String("error", res.Error))
	}
	o.metrics.TurnCompleted(agentID, res.Success)

	report := o.persist(ctx, req, agentID, res, t)

	result := &models.TurnResult{
		Success:   res.Success,
		SessionID: req.SessionID,
		Agent:     models.AgentRef{ID: agentID, Name: res.AgentName},
		Response:  res.Response,
		Metadata: models.TurnMetadata{
			Provider:        res.Provider,
			Model:           res.Model,
			ExecutionTimeMs: res.ExecutionTimeMs,
			TotalTokens:     res.Usage.TotalTokens,
			Timestamp:       res.Timestamp,
		},
		Persistence: report,
		Execution:   res,
	}
	if !res.Success {
		result.Response = ApologyText
	}
	t.enter(PhaseReturned)
	return result
}

// persist runs the LOGGED and SESSION_UPDATED phases. Errors are logged,
// counted and reported, never returned.
func (o *Orchestrator) persist(ctx context.Context, req TurnRequest, agentID string, res *models.ExecutionResult, t *turnLog) models.PersistReport {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var report models.PersistReport

	rec := &models.ExecutionRecord{
		UserID:           req.UserID,
		SessionID:        req.SessionID,
		AgentID:          agentID,
		AgentName:        res.AgentName,
		UserMessage:      req.Message,
		AgentResponse:    res.Response,
		Provider:         res.Provider,
		ModelName:        res.Model,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
		ExecutionTimeMs:  res.ExecutionTimeMs,
		Success:          res.Success,
		Error:            res.Error,
		Timestamp:        res.Timestamp,
	}
	if err := o.store.AppendExecution(ctx, rec); err != nil {
		report.LogErr = err
		o.metrics.StoreFailed(telemetry.OpLog)
		log.Error().Err(err).Str("session", req.SessionID).Str("agent", agentID).Msg("Failed to record execution")
	}
	t.enter(PhaseLogged, attribute.Bool("ok", report.LogErr == nil))

	// An id that named no agent is not worth remembering as the last agent.
	lastAgent := agentID
	if errors.Is(res.Err, registry.ErrAgentNotFound) {
		lastAgent = ""
	}
	if err := o.store.UpsertSession(ctx, req.SessionID, req.UserID, lastAgent); err != nil {
		report.SessionErr = err
		o.metrics.StoreFailed(telemetry.OpSession)
		log.Error().Err(err).Str("session", req.SessionID).Msg("Failed to update session")
	}
	t.enter(PhaseSessionUpdated, attribute.Bool("ok", report.SessionErr == nil))

	return report
}

// rejected is the result for a turn refused before dispatch. Nothing is
// logged or counted.
func rejected(req TurnRequest, ts time.Time, err error) *models.TurnResult {
	return &models.TurnResult{
		Success:   false,
		SessionID: req.SessionID,
		Agent:     models.AgentRef{ID: req.AgentID},
		Response:  ApologyText,
		Metadata:  models.TurnMetadata{Timestamp: ts},
		Execution: &models.ExecutionResult{
			AgentID:   req.AgentID,
			Timestamp: ts,
			Error:     err.Error(),
			Err:       err,
		},
	}
}

// turnLog traces phase transitions as span events and debug logs.
type turnLog struct {
	span    trace.Span
	session string
}

func (t *turnLog) enter(p Phase, attrs ...attribute.KeyValue) {
	t.span.AddEvent(string(p), trace.WithAttributes(attrs...))
	log.Debug().Str("session", t.session).Str("phase", string(p)).Msg("turn phase")
}
