// Package providers implements one adapter per model provider.
//
// Each adapter owns the provider's request shaping and response parsing and
// normalizes the result into a Completion. Generation policy is fixed here and
// not configurable per call: temperature 0.7, at most 4096 output tokens.
//
// Every failure is returned as a *ProviderError carrying the provider tag and
// the upstream message verbatim. Adapters are long-lived and safe for
// concurrent use; each call carries its own payload.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agentoven/agentdesk/pkg/models"
)

const (
	// Temperature is the sampling temperature sent with every request.
	Temperature = 0.7

	// MaxOutputTokens caps the completion length of every request.
	MaxOutputTokens = 4096

	// maxErrorBodySize limits how much of an error response body is read.
	maxErrorBodySize = 1 << 20
)

// ErrMissingCredential is returned by adapter constructors when no API key is set.
var ErrMissingCredential = errors.New("missing API credential")

// Completion is the normalized result of one provider call.
type Completion struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Usage converts the completion counts into a TokenUsage.
func (c *Completion) Usage() models.TokenUsage {
	return models.NewTokenUsage(c.PromptTokens, c.CompletionTokens)
}

// DeltaFunc receives streamed text chunks. Returning an error stops the stream.
type DeltaFunc func(delta string) error

// Adapter is the common contract of every provider.
type Adapter interface {
	// Provider returns the provider tag.
	Provider() models.Provider

	// Invoke sends one non-streaming request.
	Invoke(ctx context.Context, systemPrompt string, messages []models.Message, model string) (*Completion, error)

	// Stream sends one streaming request, calling onDelta for each text chunk,
	// and returns the assembled completion. It stops when ctx is done or
	// onDelta returns an error.
	Stream(ctx context.Context, systemPrompt string, messages []models.Message, model string, onDelta DeltaFunc) (*Completion, error)
}

// Config configures a live adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

func (c Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// ProviderError is the common error shape of every adapter.
type ProviderError struct {
	Provider   models.Provider
	StatusCode int    // 0 when the call never got an HTTP response
	Message    string // upstream message, verbatim
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(p models.Provider, status int, msg string, err error) *ProviderError {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &ProviderError{Provider: p, StatusCode: status, Message: msg, Err: err}
}

// Set is the closed map of configured adapters, built once at startup.
type Set struct {
	adapters map[models.Provider]Adapter
}

// NewSet indexes adapters by their provider tag. A later adapter for the same
// provider replaces an earlier one.
func NewSet(adapters ...Adapter) *Set {
	s := &Set{adapters: make(map[models.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		s.adapters[a.Provider()] = a
	}
	return s
}

// Get returns the adapter for p.
func (s *Set) Get(p models.Provider) (Adapter, bool) {
	a, ok := s.adapters[p]
	return a, ok
}

// Has reports whether an adapter is configured for p.
func (s *Set) Has(p models.Provider) bool {
	_, ok := s.adapters[p]
	return ok
}
