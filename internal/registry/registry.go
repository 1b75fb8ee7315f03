// Package registry holds the static table of agent personas and their model
// bindings.
//
// A Registry is validated once at construction and never mutated afterwards,
// so it is shared across concurrent turns without locking. Every agent must
// carry a system prompt and exactly one model binding; a table that violates
// this fails at startup instead of at call time.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentoven/agentdesk/pkg/models"
)

var (
	// ErrAgentNotFound is returned when no agent has the requested id.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrBindingNotFound is returned when an agent id has no model binding.
	ErrBindingNotFound = errors.New("model binding not found")
)

// AgentSpec is one row of the static agent table: the descriptor, its model
// binding, and whether it is the router's fallback.
type AgentSpec struct {
	models.AgentDescriptor `yaml:",inline"`
	Binding                models.ModelBinding `yaml:"binding"`
	Default                bool                `yaml:"default"`
}

// Registry is the read-only lookup over the agent table.
type Registry struct {
	order     []string
	agents    map[string]models.AgentDescriptor
	bindings  map[string]models.ModelBinding
	defaultID string
}

// New validates specs and builds a Registry. Declaration order is kept and
// used by the router to break ties.
func New(specs []AgentSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, errors.New("registry: no agents configured")
	}

	r := &Registry{
		order:    make([]string, 0, len(specs)),
		agents:   make(map[string]models.AgentDescriptor, len(specs)),
		bindings: make(map[string]models.ModelBinding, len(specs)),
	}

	var errs []error
	for i, spec := range specs {
		if err := validateSpec(spec); err != nil {
			errs = append(errs, fmt.Errorf("agent #%d (%q): %w", i, spec.ID, err))
			continue
		}
		if _, dup := r.agents[spec.ID]; dup {
			errs = append(errs, fmt.Errorf("agent #%d: duplicate id %q", i, spec.ID))
			continue
		}
		if spec.Default {
			if r.defaultID != "" {
				errs = append(errs, fmt.Errorf("agent #%d (%q): default already set to %q", i, spec.ID, r.defaultID))
				continue
			}
			r.defaultID = spec.ID
		}

		desc := spec.AgentDescriptor
		desc.CapabilityTags = normalizeTags(desc.CapabilityTags)

		r.order = append(r.order, spec.ID)
		r.agents[spec.ID] = desc
		r.bindings[spec.ID] = spec.Binding
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("registry: invalid agent table: %w", errors.Join(errs...))
	}
	if r.defaultID == "" {
		return nil, errors.New("registry: no default agent configured")
	}
	return r, nil
}

func validateSpec(spec AgentSpec) error {
	switch {
	case strings.TrimSpace(spec.ID) == "":
		return errors.New("empty id")
	case strings.TrimSpace(spec.DisplayName) == "":
		return errors.New("empty display name")
	case strings.TrimSpace(spec.SystemPrompt) == "":
		return errors.New("empty system prompt")
	case spec.Binding.Provider == "":
		return errors.New("missing model binding")
	case !spec.Binding.Provider.Valid():
		return fmt.Errorf("unknown provider %q", spec.Binding.Provider)
	case strings.TrimSpace(spec.Binding.ModelName) == "":
		return errors.New("empty model name")
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (models.AgentDescriptor, error) {
	a, ok := r.agents[id]
	if !ok {
		return models.AgentDescriptor{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a, nil
}

// ModelBindingFor returns the model binding for id.
func (r *Registry) ModelBindingFor(id string) (models.ModelBinding, error) {
	b, ok := r.bindings[id]
	if !ok {
		return models.ModelBinding{}, fmt.Errorf("%w: %s", ErrBindingNotFound, id)
	}
	return b, nil
}

// List returns all descriptors in declaration order.
func (r *Registry) List() []models.AgentDescriptor {
	out := make([]models.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Default returns the fallback agent.
func (r *Registry) Default() models.AgentDescriptor {
	return r.agents[r.defaultID]
}

// Providers returns the distinct providers referenced by any binding, in
// first-use order.
func (r *Registry) Providers() []models.Provider {
	var out []models.Provider
	seen := make(map[models.Provider]bool)
	for _, id := range r.order {
		p := r.bindings[id].Provider
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
