// Package router picks the agent persona that answers a free-text message.
//
// Scoring is keyword based: every capability tag of an agent that appears in
// the message as a whole word (or whole phrase, for multi-word tags) adds one
// point per word in the tag, so "cash flow" outweighs "flow". The highest
// score wins; ties go to the agent declared first in the registry, and a
// message that matches nothing goes to the registry's default agent.
//
// The router is a pure function of the registry and the text: no state, no
// randomness, safe for concurrent use.
package router

import (
	"strings"
	"unicode"

	"github.com/agentoven/agentdesk/pkg/models"
)

// Catalog is the subset of the agent registry the router reads.
type Catalog interface {
	List() []models.AgentDescriptor
	Default() models.AgentDescriptor
}

// Score is the routing score of one agent for a message.
type Score struct {
	AgentID string   `json:"agent_id"`
	Score   int      `json:"score"`
	Matched []string `json:"matched,omitempty"`
}

// Router selects agents from message text.
type Router struct {
	catalog Catalog
}

// New creates a router over the given agent catalog.
func New(c Catalog) *Router {
	return &Router{catalog: c}
}

// Route returns the agent that should answer text. It always returns an agent.
func (r *Router) Route(text string) models.AgentDescriptor {
	best, bestScore := r.catalog.Default(), 0
	norm := normalize(text)
	if norm == "" {
		return best
	}
	for _, a := range r.catalog.List() {
		s, _ := score(norm, a.CapabilityTags)
		// Strictly greater keeps the first-declared agent on ties.
		if s > bestScore {
			best, bestScore = a, s
		}
	}
	return best
}

// Explain returns the score of every agent for text, in declaration order.
func (r *Router) Explain(text string) []Score {
	norm := normalize(text)
	agents := r.catalog.List()
	out := make([]Score, 0, len(agents))
	for _, a := range agents {
		s, matched := score(norm, a.CapabilityTags)
		out = append(out, Score{AgentID: a.ID, Score: s, Matched: matched})
	}
	return out
}

func score(norm string, tags []string) (int, []string) {
	if norm == "" {
		return 0, nil
	}
	total := 0
	var matched []string
	for _, tag := range tags {
		t := strings.TrimSpace(normalize(tag))
		if t == "" {
			continue
		}
		if strings.Contains(norm, " "+t+" ") {
			total += len(strings.Fields(t))
			matched = append(matched, t)
		}
	}
	return total, matched
}

// normalize lowercases text and reduces it to space-separated words padded
// with a leading and trailing space, so whole-word matching is a substring test.
func normalize(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}
	return " " + strings.Join(words, " ") + " "
}
