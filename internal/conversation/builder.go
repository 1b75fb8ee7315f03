// Package conversation assembles the bounded message list sent to a provider
// for one turn.
package conversation

import (
	"strings"

	"github.com/agentoven/agentdesk/pkg/models"
)

// MaxHistoryTurns is the number of stored turns kept in the window.
const MaxHistoryTurns = 10

// Build turns the prior stored turns into alternating user/assistant messages
// and appends the new user message last. Only the last MaxHistoryTurns turns
// are kept; their relative order is preserved. prior must be oldest first.
// A turn with a blank message or reply is dropped whole so that no empty
// content reaches a provider and roles keep alternating.
func Build(prior []models.StoredTurn, newUserText string) []models.Message {
	usable := make([]models.StoredTurn, 0, len(prior))
	for _, t := range prior {
		if strings.TrimSpace(t.UserMessage) == "" || strings.TrimSpace(t.AgentResponse) == "" {
			continue
		}
		usable = append(usable, t)
	}
	if len(usable) > MaxHistoryTurns {
		usable = usable[len(usable)-MaxHistoryTurns:]
	}

	msgs := make([]models.Message, 0, len(usable)*2+1)
	for _, t := range usable {
		msgs = append(msgs,
			models.Message{Role: models.RoleUser, Content: t.UserMessage},
			models.Message{Role: models.RoleAssistant, Content: t.AgentResponse},
		)
	}
	return append(msgs, models.Message{Role: models.RoleUser, Content: newUserText})
}
