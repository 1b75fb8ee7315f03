package conversation_test

import (
	"fmt"
	"testing"

	"github.com/agentoven/agentdesk/internal/conversation"
	"github.com/agentoven/agentdesk/pkg/models"
)

func turns(n int) []models.StoredTurn {
	out := make([]models.StoredTurn, n)
	for i := range out {
		out[i] = models.StoredTurn{
			UserMessage:   fmt.Sprintf("q%d", i),
			AgentResponse: fmt.Sprintf("a%d", i),
		}
	}
	return out
}

func TestBuild_NoHistory(t *testing.T) {
	msgs := conversation.Build(nil, "hello")
	if len(msgs) != 1 {
		t.Fatalf("len(Build()) = %d, want 1", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("Build()[0] = %+v, want user hello", msgs[0])
	}
}

func TestBuild_WindowBound(t *testing.T) {
	msgs := conversation.Build(turns(25), "new question")

	if want := conversation.MaxHistoryTurns*2 + 1; len(msgs) != want {
		t.Fatalf("len(Build()) = %d, want %d", len(msgs), want)
	}
	// The oldest kept turn is #15 of 0..24.
	if msgs[0].Content != "q15" || msgs[1].Content != "a15" {
		t.Errorf("first kept turn = %q/%q, want q15/a15", msgs[0].Content, msgs[1].Content)
	}
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleUser || last.Content != "new question" {
		t.Errorf("last message = %+v, want the new user message", last)
	}
}

func TestBuild_PreservesOrderAndRoles(t *testing.T) {
	msgs := conversation.Build(turns(3), "next")

	want := []models.Message{
		{Role: models.RoleUser, Content: "q0"},
		{Role: models.RoleAssistant, Content: "a0"},
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
		{Role: models.RoleAssistant, Content: "a2"},
		{Role: models.RoleUser, Content: "next"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("len(Build()) = %d, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("Build()[%d] = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	prior := turns(12)
	_ = conversation.Build(prior, "x")
	if len(prior) != 12 || prior[0].UserMessage != "q0" {
		t.Error("Build() mutated its input slice")
	}
}

func TestBuild_SkipsBlankTurns(t *testing.T) {
	prior := []models.StoredTurn{
		{UserMessage: "q0", AgentResponse: "a0"},
		{UserMessage: "q1", AgentResponse: ""},
		{UserMessage: "  ", AgentResponse: "a2"},
		{UserMessage: "q3", AgentResponse: "a3"},
	}
	msgs := conversation.Build(prior, "next")

	want := []string{"q0", "a0", "q3", "a3", "next"}
	if len(msgs) != len(want) {
		t.Fatalf("len(Build()) = %d, want %d: %+v", len(msgs), len(want), msgs)
	}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("Build()[%d].Content = %q, want %q", i, m.Content, want[i])
		}
		if m.Content == "" {
			t.Errorf("Build()[%d] is empty", i)
		}
	}
}

func TestBuild_BlankTurnsDoNotCountTowardWindow(t *testing.T) {
	prior := turns(conversation.MaxHistoryTurns)
	prior = append(prior, models.StoredTurn{UserMessage: "q-blank"})

	msgs := conversation.Build(prior, "next")
	if want := conversation.MaxHistoryTurns*2 + 1; len(msgs) != want {
		t.Fatalf("len(Build()) = %d, want %d", len(msgs), want)
	}
	if msgs[0].Content != "q0" {
		t.Errorf("first kept message = %q, want q0", msgs[0].Content)
	}
}
