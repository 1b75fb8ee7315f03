package registry

import "github.com/agentoven/agentdesk/pkg/models"

// Builtin returns the default agent table shipped with the server.
// concierge is the fallback for messages no other persona claims.
func Builtin() []AgentSpec {
	return []AgentSpec{
		{
			AgentDescriptor: models.AgentDescriptor{
				ID:             "concierge",
				DisplayName:    "Concierge",
				CapabilityTags: []string{"help", "question", "general", "getting started", "account", "settings"},
				SystemPrompt: "You are Concierge, the front-desk assistant of the workspace. " +
					"Answer general questions clearly and briefly, and point the user to the right specialist when a request needs deeper expertise.",
			},
			Binding: models.ModelBinding{Provider: models.ProviderOpenAI, ModelName: "gpt-4o-mini"},
			Default: true,
		},
		{
			AgentDescriptor: models.AgentDescriptor{
				ID:          "ledger",
				DisplayName: "Ledger",
				CapabilityTags: []string{
					"finance", "financial", "budget", "forecast", "revenue", "expenses", "invoice",
					"accounting", "tax", "cash flow", "profit", "pricing", "financial report",
				},
				SystemPrompt: "You are Ledger, a meticulous finance analyst. " +
					"Help with budgets, forecasts, financial statements and reports. Show your numbers, state assumptions, and flag anything that needs an accountant's review.",
			},
			Binding: models.ModelBinding{Provider: models.ProviderAnthropic, ModelName: "claude-sonnet-4-20250514"},
		},
		{
			AgentDescriptor: models.AgentDescriptor{
				ID:          "quill",
				DisplayName: "Quill",
				CapabilityTags: []string{
					"write", "writing", "draft", "blog", "copy", "email", "newsletter",
					"marketing", "headline", "tone", "proofread", "social media",
				},
				SystemPrompt: "You are Quill, a senior copywriter. " +
					"Write and edit clear, on-brand prose. Ask about audience and tone when they are not given, and keep drafts tight.",
			},
			Binding: models.ModelBinding{Provider: models.ProviderAnthropic, ModelName: "claude-3-5-haiku-20241022"},
		},
		{
			AgentDescriptor: models.AgentDescriptor{
				ID:          "forge",
				DisplayName: "Forge",
				CapabilityTags: []string{
					"code", "coding", "bug", "debug", "api", "deploy", "database", "sql",
					"function", "error", "stack trace", "refactor",
				},
				SystemPrompt: "You are Forge, a pragmatic staff engineer. " +
					"Help with code, debugging and architecture. Prefer small, working examples and explain trade-offs briefly.",
			},
			Binding: models.ModelBinding{Provider: models.ProviderOpenAI, ModelName: "gpt-4o"},
		},
		{
			AgentDescriptor: models.AgentDescriptor{
				ID:          "compass",
				DisplayName: "Compass",
				CapabilityTags: []string{
					"strategy", "research", "market", "competitor", "competitors", "roadmap",
					"plan", "analysis", "swot", "go to market",
				},
				SystemPrompt: "You are Compass, a strategy consultant. " +
					"Structure ambiguous business questions, research markets and competitors, and end with concrete next steps.",
			},
			Binding: models.ModelBinding{Provider: models.ProviderOpenAI, ModelName: "gpt-4o"},
		},
		{
			AgentDescriptor: models.AgentDescriptor{
				ID:          "harbor",
				DisplayName: "Harbor",
				CapabilityTags: []string{
					"support", "customer", "complaint", "refund", "ticket", "reply to customer",
					"onboarding", "churn",
				},
				SystemPrompt: "You are Harbor, a customer-support lead. " +
					"Draft empathetic, accurate replies to customers and suggest how to resolve their issue.",
			},
			Binding: models.ModelBinding{Provider: models.ProviderOpenAI, ModelName: "gpt-4o-mini"},
		},
	}
}

// MustBuiltin builds the builtin registry and panics if the table is invalid.
func MustBuiltin() *Registry {
	r, err := New(Builtin())
	if err != nil {
		panic(err)
	}
	return r
}
