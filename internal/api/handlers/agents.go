package handlers

import "net/http"

type agentItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	Default      bool     `json:"default"`
}

// ListAgents lists the configured agents without their system prompts.
// GET /agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	def := h.Agents.Default().ID
	agents := h.Agents.List()

	out := make([]agentItem, 0, len(agents))
	for _, a := range agents {
		item := agentItem{
			ID:           a.ID,
			Name:         a.DisplayName,
			Capabilities: a.CapabilityTags,
			Default:      a.ID == def,
		}
		if b, err := h.Agents.ModelBindingFor(a.ID); err == nil {
			item.Provider, item.Model = string(b.Provider), b.ModelName
		}
		out = append(out, item)
	}
	respondOK(w, out)
}
