package telemetry_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agentoven/agentdesk/internal/telemetry"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	m.TurnCompleted("ledger", true)
	m.ProviderCall("openai", "gpt-4o", time.Second, true, 1, 1)
	m.StoreFailed(telemetry.OpLog)
}

func TestMetrics_Exposition(t *testing.T) {
	m := telemetry.NewMetrics()
	m.TurnCompleted("ledger", true)
	m.TurnCompleted("ledger", false)
	m.ProviderCall("anthropic", "claude", 1500*time.Millisecond, true, 100, 20)
	m.StoreFailed(telemetry.OpSession)

	n, err := testutil.GatherAndCount(m.Registry(), "agentdesk_turns_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("turns_total series = %d, want 2", n)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`agentdesk_turns_total{agent="ledger",outcome="success"} 1`,
		`agentdesk_tokens_total{kind="prompt",provider="anthropic"} 100`,
		`agentdesk_store_failures_total{op="upsert_session"} 1`,
		`agentdesk_provider_request_duration_seconds_count{model="claude",outcome="success",provider="anthropic"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
