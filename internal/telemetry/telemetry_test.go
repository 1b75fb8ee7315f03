package telemetry_test

import (
	"context"
	"testing"

	"github.com/agentoven/agentdesk/internal/config"
	"github.com/agentoven/agentdesk/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	cases := map[string]config.TelemetryConfig{
		"disabled":    {Enabled: false, OTLPEndpoint: "collector:4317", ServiceName: "agentdesk"},
		"no endpoint": {Enabled: true, ServiceName: "agentdesk"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			shutdown, err := telemetry.Init(context.Background(), cfg, "test")
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown() error = %v", err)
			}
		})
	}
}

func TestTracer_StartsSpansBeforeInit(t *testing.T) {
	_, span := telemetry.Tracer().Start(context.Background(), "orchestrator.turn")
	defer span.End()
	if span == nil {
		t.Fatal("Tracer().Start() returned nil span")
	}
}
