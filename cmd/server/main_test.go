package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestRouteCommand(t *testing.T) {
	out := run(t, "route", "Help", "me", "draft", "a", "financial", "report")
	if !strings.HasPrefix(out, "ledger (Ledger)") {
		t.Errorf("route output = %q, want ledger first", out)
	}

	out = run(t, "route", "--explain", "write a blog post")
	if !strings.HasPrefix(out, "quill") || !strings.Contains(out, "blog") {
		t.Errorf("route --explain output = %q", out)
	}
}

func TestAgentsCommand(t *testing.T) {
	out := run(t, "agents")
	for _, id := range []string{"concierge", "ledger", "quill", "forge", "compass", "harbor"} {
		if !strings.Contains(out, id) {
			t.Errorf("agents output missing %q:\n%s", id, out)
		}
	}
}

func TestAgentsFileFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	content := `agents:
  - id: solo
    name: Solo
    capabilities: [anything]
    system_prompt: You answer everything.
    binding: {provider: openai, model: gpt-4o-mini}
    default: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	out := run(t, "--agents-file", path, "route", "hello")
	if !strings.HasPrefix(out, "solo (Solo)") {
		t.Errorf("route output = %q, want solo", out)
	}
}
