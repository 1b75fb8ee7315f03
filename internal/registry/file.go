package registry

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk shape of an agents file:
//
//	agents:
//	  - id: ledger
//	    name: Ledger
//	    capabilities: [finance, budget]
//	    system_prompt: You are Ledger...
//	    binding: {provider: anthropic, model: claude-sonnet-4-20250514}
//	    default: false
type fileFormat struct {
	Agents []AgentSpec `yaml:"agents"`
}

// LoadFile reads an agent table from a YAML file and validates it.
// The file replaces the builtin table entirely.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML agent table and validates it.
func Parse(data []byte) (*Registry, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode agents file: %w", err)
	}
	return New(f.Agents)
}
