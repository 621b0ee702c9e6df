package team

import (
	"fmt"
	"strings"

	"github.com/everydev1618/goteam/tools"
)

// Default template configuration values
const (
	DefaultModel       = "llama3-70b-8192"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// AgentTemplate is a named blueprint for creating agent instances.
// Templates are immutable once registered; instances bind a copy.
type AgentTemplate struct {
	// Name uniquely identifies the template in a registry
	Name string `json:"name" yaml:"name"`

	// Description is a short human-readable summary
	Description string `json:"description" yaml:"description"`

	// Instructions is the system prompt for agents built from this template
	Instructions string `json:"instructions" yaml:"instructions"`

	// Model is the completion model ID
	Model string `json:"model" yaml:"model"`

	// Temperature for generation (0.0-2.0)
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens limits response length
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Tools names the catalog tools available to agents from this template
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Validate checks the template's fields. When a catalog is given, tool names
// are checked against it.
func (t *AgentTemplate) Validate(catalog *tools.Catalog) error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(t.Instructions) == "" {
		return &ValidationError{Field: "instructions", Reason: "must not be empty"}
	}
	if t.Temperature < 0 || t.Temperature > 2 {
		return &ValidationError{Field: "temperature", Reason: fmt.Sprintf("%g is outside [0, 2]", t.Temperature)}
	}
	if t.MaxTokens <= 0 {
		return &ValidationError{Field: "max_tokens", Reason: "must be positive"}
	}
	if catalog != nil {
		for _, name := range t.Tools {
			if !catalog.Has(name) {
				return &ValidationError{Field: "tools", Reason: fmt.Sprintf("tool %q is not in the catalog", name)}
			}
		}
	}
	return nil
}

// clone returns a deep copy so registered templates stay immutable.
func (t AgentTemplate) clone() AgentTemplate {
	out := t
	out.Tools = append([]string(nil), t.Tools...)
	return out
}
