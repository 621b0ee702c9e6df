package team

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/everydev1618/goteam/llm"
	"github.com/everydev1618/goteam/tools"
)

// Builder creates agent instances from templates and, through its meta-agent,
// from natural-language descriptions.
type Builder struct {
	registry *Registry
	client   llm.Client
	catalog  *tools.Catalog
}

// Override adjusts a template copy before an instance is created.
type Override func(*AgentTemplate)

// WithName renames the instantiated agent. The registered template keeps
// its own name.
func WithName(name string) Override {
	return func(t *AgentTemplate) {
		t.Name = name
	}
}

// WithTemperature overrides the template temperature.
func WithTemperature(temp float64) Override {
	return func(t *AgentTemplate) {
		t.Temperature = temp
	}
}

// WithMaxTokens overrides the template max token limit.
func WithMaxTokens(n int) Override {
	return func(t *AgentTemplate) {
		t.MaxTokens = n
	}
}

// WithModel overrides the template model.
func WithModel(model string) Override {
	return func(t *AgentTemplate) {
		t.Model = model
	}
}

// WithInstructions replaces the template instructions.
func WithInstructions(instructions string) Override {
	return func(t *AgentTemplate) {
		t.Instructions = instructions
	}
}

// WithTools replaces the template tool list.
func WithTools(names ...string) Override {
	return func(t *AgentTemplate) {
		t.Tools = names
	}
}

// NewBuilder creates a builder with the built-in templates registered.
func NewBuilder(client llm.Client, catalog *tools.Catalog) *Builder {
	registry := NewRegistry(catalog)
	for _, tmpl := range BuiltinTemplates() {
		// Built-ins carry no tool names, so registration cannot fail.
		registry.Register(tmpl)
	}

	return &Builder{
		registry: registry,
		client:   client,
		catalog:  catalog,
	}
}

// Registry returns the builder's template registry.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// CreateFromTemplate instantiates an agent from a registered template,
// applying any overrides to the instance's private copy.
func (b *Builder) CreateFromTemplate(name string, overrides ...Override) (*Instance, error) {
	tmpl, err := b.registry.Get(name)
	if err != nil {
		return nil, err
	}

	for _, o := range overrides {
		o(&tmpl)
	}
	if err := tmpl.Validate(b.catalog); err != nil {
		return nil, err
	}

	return NewInstance(tmpl, b.client, b.catalog), nil
}

// CreateCustom instantiates an agent from scratch without touching the
// registry.
func (b *Builder) CreateCustom(name, instructions string, overrides ...Override) (*Instance, error) {
	tmpl := AgentTemplate{
		Name:         name,
		Description:  "Custom agent",
		Instructions: instructions,
		Model:        DefaultModel,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
	}

	for _, o := range overrides {
		o(&tmpl)
	}
	if err := tmpl.Validate(b.catalog); err != nil {
		return nil, err
	}

	return NewInstance(tmpl, b.client, b.catalog), nil
}

// Recommendation is the meta-agent's answer to "what agent fits this task".
type Recommendation struct {
	// TemplateName is a registered template, or "" when Custom is set.
	TemplateName string `json:"template_name"`

	// Custom describes a from-scratch agent when no template fits.
	Custom *CustomSpec `json:"custom,omitempty"`

	// Overrides adjust the chosen configuration.
	Overrides RecommendedOverrides `json:"overrides"`

	// Reason explains the choice.
	Reason string `json:"reason"`
}

// CustomSpec describes a from-scratch agent recommendation.
type CustomSpec struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

// RecommendedOverrides are optional parameter adjustments.
type RecommendedOverrides struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// BuildFromDescription asks the meta-agent to configure an agent for the
// described task and instantiates it. Any completion or parse failure is
// returned as an InferenceError; no defaulted agent is created.
func (b *Builder) BuildFromDescription(ctx context.Context, description string) (*Instance, error) {
	rec, err := b.Recommend(ctx, description)
	if err != nil {
		return nil, err
	}

	overrides := rec.Overrides.asOverrides()

	if rec.Custom != nil {
		return b.CreateCustom(rec.Custom.Name, rec.Custom.Instructions, overrides...)
	}
	return b.CreateFromTemplate(rec.TemplateName, overrides...)
}

// Recommend asks the meta-agent which agent configuration fits the described
// task. It is read-only: nothing is instantiated or registered.
func (b *Builder) Recommend(ctx context.Context, description string) (*Recommendation, error) {
	meta, err := b.registry.Get(TemplateAgentBuilder)
	if err != nil {
		return nil, err
	}

	temp := meta.Temperature
	req := &llm.Request{
		Model:       meta.Model,
		Temperature: &temp,
		MaxTokens:   meta.MaxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: b.metaPrompt(meta.Instructions)},
			{Role: llm.RoleUser, Content: description},
		},
	}

	resp, err := b.client.Generate(ctx, req)
	if err != nil {
		return nil, &InferenceError{Stage: "completion", Err: err}
	}

	rec, err := parseRecommendation(resp.Content)
	if err != nil {
		return nil, &InferenceError{Stage: "parse", Err: err}
	}

	if rec.TemplateName != "" && !b.registry.Has(rec.TemplateName) {
		return nil, &InferenceError{
			Stage: "parse",
			Err:   fmt.Errorf("recommended template %q: %w", rec.TemplateName, ErrTemplateNotFound),
		}
	}
	if rec.TemplateName == "" && rec.Custom == nil {
		return nil, &InferenceError{
			Stage: "parse",
			Err:   fmt.Errorf("recommendation names no template and no custom spec"),
		}
	}

	return rec, nil
}

func (b *Builder) metaPrompt(instructions string) string {
	var templates strings.Builder
	for summary := range b.registry.List() {
		fmt.Fprintf(&templates, "- %s: %s\n", summary.Name, summary.Description)
	}

	return instructions + "\n\nAvailable agent templates:\n" + templates.String() + `
Given the user's task description, reply with a single JSON object and nothing else:
{
  "template_name": "<one of the templates above, or empty string>",
  "custom": {"name": "...", "instructions": "..."},
  "overrides": {"temperature": 0.3, "max_tokens": 2048, "model": "..."},
  "reason": "<one sentence>"
}
Use "custom" only when no template fits, and omit it otherwise. Omit override
fields you do not want to change.`
}

// parseRecommendation extracts the first JSON object from the reply and
// decodes it strictly.
func parseRecommendation(content string) (*Recommendation, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, err
	}

	var rec Recommendation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode recommendation: %w", err)
	}
	return &rec, nil
}

// extractJSONObject returns the first balanced {...} block in s.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in reply")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON object in reply")
}

func (o RecommendedOverrides) asOverrides() []Override {
	var out []Override
	if o.Temperature != nil {
		out = append(out, WithTemperature(*o.Temperature))
	}
	if o.MaxTokens > 0 {
		out = append(out, WithMaxTokens(o.MaxTokens))
	}
	if o.Model != "" {
		out = append(out, WithModel(o.Model))
	}
	return out
}
