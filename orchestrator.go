package team

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/everydev1618/goteam/adapter"
	"github.com/everydev1618/goteam/llm"
)

// Phase tracks where the orchestrator is in handling a request.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseRouting     Phase = "routing"
	PhaseDispatched  Phase = "dispatched"
	PhaseAggregating Phase = "aggregating"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
)

// ChatResult is the orchestrator's answer to one request.
type ChatResult struct {
	// Response is the merged reply.
	Response string `json:"response"`

	// Orchestrator names the coordinating role.
	Orchestrator string `json:"orchestrator"`

	// Roles lists the specialists the request was dispatched to, in
	// dispatch order.
	Roles []string `json:"roles"`

	// Failed lists roles whose dispatch failed; their sections in the
	// response are degraded rather than missing.
	Failed []string `json:"failed,omitempty"`
}

// Orchestrator is the team's single point of contact. It routes each
// incoming message to specialists, runs them concurrently, and merges
// their replies.
type Orchestrator struct {
	builder  *Builder
	roster   *Roster
	client   llm.Client
	leadRole string

	phase      Phase // most recent dispatch only, see Phase
	transcript []Message
	mu         sync.RWMutex
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*orchestratorConfig)

type orchestratorConfig struct {
	leadRole    string
	defaultTeam bool
}

// WithLeadRole renames the coordinating role.
func WithLeadRole(role string) OrchestratorOption {
	return func(c *orchestratorConfig) {
		c.leadRole = role
	}
}

// WithoutDefaultTeam starts with only the team lead; members are added
// explicitly via AddMember.
func WithoutDefaultTeam() OrchestratorOption {
	return func(c *orchestratorConfig) {
		c.defaultTeam = false
	}
}

// NewOrchestrator assembles a team. By default the roster holds the team
// lead plus the stock specialists.
func NewOrchestrator(builder *Builder, opts ...OrchestratorOption) (*Orchestrator, error) {
	cfg := orchestratorConfig{
		leadRole:    TemplateTeamLead,
		defaultTeam: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	o := &Orchestrator{
		builder:  builder,
		roster:   NewRoster(),
		client:   builder.client,
		leadRole: cfg.leadRole,
		phase:    PhaseIdle,
	}

	lead, err := builder.CreateFromTemplate(TemplateTeamLead)
	if err != nil {
		return nil, err
	}
	if _, err := o.roster.Add(cfg.leadRole, lead, "coordination", "task_assignment", "synthesis"); err != nil {
		return nil, err
	}

	if cfg.defaultTeam {
		defaults := []struct {
			template    string
			specialties []string
		}{
			{TemplateCodeAssistant, []string{"coding", "debugging", "code_review", "architecture"}},
			{TemplateDataAnalyst, []string{"data_analysis", "reporting", "statistics", "visualization"}},
			{TemplateCustomerSupport, []string{"support", "troubleshooting", "communication"}},
			{TemplateContentCreator, []string{"writing", "documentation", "content_strategy"}},
		}
		for _, d := range defaults {
			inst, err := builder.CreateFromTemplate(d.template)
			if err != nil {
				return nil, err
			}
			if _, err := o.roster.Add(d.template, inst, d.specialties...); err != nil {
				return nil, err
			}
		}
	}

	return o, nil
}

// Roster returns the team roster.
func (o *Orchestrator) Roster() *Roster {
	return o.roster
}

// Status snapshots the team.
func (o *Orchestrator) Status() TeamStatus {
	return o.roster.Status()
}

// Phase reports the stage of the most recently started dispatch. It is a
// progress indicator for observability; under concurrent Chat calls the
// value reflects whichever dispatch last moved, so per-request outcomes
// should be read from ChatResult instead.
func (o *Orchestrator) Phase() Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

// History returns the orchestrator-level conversation transcript.
func (o *Orchestrator) History() []Message {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Message(nil), o.transcript...)
}

// AddMember creates a custom specialist and puts it on the roster. API
// descriptions, when given, are run through the adapter; the generated
// tools are registered under the member's role prefix and wired into the
// new instance.
func (o *Orchestrator) AddMember(ctx context.Context, role string, specialties []string, instructions string, apiSpecs ...[]byte) error {
	var toolNames []string
	removeTools := func() {
		for _, name := range toolNames {
			o.builder.catalog.Remove(name)
		}
	}
	for _, spec := range apiSpecs {
		specs, err := adapter.GenerateToolSpecs(ctx, spec, adapter.WithPrefix(role))
		if err != nil {
			removeTools()
			return fmt.Errorf("add member %s: %w", role, err)
		}
		if err := adapter.RegisterAll(o.builder.catalog, specs); err != nil {
			removeTools()
			return fmt.Errorf("add member %s: %w", role, err)
		}
		for _, s := range specs {
			toolNames = append(toolNames, s.Name)
		}
	}

	overrides := []Override{}
	if len(toolNames) > 0 {
		overrides = append(overrides, WithTools(toolNames...))
	}

	inst, err := o.builder.CreateCustom(role, instructions, overrides...)
	if err != nil {
		removeTools()
		return err
	}

	if _, err := o.roster.Add(role, inst, specialties...); err != nil {
		removeTools()
		return err
	}

	slog.Info("team member added", "role", role, "specialties", specialties, "tools", len(toolNames))
	return nil
}

// Chat handles one request end to end: route, dispatch, aggregate.
func (o *Orchestrator) Chat(ctx context.Context, message string) (*ChatResult, error) {
	o.setPhase(PhaseRouting)

	roles := o.route(ctx, message)
	slog.Debug("request routed", "roles", roles)

	o.setPhase(PhaseDispatched)
	results := o.fanOut(ctx, roles, message)

	o.setPhase(PhaseAggregating)

	var succeeded, failed []dispatchResult
	for _, res := range results {
		if res.err != nil {
			slog.Warn("dispatch failed", "role", res.role, "error", res.err)
			failed = append(failed, res)
		} else {
			succeeded = append(succeeded, res)
		}
	}

	if len(succeeded) == 0 {
		o.setPhase(PhaseFailed)
		errs := make([]string, len(failed))
		for i, f := range failed {
			errs[i] = (&DispatchError{Role: f.role, Err: f.err}).Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrAllDispatchesFailed, strings.Join(errs, "; "))
	}

	response := o.aggregate(ctx, message, results)

	result := &ChatResult{
		Response:     response,
		Orchestrator: o.leadRole,
		Roles:        roles,
	}
	for _, f := range failed {
		result.Failed = append(result.Failed, f.role)
	}

	o.record(message, response)
	o.setPhase(PhaseDone)
	return result, nil
}

// ChatStream handles one request, streaming the reply. Single-specialist
// requests stream token by token; multi-specialist requests aggregate first
// and then emit the merged reply.
func (o *Orchestrator) ChatStream(ctx context.Context, message string) (*Stream, error) {
	o.setPhase(PhaseRouting)
	roles := o.route(ctx, message)

	if len(roles) == 1 {
		entry, err := o.roster.Get(roles[0])
		if err != nil {
			o.setPhase(PhaseFailed)
			return nil, err
		}
		o.setPhase(PhaseDispatched)
		return o.streamDispatch(ctx, entry, message)
	}

	stream := newStream()
	go func() {
		result, err := o.Chat(ctx, message)
		if err != nil {
			stream.finish(err)
			return
		}
		stream.push(result.Response)
		stream.finish(nil)
	}()
	return stream, nil
}

// streamDispatch streams one member's reply, keeping the roster's busy
// flag and completed counter consistent with the stream outcome.
func (o *Orchestrator) streamDispatch(ctx context.Context, entry *RosterEntry, message string) (*Stream, error) {
	select {
	case entry.gate <- struct{}{}:
	case <-ctx.Done():
		o.setPhase(PhaseFailed)
		return nil, ctx.Err()
	}

	entry.mu.Lock()
	entry.busy = true
	entry.currentTask = summarizeTask(message)
	entry.mu.Unlock()

	inner, err := entry.Instance.RespondStream(ctx, message)
	if err != nil {
		o.finishEntry(entry, false)
		return nil, err
	}

	outer := newStream()
	go func() {
		for chunk := range inner.Chunks() {
			outer.push(chunk)
		}
		streamErr := inner.Err()
		o.finishEntry(entry, streamErr == nil)
		if streamErr == nil {
			o.record(message, inner.Response())
			o.setPhase(PhaseDone)
		} else {
			o.setPhase(PhaseFailed)
		}
		outer.finish(streamErr)
	}()
	return outer, nil
}

func (o *Orchestrator) finishEntry(entry *RosterEntry, success bool) {
	entry.mu.Lock()
	entry.busy = false
	entry.currentTask = ""
	if success {
		entry.tasksCompleted++
	}
	entry.mu.Unlock()
	<-entry.gate
}

type dispatchResult struct {
	role  string
	reply string
	err   error
}

// fanOut dispatches to all roles concurrently and returns results in
// dispatch order.
func (o *Orchestrator) fanOut(ctx context.Context, roles []string, message string) []dispatchResult {
	results := make([]dispatchResult, len(roles))

	var wg sync.WaitGroup
	for i, role := range roles {
		wg.Add(1)
		go func(i int, role string) {
			defer wg.Done()
			reply, err := o.roster.Dispatch(ctx, role, message)
			results[i] = dispatchResult{role: role, reply: reply, err: err}
		}(i, role)
	}
	wg.Wait()

	return results
}

// route picks the specialists for a message. Classification runs as a fixed
// prompt against the completion client so routing chatter never enters any
// member's history. Anything unparseable falls back to the team lead.
func (o *Orchestrator) route(ctx context.Context, message string) []string {
	roles := o.roster.Roles()
	if len(roles) <= 1 {
		return []string{o.leadRole}
	}

	var desc strings.Builder
	for _, role := range roles {
		entry, err := o.roster.Get(role)
		if err != nil {
			continue
		}
		fmt.Fprintf(&desc, "- %s: %s\n", role, strings.Join(entry.Specialties, ", "))
	}

	prompt := fmt.Sprintf(`You assign work on a team of specialist agents.

Team members and their specialties:
%s
Request: %s

Reply with a JSON array of the role names best suited to handle this request,
most relevant first. Use ["%s"] when no specialist clearly fits or the request
needs general coordination. Reply with the JSON array only.`, desc.String(), message, o.leadRole)

	// Classification runs on the lead's model.
	model := DefaultModel
	if entry, err := o.roster.Get(o.leadRole); err == nil {
		model = entry.Instance.Template().Model
	}

	temp := 0.0
	resp, err := o.client.Generate(ctx, &llm.Request{
		Model:       model,
		Temperature: &temp,
		MaxTokens:   256,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		slog.Warn("routing classification failed, defaulting to lead", "error", err)
		return []string{o.leadRole}
	}

	selected := parseRoleList(resp.Content)

	// Drop hallucinated roles.
	known := make(map[string]bool, len(roles))
	for _, r := range roles {
		known[r] = true
	}
	var valid []string
	for _, r := range selected {
		if known[r] {
			valid = append(valid, r)
		}
	}

	if len(valid) == 0 {
		return []string{o.leadRole}
	}
	return valid
}

// parseRoleList extracts the first JSON array of strings from a reply.
func parseRoleList(content string) []string {
	start := strings.IndexByte(content, '[')
	end := strings.LastIndexByte(content, ']')
	if start < 0 || end <= start {
		return nil
	}

	var roles []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &roles); err != nil {
		return nil
	}
	return roles
}

// aggregate merges dispatch results into one reply. A single successful
// reply passes through untouched; multiple replies are synthesized by the
// lead persona, with failed dispatches shown as degraded entries.
func (o *Orchestrator) aggregate(ctx context.Context, message string, results []dispatchResult) string {
	if len(results) == 1 && results[0].err == nil {
		return results[0].reply
	}

	var sections strings.Builder
	for _, res := range results {
		if res.err != nil {
			fmt.Fprintf(&sections, "## %s\n(unavailable: %v)\n\n", res.role, res.err)
		} else {
			fmt.Fprintf(&sections, "## %s\n%s\n\n", res.role, res.reply)
		}
	}

	lead, err := o.builder.registry.Get(TemplateTeamLead)
	if err != nil {
		return sections.String()
	}

	prompt := fmt.Sprintf(`The team was asked:
%s

The specialists contributed:

%s
Combine these contributions into one coherent answer. Keep every specialist's
substance; note briefly where a specialist was unavailable.`, message, sections.String())

	temp := lead.Temperature
	resp, err := o.client.Generate(ctx, &llm.Request{
		Model:       lead.Model,
		Temperature: &temp,
		MaxTokens:   lead.MaxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: lead.Instructions},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		slog.Warn("synthesis failed, returning raw sections", "error", err)
		return sections.String()
	}
	return resp.Content
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) record(message, response string) {
	now := time.Now()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transcript = append(o.transcript,
		Message{Role: MessageRoleUser, Content: message, Timestamp: now},
		Message{Role: MessageRoleAgent, Content: response, Origin: o.leadRole, Timestamp: now},
	)
}
