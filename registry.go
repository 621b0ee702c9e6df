package team

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/everydev1618/goteam/tools"
)

// Registry holds named agent templates.
type Registry struct {
	templates map[string]AgentTemplate
	catalog   *tools.Catalog
	mu        sync.RWMutex
}

// TemplateSummary is a lightweight listing entry.
type TemplateSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewRegistry creates an empty registry. The catalog, when non-nil, is used
// to validate template tool names on registration.
func NewRegistry(catalog *tools.Catalog) *Registry {
	return &Registry{
		templates: make(map[string]AgentTemplate),
		catalog:   catalog,
	}
}

// Register validates and stores a template. Re-registering a name replaces
// the previous template; existing instances keep the copy they were built
// with.
func (r *Registry) Register(tmpl AgentTemplate) error {
	if err := tmpl.Validate(r.catalog); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[tmpl.Name] = tmpl.clone()
	return nil
}

// Get returns a copy of the named template.
func (r *Registry) Get(name string) (AgentTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[name]
	if !ok {
		return AgentTemplate{}, fmt.Errorf("template %q: %w", name, ErrTemplateNotFound)
	}
	return tmpl.clone(), nil
}

// Has reports whether a template is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// List returns template summaries in name order. The sequence is built from
// a snapshot, so it is safe to register templates while iterating.
func (r *Registry) List() iter.Seq[TemplateSummary] {
	r.mu.RLock()
	summaries := make([]TemplateSummary, 0, len(r.templates))
	for _, tmpl := range r.templates {
		summaries = append(summaries, TemplateSummary{Name: tmpl.Name, Description: tmpl.Description})
	}
	r.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	return func(yield func(TemplateSummary) bool) {
		for _, s := range summaries {
			if !yield(s) {
				return
			}
		}
	}
}

// Save writes a registered template to a file. The format follows the file
// extension: .yaml/.yml for YAML, anything else JSON.
func (r *Registry) Save(name, path string) error {
	tmpl, err := r.Get(name)
	if err != nil {
		return err
	}

	var data []byte
	if isYAMLPath(path) {
		data, err = yaml.Marshal(tmpl)
	} else {
		data, err = json.MarshalIndent(tmpl, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Load reads a template from a file and registers it.
func (r *Registry) Load(path string) (AgentTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AgentTemplate{}, err
	}

	var tmpl AgentTemplate
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, &tmpl)
	} else {
		err = json.Unmarshal(data, &tmpl)
	}
	if err != nil {
		return AgentTemplate{}, fmt.Errorf("parse template %s: %w", path, err)
	}

	if err := r.Register(tmpl); err != nil {
		return AgentTemplate{}, err
	}
	return tmpl, nil
}

func isYAMLPath(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}
