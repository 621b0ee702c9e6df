package team

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/everydev1618/goteam/tools"
)

func validTemplate() AgentTemplate {
	return AgentTemplate{
		Name:         "translator",
		Description:  "Translates text",
		Instructions: "You translate text between languages.",
		Model:        DefaultModel,
		Temperature:  0.2,
		MaxTokens:    2048,
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)

	if err := r.Register(validTemplate()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get("translator")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Temperature != 0.2 || got.MaxTokens != 2048 {
		t.Errorf("template = %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Get("nope")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry(nil)

	cases := []struct {
		name   string
		mutate func(*AgentTemplate)
		field  string
	}{
		{"empty name", func(t *AgentTemplate) { t.Name = " " }, "name"},
		{"empty instructions", func(t *AgentTemplate) { t.Instructions = "" }, "instructions"},
		{"temperature too low", func(t *AgentTemplate) { t.Temperature = -0.1 }, "temperature"},
		{"temperature too high", func(t *AgentTemplate) { t.Temperature = 2.5 }, "temperature"},
		{"zero max tokens", func(t *AgentTemplate) { t.MaxTokens = 0 }, "max_tokens"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := validTemplate()
			tc.mutate(&tmpl)

			err := r.Register(tmpl)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestRegisterUnknownTool(t *testing.T) {
	catalog := tools.NewCatalog()
	catalog.Register("known", func(s string) string { return s })

	r := NewRegistry(catalog)

	tmpl := validTemplate()
	tmpl.Tools = []string{"known", "unknown"}

	err := r.Register(tmpl)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "tools" {
		t.Fatalf("err = %v", err)
	}

	tmpl.Tools = []string{"known"}
	if err := r.Register(tmpl); err != nil {
		t.Fatalf("Register with known tool: %v", err)
	}
}

func TestRegisterLastWriteWins(t *testing.T) {
	r := NewRegistry(nil)

	first := validTemplate()
	if err := r.Register(first); err != nil {
		t.Fatal(err)
	}

	second := validTemplate()
	second.Temperature = 1.5
	if err := r.Register(second); err != nil {
		t.Fatal(err)
	}

	got, _ := r.Get("translator")
	if got.Temperature != 1.5 {
		t.Errorf("temperature = %g, want the re-registered value", got.Temperature)
	}
}

func TestTemplateImmutability(t *testing.T) {
	r := NewRegistry(nil)

	tmpl := validTemplate()
	tmpl.Tools = []string{}
	r.Register(tmpl)

	// Mutating the caller's copy after registration changes nothing.
	tmpl.Instructions = "changed"

	got, _ := r.Get("translator")
	if got.Instructions == "changed" {
		t.Error("registered template was mutated through the caller's copy")
	}

	// Mutating a fetched copy changes nothing either.
	got.Description = "changed"
	again, _ := r.Get("translator")
	if again.Description == "changed" {
		t.Error("registered template was mutated through a fetched copy")
	}
}

func TestList(t *testing.T) {
	r := NewRegistry(nil)

	b := validTemplate()
	b.Name = "bravo"
	a := validTemplate()
	a.Name = "alpha"
	r.Register(b)
	r.Register(a)

	var names []string
	for s := range r.List() {
		names = append(names, s.Name)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "bravo" {
		t.Errorf("names = %v", names)
	}

	// The sequence is restartable.
	count := 0
	for range r.List() {
		count++
	}
	if count != 2 {
		t.Errorf("second iteration count = %d", count)
	}

	// And supports early break.
	for range r.List() {
		break
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, ext := range []string{"yaml", "json"} {
		t.Run(ext, func(t *testing.T) {
			src := NewRegistry(nil)
			tmpl := validTemplate()
			src.Register(tmpl)

			path := filepath.Join(dir, "translator."+ext)
			if err := src.Save("translator", path); err != nil {
				t.Fatalf("Save: %v", err)
			}

			dst := NewRegistry(nil)
			loaded, err := dst.Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Name != tmpl.Name || loaded.Temperature != tmpl.Temperature ||
				loaded.MaxTokens != tmpl.MaxTokens || loaded.Instructions != tmpl.Instructions {
				t.Errorf("loaded = %+v", loaded)
			}
			if !dst.Has("translator") {
				t.Error("loaded template not registered")
			}
		})
	}
}
