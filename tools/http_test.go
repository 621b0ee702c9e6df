package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHTTPExecutorGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/A42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("verbose"); got != "true" {
			t.Errorf("query verbose = %q", got)
		}
		if got := r.Header.Get("X-Request-Source"); got != "agent-A42" {
			t.Errorf("header = %q", got)
		}
		io.WriteString(w, `{"status": "shipped"}`)
	}))
	defer server.Close()

	fn := NewHTTPExecutor(DynamicToolImpl{
		Type:    "http",
		URL:     server.URL + "/orders/{{.order_id}}",
		Headers: map[string]string{"X-Request-Source": "agent-{{.order_id}}"},
		Query:   map[string]string{"verbose": "true"},
	})

	result, err := fn(context.Background(), map[string]any{"order_id": "A42"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != `{"status": "shipped"}` {
		t.Errorf("result = %q", result)
	}
}

func TestHTTPExecutorPostBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["message"] != "hello" {
			t.Errorf("body = %v", body)
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	fn := NewHTTPExecutor(DynamicToolImpl{
		Type:   "http",
		Method: "post",
		URL:    server.URL + "/notify",
		Body:   map[string]any{"message": "{{.text}}"},
	})

	result, err := fn(context.Background(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q", result)
	}
}

func TestHTTPExecutorErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		io.WriteString(w, "boom")
	}))
	defer server.Close()

	fn := NewHTTPExecutor(DynamicToolImpl{Type: "http", URL: server.URL})

	_, err := fn(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestInterpolateTemplate(t *testing.T) {
	out, err := interpolateTemplate("hello {{.name}}, order {{.id}}", map[string]any{
		"name": "Ada",
		"id":   7,
	})
	if err != nil {
		t.Fatalf("interpolate: %v", err)
	}
	if out != "hello Ada, order 7" {
		t.Errorf("out = %q", out)
	}

	// No placeholders: returned untouched
	out, err = interpolateTemplate("static", nil)
	if err != nil || out != "static" {
		t.Errorf("out = %q, err = %v", out, err)
	}
}

func TestLoadFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "42 degrees")
	}))
	defer server.Close()

	dir := t.TempDir()
	yaml := `
name: get_weather
description: Get the weather for a city
params:
  - name: city
    type: string
    description: City name
    required: true
implementation:
  type: http
  method: GET
  url: ` + server.URL + `/weather/{{.city}}
`
	path := filepath.Join(dir, "weather.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewCatalog()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if !c.Has("get_weather") {
		t.Fatal("tool not registered")
	}

	result, err := c.Execute(context.Background(), "get_weather", map[string]any{"city": "oslo"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "42 degrees" {
		t.Errorf("result = %q", result)
	}
}

func TestLoadFileRejectsUnknownImpl(t *testing.T) {
	dir := t.TempDir()
	yaml := `
name: run_thing
description: runs a thing
implementation:
  type: exec
  command: echo hi
`
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	c := NewCatalog()
	if err := c.LoadFile(path); err == nil {
		t.Fatal("expected error for unsupported implementation type")
	}
	if c.Has("run_thing") {
		t.Error("tool should not be registered")
	}
}
