package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// DynamicToolDef is a YAML tool definition.
type DynamicToolDef struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Params         []DynamicParamDef `yaml:"params"`
	Implementation DynamicToolImpl   `yaml:"implementation"`
}

// DynamicParamDef is a YAML parameter definition.
type DynamicParamDef struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Default     any      `yaml:"default"`
	Enum        []string `yaml:"enum"`
}

// DynamicToolImpl is a YAML implementation definition. Only HTTP transports
// are supported; agent tools call services, they do not touch the host.
type DynamicToolImpl struct {
	Type    string            `yaml:"type"` // http
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Query   map[string]string `yaml:"query"`
	Body    any               `yaml:"body"`
	Timeout string            `yaml:"timeout"`
}

// RegisterDynamicTool registers a tool from a DynamicToolDef.
func (c *Catalog) RegisterDynamicTool(def DynamicToolDef) error {
	params := make(map[string]ParamDef)
	for _, p := range def.Params {
		params[p.Name] = ParamDef{
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required,
			Default:     p.Default,
			Enum:        p.Enum,
		}
	}

	if def.Implementation.Type != "http" {
		return fmt.Errorf("unknown implementation type: %s", def.Implementation.Type)
	}

	return c.Register(def.Name, ToolDef{
		Description: def.Description,
		Fn:          NewHTTPExecutor(def.Implementation),
		Params:      params,
	})
}

// LoadDirectory loads tool definitions from YAML files.
func (c *Catalog) LoadDirectory(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read tools directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}

		toolPath := filepath.Join(path, entry.Name())
		if err := c.LoadFile(toolPath); err != nil {
			return fmt.Errorf("load tool %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// LoadFile loads a single tool definition from YAML.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var def DynamicToolDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	return c.RegisterDynamicTool(def)
}

// NewHTTPExecutor builds a ToolFunc that performs an HTTP request described
// by impl, interpolating {{.param}} placeholders from the call parameters.
func NewHTTPExecutor(impl DynamicToolImpl) ToolFunc {
	return func(ctx context.Context, params map[string]any) (string, error) {
		timeout := 30 * time.Second
		if impl.Timeout != "" {
			if d, err := time.ParseDuration(impl.Timeout); err == nil {
				timeout = d
			}
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		url, err := interpolateTemplate(impl.URL, params)
		if err != nil {
			return "", fmt.Errorf("interpolate URL: %w", err)
		}

		method := impl.Method
		if method == "" {
			method = "GET"
		}
		method = strings.ToUpper(method)

		var bodyReader io.Reader
		if impl.Body != nil {
			switch body := impl.Body.(type) {
			case string:
				interpolated, err := interpolateTemplate(body, params)
				if err != nil {
					return "", fmt.Errorf("interpolate body: %w", err)
				}
				bodyReader = strings.NewReader(interpolated)
			case map[string]any:
				interpolatedMap := make(map[string]any)
				for k, v := range body {
					if s, ok := v.(string); ok {
						interpolated, err := interpolateTemplate(s, params)
						if err != nil {
							return "", fmt.Errorf("interpolate body field %s: %w", k, err)
						}
						interpolatedMap[k] = interpolated
					} else {
						interpolatedMap[k] = v
					}
				}
				jsonBody, err := json.Marshal(interpolatedMap)
				if err != nil {
					return "", fmt.Errorf("marshal body: %w", err)
				}
				bodyReader = bytes.NewReader(jsonBody)
			default:
				jsonBody, err := json.Marshal(body)
				if err != nil {
					return "", fmt.Errorf("marshal body: %w", err)
				}
				bodyReader = bytes.NewReader(jsonBody)
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}

		for k, v := range impl.Headers {
			interpolated, err := interpolateTemplate(v, params)
			if err != nil {
				return "", fmt.Errorf("interpolate header %s: %w", k, err)
			}
			req.Header.Set(k, interpolated)
		}

		if bodyReader != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		if len(impl.Query) > 0 {
			q := req.URL.Query()
			for k, v := range impl.Query {
				interpolated, err := interpolateTemplate(v, params)
				if err != nil {
					return "", fmt.Errorf("interpolate query %s: %w", k, err)
				}
				q.Set(k, interpolated)
			}
			req.URL.RawQuery = q.Encode()
		}

		client := &http.Client{Timeout: timeout}
		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("http error %d: %s", resp.StatusCode, string(respBody))
		}

		return string(respBody), nil
	}
}

// interpolateTemplate replaces {{.field}} placeholders with values from
// params. The "json" function renders a value as a JSON literal, escaping
// included, for templates that splice parameters into JSON bodies.
func interpolateTemplate(tmplStr string, params map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}).Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", err
	}

	return buf.String(), nil
}
