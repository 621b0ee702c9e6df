package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/everydev1618/goteam/tools"
)

// apiDefinition is the plain JSON endpoint-listing shape: a hand-written
// description of a REST API or webhook collection.
type apiDefinition struct {
	Name      string        `json:"name"`
	BaseURL   string        `json:"base_url"`
	Endpoints []apiEndpoint `json:"endpoints"`
}

type apiEndpoint struct {
	Name        string     `json:"name"`
	Method      string     `json:"method"`
	Path        string     `json:"path"`
	Description string     `json:"description"`
	Params      []apiParam `json:"params"`
}

type apiParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	In          string `json:"in"` // path, query, or body
}

// parseEndpoints converts a JSON endpoint listing into tool specs.
func parseEndpoints(data []byte, cfg config) ([]ToolSpec, error) {
	var def apiDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, &UnsupportedSpecError{Format: "endpoints", Reason: err.Error()}
	}

	baseURL := cfg.baseURL
	if baseURL == "" {
		baseURL = def.BaseURL
	}
	if baseURL == "" {
		return nil, &UnsupportedSpecError{Format: "endpoints", Reason: "listing has no base_url and no base URL was given"}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if len(def.Endpoints) == 0 {
		return nil, &UnsupportedSpecError{Format: "endpoints", Reason: "listing defines no endpoints"}
	}

	var specs []ToolSpec
	for i, ep := range def.Endpoints {
		if ep.Name == "" || ep.Path == "" {
			return nil, &UnsupportedSpecError{
				Format: "endpoints",
				Reason: fmt.Sprintf("endpoint %d is missing a name or path", i),
			}
		}
		specs = append(specs, endpointSpec(baseURL, ep, cfg))
	}
	return specs, nil
}

func endpointSpec(baseURL string, ep apiEndpoint, cfg config) ToolSpec {
	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = "GET"
	}

	params := make(map[string]tools.ParamDef)
	query := make(map[string]string)
	body := make(map[string]any)
	url := baseURL + ep.Path

	for _, p := range ep.Params {
		ptype := p.Type
		if ptype == "" {
			ptype = "string"
		}
		def := tools.ParamDef{
			Type:        ptype,
			Description: p.Description,
			Required:    p.Required,
		}

		switch p.In {
		case "path":
			def.Required = true
			url = strings.ReplaceAll(url, "{"+p.Name+"}", "{{."+p.Name+"}}")
		case "body":
			body[p.Name] = "{{." + p.Name + "}}"
		default:
			// query is the default location
			query[p.Name] = "{{." + p.Name + "}}"
		}
		params[p.Name] = def
	}

	impl := tools.DynamicToolImpl{
		Type:   "http",
		Method: method,
		URL:    url,
	}
	if len(query) > 0 {
		impl.Query = query
	}
	if len(body) > 0 {
		impl.Body = body
	}

	description := ep.Description
	if description == "" {
		description = fmt.Sprintf("%s %s", method, ep.Path)
	}

	return ToolSpec{
		Name:        cfg.toolName(sanitizeToolName(ep.Name)),
		Description: description,
		Params:      params,
		Impl:        impl,
	}
}
