package adapter

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/everydev1618/goteam/tools"
)

// parseOpenAPI converts an OpenAPI 3 document into tool specs, one per
// path+method operation.
func parseOpenAPI(ctx context.Context, data []byte, cfg config) ([]ToolSpec, error) {
	loader := openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, &UnsupportedSpecError{Format: "openapi", Reason: err.Error()}
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, &UnsupportedSpecError{Format: "openapi", Reason: err.Error()}
	}

	baseURL := cfg.baseURL
	if baseURL == "" && len(doc.Servers) > 0 {
		baseURL = doc.Servers[0].URL
	}
	if baseURL == "" {
		return nil, &UnsupportedSpecError{Format: "openapi", Reason: "document has no servers and no base URL was given"}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	// Paths.Map() iterates in map order; sort for stable output.
	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for p := range pathMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var specs []ToolSpec
	for _, path := range paths {
		item := pathMap[path]
		if item == nil {
			continue
		}
		for _, mo := range methodOperations(item) {
			spec, err := openAPIOperationSpec(baseURL, path, mo.method, mo.op, cfg)
			if err != nil {
				return nil, err
			}
			specs = append(specs, *spec)
		}
	}

	if len(specs) == 0 {
		return nil, &UnsupportedSpecError{Format: "openapi", Reason: "document defines no operations"}
	}
	return specs, nil
}

type methodOp struct {
	method string
	op     *openapi3.Operation
}

func methodOperations(item *openapi3.PathItem) []methodOp {
	candidates := []methodOp{
		{http.MethodGet, item.Get},
		{http.MethodPost, item.Post},
		{http.MethodPut, item.Put},
		{http.MethodPatch, item.Patch},
		{http.MethodDelete, item.Delete},
		{http.MethodHead, item.Head},
		{http.MethodOptions, item.Options},
	}
	var out []methodOp
	for _, c := range candidates {
		if c.op != nil {
			out = append(out, c)
		}
	}
	return out
}

func openAPIOperationSpec(baseURL, path, method string, op *openapi3.Operation, cfg config) (*ToolSpec, error) {
	name := op.OperationID
	if name == "" {
		name = strings.ToLower(method) + pathToName(path)
	}

	description := op.Summary
	if description == "" {
		description = op.Description
	}
	if description == "" {
		description = fmt.Sprintf("%s %s", method, path)
	}

	params := make(map[string]tools.ParamDef)
	query := make(map[string]string)
	url := baseURL + path

	for _, pref := range op.Parameters {
		p := pref.Value
		if p == nil {
			continue
		}
		def := tools.ParamDef{
			Type:        schemaJSONType(p.Schema),
			Description: p.Description,
			Required:    p.Required,
		}
		switch p.In {
		case openapi3.ParameterInPath:
			def.Required = true
			params[p.Name] = def
			url = strings.ReplaceAll(url, "{"+p.Name+"}", "{{."+p.Name+"}}")
		case openapi3.ParameterInQuery:
			params[p.Name] = def
			query[p.Name] = "{{." + p.Name + "}}"
		case openapi3.ParameterInHeader, openapi3.ParameterInCookie:
			// Header and cookie parameters are not exposed to the model.
		}
	}

	var body map[string]any
	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if media := op.RequestBody.Value.Content.Get("application/json"); media != nil && media.Schema != nil && media.Schema.Value != nil {
			schema := media.Schema.Value
			if schema.Type != nil && schema.Type.Is(openapi3.TypeObject) {
				body = make(map[string]any)
				required := make(map[string]bool)
				for _, r := range schema.Required {
					required[r] = true
				}
				for pname, pref := range schema.Properties {
					desc := ""
					if pref.Value != nil {
						desc = pref.Value.Description
					}
					params[pname] = tools.ParamDef{
						Type:        schemaJSONType(pref),
						Description: desc,
						Required:    required[pname],
					}
					body[pname] = "{{." + pname + "}}"
				}
			}
		}
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

	return &ToolSpec{
		Name:        cfg.toolName(sanitizeToolName(name)),
		Description: description,
		Params:      params,
		Impl:        impl,
	}, nil
}

// pathToName turns "/users/{id}/posts" into "_users_id_posts".
func pathToName(path string) string {
	r := strings.NewReplacer("/", "_", "{", "", "}", "")
	return r.Replace(path)
}

func sanitizeToolName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func schemaJSONType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil {
		return "string"
	}
	t := ref.Value.Type
	switch {
	case t.Is(openapi3.TypeInteger):
		return "integer"
	case t.Is(openapi3.TypeNumber):
		return "number"
	case t.Is(openapi3.TypeBoolean):
		return "boolean"
	case t.Is(openapi3.TypeArray):
		return "array"
	case t.Is(openapi3.TypeObject):
		return "object"
	default:
		return "string"
	}
}
