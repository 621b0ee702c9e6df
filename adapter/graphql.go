package adapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/everydev1618/goteam/tools"
)

// parseGraphQL converts a GraphQL schema definition into tool specs, one per
// Query or Mutation field. Invocation posts a standard GraphQL request with
// variables to the configured endpoint.
func parseGraphQL(data []byte, cfg config) ([]ToolSpec, error) {
	if cfg.baseURL == "" {
		return nil, &UnsupportedSpecError{Format: "graphql", Reason: "GraphQL schemas carry no endpoint; a base URL is required"}
	}

	types, err := parseSDLTypes(string(data))
	if err != nil {
		return nil, &UnsupportedSpecError{Format: "graphql", Reason: err.Error()}
	}

	var specs []ToolSpec
	for _, root := range []struct {
		typeName  string
		operation string
	}{
		{"Query", "query"},
		{"Mutation", "mutation"},
	} {
		fields, ok := types[root.typeName]
		if !ok {
			continue
		}
		for _, f := range fields {
			specs = append(specs, graphqlFieldSpec(root.operation, f, types, cfg))
		}
	}

	if len(specs) == 0 {
		return nil, &UnsupportedSpecError{Format: "graphql", Reason: "schema defines no Query or Mutation fields"}
	}
	return specs, nil
}

// sdlField is one field of an SDL object type.
type sdlField struct {
	name       string
	args       []sdlArg
	returnType string
}

type sdlArg struct {
	name     string
	gqlType  string
	required bool
}

var (
	typeBlockRe = regexp.MustCompile(`(?s)type\s+(\w+)[^{]*\{(.*?)\}`)
	fieldRe     = regexp.MustCompile(`^(\w+)\s*(?:\(([^)]*)\))?\s*:\s*(\S+)`)
	argRe       = regexp.MustCompile(`(\w+)\s*:\s*([\w\[\]!]+)`)
)

// parseSDLTypes extracts object types and their fields from an SDL document.
func parseSDLTypes(sdl string) (map[string][]sdlField, error) {
	types := make(map[string][]sdlField)

	for _, block := range typeBlockRe.FindAllStringSubmatch(sdl, -1) {
		typeName := block[1]
		var fields []sdlField

		for _, line := range strings.Split(block[2], "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, `"`) {
				continue
			}
			m := fieldRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			f := sdlField{
				name:       m[1],
				returnType: strings.TrimSuffix(m[3], "!"),
			}
			for _, am := range argRe.FindAllStringSubmatch(m[2], -1) {
				f.args = append(f.args, sdlArg{
					name:     am[1],
					gqlType:  strings.TrimSuffix(am[2], "!"),
					required: strings.HasSuffix(am[2], "!"),
				})
			}
			fields = append(fields, f)
		}

		types[typeName] = fields
	}

	if len(types) == 0 {
		return nil, fmt.Errorf("no type definitions found")
	}
	return types, nil
}

func graphqlFieldSpec(operation string, f sdlField, types map[string][]sdlField, cfg config) ToolSpec {
	params := make(map[string]tools.ParamDef)
	for _, a := range f.args {
		params[a.name] = tools.ParamDef{
			Type:     gqlJSONType(a.gqlType),
			Required: a.required,
		}
	}

	impl := tools.DynamicToolImpl{
		Type:   "http",
		Method: "POST",
		URL:    cfg.baseURL,
		Body:   buildGraphQLBody(operation, f, types),
	}

	return ToolSpec{
		Name:        cfg.toolName(f.name),
		Description: fmt.Sprintf("GraphQL %s %s returning %s", operation, f.name, f.returnType),
		Params:      params,
		Impl:        impl,
	}
}

// buildGraphQLBody renders the request body as a template string so that
// variable values are interpolated at call time. Values go through the
// json template function, so quoting and escaping always produce a valid
// request body.
func buildGraphQLBody(operation string, f sdlField, types map[string][]sdlField) string {
	var varDefs, argList, varVals []string
	for _, a := range f.args {
		suffix := ""
		if a.required {
			suffix = "!"
		}
		varDefs = append(varDefs, fmt.Sprintf("$%s: %s%s", a.name, a.gqlType, suffix))
		argList = append(argList, fmt.Sprintf("%s: $%s", a.name, a.name))
		varVals = append(varVals, fmt.Sprintf(`"%s":{{json .%s}}`, a.name, a.name))
	}

	selection := f.name
	if len(argList) > 0 {
		selection += "(" + strings.Join(argList, ", ") + ")"
	}
	if sub := scalarSelection(f.returnType, types); sub != "" {
		selection += " { " + sub + " }"
	}

	header := operation
	if len(varDefs) > 0 {
		header += "(" + strings.Join(varDefs, ", ") + ")"
	}

	query := fmt.Sprintf("%s { %s }", header, selection)
	return fmt.Sprintf(`{"query":"%s","variables":{%s}}`, query, strings.Join(varVals, ","))
}

// scalarSelection returns a depth-1 selection of the return type's scalar
// fields, or "" when the return type is itself a scalar.
func scalarSelection(returnType string, types map[string][]sdlField) string {
	base := strings.Trim(returnType, "[]!")
	fields, ok := types[base]
	if !ok {
		return ""
	}

	var names []string
	for _, f := range fields {
		if len(f.args) > 0 {
			continue
		}
		if _, isObject := types[strings.Trim(f.returnType, "[]!")]; isObject {
			continue
		}
		names = append(names, f.name)
	}
	return strings.Join(names, " ")
}

func gqlJSONType(t string) string {
	switch strings.Trim(t, "[]!") {
	case "Int":
		return "integer"
	case "Float":
		return "number"
	case "Boolean":
		return "boolean"
	default:
		return "string"
	}
}
