// Package tools provides a catalog of callable tools that agents can
// invoke during a completion loop.
package tools

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/everydev1618/goteam/llm"
)

// Standard errors
var (
	// ErrToolNotFound is returned when a tool is not registered
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered is returned when trying to register a duplicate tool name.
	ErrToolAlreadyRegistered = errors.New("tool already registered")
)

// ToolError wraps errors with tool context.
type ToolError struct {
	ToolName string
	Err      error
}

func (e *ToolError) Error() string {
	return "tool " + e.ToolName + ": " + e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Catalog is a collection of callable tools.
type Catalog struct {
	tools      map[string]*tool
	middleware []Middleware
	parent     *Catalog // set by Filter, for middleware lookups
	mu         sync.RWMutex
}

// tool is an internal representation of a registered tool.
type tool struct {
	name        string
	description string
	fn          any
	schema      llm.ToolSchema
	params      map[string]ParamDef
}

// ParamDef defines a tool parameter.
type ParamDef struct {
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	Required    bool     `json:"required" yaml:"required"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ToolDef allows explicit tool definition with schema.
type ToolDef struct {
	Description string
	Fn          any
	Params      map[string]ParamDef
}

// Middleware wraps tool execution.
type Middleware func(ToolFunc) ToolFunc

// ToolFunc is the signature for tool execution.
type ToolFunc func(ctx context.Context, params map[string]any) (string, error)

// NewCatalog creates an empty tool catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tools: make(map[string]*tool),
	}
}

// Register adds a tool to the catalog.
// The function can be:
// - func(params) string
// - func(params) (string, error)
// - func(ctx, params) (string, error)
// - ToolDef with explicit schema
func (c *Catalog) Register(name string, fn any) error {
	if name == "" {
		return errors.New("tool name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check for duplicate registration
	if _, exists := c.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, name)
	}

	tl := &tool{
		name: name,
	}

	if def, ok := fn.(ToolDef); ok {
		tl.description = def.Description
		tl.fn = def.Fn
		tl.params = def.Params
		tl.schema = buildSchema(name, def.Description, def.Params)
	} else {
		tl.fn = fn
		tl.schema = inferSchema(name, fn)
		tl.description = tl.schema.Description
	}

	c.tools[name] = tl
	return nil
}

// Remove drops a tool from the catalog. Removing an unknown name is a no-op.
func (c *Catalog) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tools, name)
}

// Use adds middleware to the tool chain.
func (c *Catalog) Use(mw Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw)
}

// Has reports whether a tool is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tools[name]
	return ok
}

// Names returns the registered tool names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute calls a tool by name.
func (c *Catalog) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	c.mu.RLock()
	tl, ok := c.tools[name]
	middleware := c.middleware
	c.mu.RUnlock()

	if !ok {
		return "", &ToolError{ToolName: name, Err: ErrToolNotFound}
	}

	exec := func(ctx context.Context, params map[string]any) (string, error) {
		return callFunction(tl.fn, ctx, params)
	}

	// Apply middleware (in reverse order)
	for i := len(middleware) - 1; i >= 0; i-- {
		exec = middleware[i](exec)
	}

	result, err := exec(ctx, params)
	if err != nil {
		return "", &ToolError{ToolName: name, Err: err}
	}

	return result, nil
}

// Schema returns the schemas for all tools.
func (c *Catalog) Schema() []llm.ToolSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(c.tools))
	for _, tl := range c.tools {
		schemas = append(schemas, tl.schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Filter returns a new Catalog with only the specified tools.
// The filtered catalog shares middleware with its parent.
func (c *Catalog) Filter(names ...string) *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filtered := &Catalog{
		tools:      make(map[string]*tool),
		middleware: c.middleware,
		parent:     c,
	}

	nameSet := make(map[string]bool)
	for _, n := range names {
		nameSet[n] = true
	}

	for name, tl := range c.tools {
		if nameSet[name] {
			filtered.tools[name] = tl
		}
	}

	return filtered
}

// inferSchema infers a JSON schema from a function signature.
func inferSchema(name string, fn any) llm.ToolSchema {
	schema := llm.ToolSchema{
		Name:        name,
		Description: name,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	}

	fnType := reflect.TypeOf(fn)
	if fnType.Kind() != reflect.Func {
		return schema
	}

	// Build description from signature
	var paramNames []string
	for i := 0; i < fnType.NumIn(); i++ {
		inType := fnType.In(i)
		if inType.Implements(reflect.TypeOf((*context.Context)(nil)).Elem()) {
			continue
		}
		paramNames = append(paramNames, inType.Name())
	}
	schema.Description = fmt.Sprintf("%s(%s)", name, strings.Join(paramNames, ", "))

	// Infer parameters from struct if applicable
	if fnType.NumIn() > 0 {
		lastParam := fnType.In(fnType.NumIn() - 1)
		if lastParam.Kind() == reflect.Struct {
			props := make(map[string]any)
			required := []string{}

			for i := 0; i < lastParam.NumField(); i++ {
				field := lastParam.Field(i)
				jsonTag := field.Tag.Get("json")
				if jsonTag == "" || jsonTag == "-" {
					jsonTag = strings.ToLower(field.Name)
				}
				jsonTag = strings.Split(jsonTag, ",")[0]

				prop := map[string]any{
					"type": goTypeToJSONType(field.Type),
				}
				if desc := field.Tag.Get("desc"); desc != "" {
					prop["description"] = desc
				}

				props[jsonTag] = prop

				if field.Tag.Get("required") == "true" {
					required = append(required, jsonTag)
				}
			}

			schema.InputSchema["properties"] = props
			schema.InputSchema["required"] = required
		}
	}

	return schema
}

// buildSchema builds a schema from explicit definitions.
func buildSchema(name, description string, params map[string]ParamDef) llm.ToolSchema {
	props := make(map[string]any)
	required := []string{}

	for pname, pdef := range params {
		prop := map[string]any{
			"type": pdef.Type,
		}
		if pdef.Description != "" {
			prop["description"] = pdef.Description
		}
		if len(pdef.Enum) > 0 {
			prop["enum"] = pdef.Enum
		}
		props[pname] = prop

		if pdef.Required {
			required = append(required, pname)
		}
	}
	sort.Strings(required)

	return llm.ToolSchema{
		Name:        name,
		Description: description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// callFunction calls a tool function with parameters.
func callFunction(fn any, ctx context.Context, params map[string]any) (string, error) {
	if tf, ok := fn.(ToolFunc); ok {
		return tf(ctx, params)
	}
	if tf, ok := fn.(func(ctx context.Context, params map[string]any) (string, error)); ok {
		return tf(ctx, params)
	}

	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	var args []reflect.Value

	for i := 0; i < fnType.NumIn(); i++ {
		inType := fnType.In(i)

		if inType.Implements(reflect.TypeOf((*context.Context)(nil)).Elem()) {
			args = append(args, reflect.ValueOf(ctx))
			continue
		}

		// Single string parameter takes the sole param value
		if inType.Kind() == reflect.String && len(params) == 1 {
			for _, v := range params {
				args = append(args, reflect.ValueOf(fmt.Sprint(v)))
				break
			}
			continue
		}

		// Struct parameter: fill fields from params by json tag
		if inType.Kind() == reflect.Struct {
			structVal := reflect.New(inType).Elem()
			for j := 0; j < inType.NumField(); j++ {
				field := inType.Field(j)
				jsonTag := field.Tag.Get("json")
				if jsonTag == "" {
					jsonTag = strings.ToLower(field.Name)
				}
				jsonTag = strings.Split(jsonTag, ",")[0]

				if v, ok := params[jsonTag]; ok {
					fieldVal := structVal.Field(j)
					if fieldVal.CanSet() {
						fieldVal.Set(reflect.ValueOf(v).Convert(field.Type))
					}
				}
			}
			args = append(args, structVal)
			continue
		}

		if inType.Kind() == reflect.Map {
			args = append(args, reflect.ValueOf(params))
			continue
		}
	}

	results := fnVal.Call(args)

	if len(results) == 0 {
		return "", nil
	}

	if len(results) == 1 {
		return fmt.Sprint(results[0].Interface()), nil
	}

	// Assume (string, error)
	result := fmt.Sprint(results[0].Interface())
	if !results[1].IsNil() {
		return result, results[1].Interface().(error)
	}
	return result, nil
}

// goTypeToJSONType converts Go types to JSON schema types.
func goTypeToJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}
