// Package adapter turns external API descriptions into callable tool specs.
//
// Three formats are understood: OpenAPI 3 documents (JSON or YAML), GraphQL
// schema definitions, and a plain JSON endpoint listing. Anything else is
// rejected with an UnsupportedSpecError and registers nothing.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/everydev1618/goteam/tools"
)

// ErrUnsupportedSpec is returned when a description matches no known format
// or fails to parse as the format it resembles.
var ErrUnsupportedSpec = errors.New("unsupported API specification")

// UnsupportedSpecError reports why a description could not be adapted.
type UnsupportedSpecError struct {
	Format string // detected format, or "unknown"
	Reason string
}

func (e *UnsupportedSpecError) Error() string {
	return fmt.Sprintf("unsupported API specification (%s): %s", e.Format, e.Reason)
}

func (e *UnsupportedSpecError) Unwrap() error {
	return ErrUnsupportedSpec
}

// ToolSpec is a uniform tool description produced from an API specification.
// Invocation is always an HTTP call.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]tools.ParamDef
	Impl        tools.DynamicToolImpl
}

// Option configures spec generation.
type Option func(*config)

type config struct {
	baseURL string
	prefix  string
}

// WithBaseURL sets the invocation base URL. Required for GraphQL schemas
// (which carry no server address) and overrides the document's own servers
// for OpenAPI and endpoint listings.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithPrefix namespaces generated tool names as "<prefix>__<name>".
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// GenerateToolSpecs parses an API description and returns one ToolSpec per
// operation. The format is detected from the content: OpenAPI 3 documents,
// GraphQL SDL, or the JSON endpoint-listing shape. Unrecognized or malformed
// input yields an UnsupportedSpecError and no specs.
func GenerateToolSpecs(ctx context.Context, description []byte, opts ...Option) ([]ToolSpec, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	switch detectFormat(description) {
	case formatOpenAPI:
		return parseOpenAPI(ctx, description, cfg)
	case formatGraphQL:
		return parseGraphQL(description, cfg)
	case formatEndpoints:
		return parseEndpoints(description, cfg)
	default:
		return nil, &UnsupportedSpecError{
			Format: "unknown",
			Reason: "content matches no supported specification format",
		}
	}
}

// RegisterAll registers every spec into the catalog. Registration is
// all-or-nothing: on error, previously added tools are removed again.
func RegisterAll(catalog *tools.Catalog, specs []ToolSpec) error {
	var added []string
	for _, spec := range specs {
		err := catalog.Register(spec.Name, tools.ToolDef{
			Description: spec.Description,
			Fn:          tools.NewHTTPExecutor(spec.Impl),
			Params:      spec.Params,
		})
		if err != nil {
			for _, name := range added {
				catalog.Remove(name)
			}
			return fmt.Errorf("register %s: %w", spec.Name, err)
		}
		added = append(added, spec.Name)
	}
	return nil
}

func (c config) toolName(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "__" + name
}
