package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// mcpCallTimeout bounds a single MCP tool call.
const mcpCallTimeout = 30 * time.Second

// MCPServer describes an MCP server to connect to.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // stdio or http
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	URL       string            `yaml:"url"`
}

// mcpClient abstracts the MCP client for testability.
type mcpClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPConn is a live connection to an MCP server whose tools have been
// registered into a catalog.
type MCPConn struct {
	server string
	client mcpClient
	names  []string
}

// ToolNames returns the catalog names of the tools this connection registered.
func (c *MCPConn) ToolNames() []string {
	return append([]string(nil), c.names...)
}

// Close shuts down the server connection. Registered tools start failing
// after close; callers should remove them from the catalog first.
func (c *MCPConn) Close() error {
	return c.client.Close()
}

// ConnectMCP connects to an MCP server, discovers its tools, and registers
// each as "<server>__<tool>" in the catalog.
func (c *Catalog) ConnectMCP(ctx context.Context, srv MCPServer) (*MCPConn, error) {
	client, err := dialMCP(ctx, srv)
	if err != nil {
		return nil, fmt.Errorf("mcp server %q: %w", srv.Name, err)
	}

	conn := &MCPConn{server: srv.Name, client: client}
	if err := c.registerMCPTools(ctx, conn); err != nil {
		client.Close()
		return nil, fmt.Errorf("mcp server %q: %w", srv.Name, err)
	}

	slog.Info("mcp server connected", "name", srv.Name, "transport", srv.Transport, "tools", len(conn.names))
	return conn, nil
}

func dialMCP(ctx context.Context, srv MCPServer) (mcpClient, error) {
	var c mcpClient

	switch srv.Transport {
	case "stdio":
		stdioClient, err := mcpclient.NewStdioMCPClient(srv.Command, envSlice(srv.Env), srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("create stdio client: %w", err)
		}
		c = stdioClient
	case "http":
		t, err := transport.NewStreamableHTTP(srv.URL)
		if err != nil {
			return nil, fmt.Errorf("create http transport: %w", err)
		}
		httpClient := mcpclient.NewClient(t)
		if err := httpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		c = httpClient
	default:
		return nil, fmt.Errorf("unsupported transport %q", srv.Transport)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "goteam",
		Version: "1.0.0",
	}

	if ic, ok := c.(interface {
		Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	}); ok {
		if _, err := ic.Initialize(ctx, initReq); err != nil {
			c.Close()
			return nil, fmt.Errorf("initialize: %w", err)
		}
	}

	return c, nil
}

func (c *Catalog) registerMCPTools(ctx context.Context, conn *MCPConn) error {
	result, err := conn.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	for _, t := range result.Tools {
		name := fmt.Sprintf("%s__%s", sanitizeName(conn.server), sanitizeName(t.Name))

		def := ToolDef{
			Description: t.Description,
			Fn:          newMCPToolFunc(conn, t.Name),
		}
		if def.Description == "" {
			def.Description = fmt.Sprintf("MCP tool %q from server %q", t.Name, conn.server)
		}

		if err := c.Register(name, def); err != nil {
			return err
		}
		c.setSchema(name, mcpInputSchema(name, def.Description, t))
		conn.names = append(conn.names, name)
	}

	return nil
}

// setSchema replaces a registered tool's schema with an externally built one.
func (c *Catalog) setSchema(name string, schema jsonSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tl, ok := c.tools[name]; ok {
		tl.schema.InputSchema = schema
	}
}

type jsonSchema = map[string]any

// mcpInputSchema converts an MCP tool's input schema to a plain JSON schema map.
func mcpInputSchema(name, description string, t mcp.Tool) jsonSchema {
	schema := jsonSchema{"type": "object"}
	if t.InputSchema.Properties != nil || t.InputSchema.Required != nil {
		if data, err := json.Marshal(t.InputSchema); err == nil {
			var parsed jsonSchema
			if json.Unmarshal(data, &parsed) == nil {
				schema = parsed
			}
		}
	}
	return schema
}

func newMCPToolFunc(conn *MCPConn, toolName string) ToolFunc {
	return func(ctx context.Context, params map[string]any) (string, error) {
		callReq := mcp.CallToolRequest{}
		callReq.Params.Name = toolName
		callReq.Params.Arguments = params

		callCtx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
		defer cancel()

		result, err := conn.client.CallTool(callCtx, callReq)
		if err != nil {
			return "", fmt.Errorf("mcp call %s: %w", toolName, err)
		}

		content := extractMCPContent(result)
		if result.IsError {
			return "", fmt.Errorf("mcp tool %s: %s", toolName, content)
		}
		return content, nil
	}
}

// extractMCPContent converts MCP CallToolResult content to a string.
func extractMCPContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// sanitizeName replaces characters that aren't valid in tool names.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// envSlice converts a map of env vars to KEY=VALUE form.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
