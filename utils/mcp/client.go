package mcp

import (
	"context"
	"fmt"
)

// Client is a live connection to one MCP server, capable of listing its
// tools and invoking one. Connections are short-lived: ListAll opens one
// Client per server just to list its tools, and Invoke opens a fresh one
// for each tool call, closing it when that call returns.
type Client interface {
	ListTools(ctx context.Context) ([]ToolDef, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error)
	Close() error
}

// Dial opens a Client for cfg, dispatching to the HTTP or stdio transport
// of the two server shapes.
func Dial(ctx context.Context, cfg ServerConfig) (Client, error) {
	if cfg.IsStdio() {
		return dialStdio(ctx, cfg)
	}
	return &httpClient{cfg: cfg}, nil
}

// ToolBinding remembers which server a prefixed tool name came from, so a
// later CallTool can re-dial the right server. Tool carries the
// definition (name, description, input schema) a provider needs to
// advertise the tool to an LLM.
type ToolBinding struct {
	Server ServerConfig
	Tool ToolDef
}

// ListAll dials every server in turn, lists its tools (prefixed per
// server), and closes the connection, returning the union keyed by
// prefixed tool name. A single server's failure to respond does not
// abort the others — a tool server being unreachable degrades the tool
// list rather than failing the recipe step, leaving tool-server errors
// as the LLM collaborator's concern, not the core's.
func ListAll(ctx context.Context, servers []ServerConfig) (map[string]ToolBinding, error) {
	bindings := make(map[string]ToolBinding)
	for _, cfg := range servers {
		client, err := Dial(ctx, cfg)
		if err != nil {
			continue
		}
		tools, err := client.ListTools(ctx)
		client.Close()
		if err != nil {
			continue
		}
		for _, t := range tools {
			bindings[t.PrefixedName(cfg.ToolPrefix)] = ToolBinding{Server: cfg, Tool: t}
		}
	}
	return bindings, nil
}

// Invoke re-dials the server behind a prefixed tool name and calls it.
func Invoke(ctx context.Context, bindings map[string]ToolBinding, prefixedName string, args map[string]interface{}) (string, error) {
	binding, ok := bindings[prefixedName]
	if !ok {
		return "", fmt.Errorf("unknown mcp tool %q", prefixedName)
	}
	client, err := Dial(ctx, binding.Server)
	if err != nil {
		return "", err
	}
	defer client.Close()
	return client.CallTool(ctx, binding.Tool.Name, args)
}
