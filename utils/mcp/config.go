// Package mcp implements the MCP (Model Context Protocol) collaborator,
// described only by config shape: an HTTP server ({ url, headers?,
// tool_prefix? }) or a stdio server ({ command, args?, env?, cwd?,
// tool_prefix? }), validated only for presence of url XOR command. The
// core never talks to a tool server directly; llm_generate hands its
// merged mcp_servers list to the llm package, which uses this package to
// list and invoke tools during generation.
package mcp

import "fmt"

// ServerConfig is a single MCP server entry, already template-rendered.
// Exactly one of URL or Command is set.
type ServerConfig struct {
	URL string
	Headers map[string]string
	Command string
	Args []string
	Env map[string]string
	Cwd string
	ToolPrefix string
}

// IsStdio reports whether this config describes a stdio-launched server
// rather than an HTTP one.
func (c ServerConfig) IsStdio() bool { return c.Command != "" }

// ParseServerConfig validates and decodes one already-rendered
// mcp_servers entry, requiring exactly one of "url" or "command".
func ParseServerConfig(raw map[string]interface{}) (ServerConfig, error) {
	url, _ := raw["url"].(string)
	command, _ := raw["command"].(string)

	if (url == "") == (command == "") {
		return ServerConfig{}, fmt.Errorf("mcp server config must set exactly one of \"url\" or \"command\"")
	}

	cfg := ServerConfig{URL: url, Command: command}
	if prefix, ok := raw["tool_prefix"].(string); ok {
		cfg.ToolPrefix = prefix
	}
	if cwd, ok := raw["cwd"].(string); ok {
		cfg.Cwd = cwd
	}

	if headers, ok := raw["headers"].(map[string]interface{}); ok {
		cfg.Headers = stringMap(headers)
	}
	if env, ok := raw["env"].(map[string]interface{}); ok {
		cfg.Env = stringMap(env)
	}
	if args, ok := raw["args"].([]interface{}); ok {
		cfg.Args = make([]string, 0, len(args))
		for _, a := range args {
			if s, ok := a.(string); ok {
				cfg.Args = append(cfg.Args, s)
			}
		}
	}

	return cfg, nil
}

func stringMap(raw map[string]interface{}) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
