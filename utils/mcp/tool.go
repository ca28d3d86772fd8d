package mcp

// ToolDef is a tool advertised by an MCP server's tools/list response,
// trimmed to what an LLM provider needs to forward it as a callable tool.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// PrefixedName returns the tool's name qualified by its server's
// tool_prefix, so tools from different servers never collide in a single
// request's tool list.
func (t ToolDef) PrefixedName(prefix string) string {
	if prefix == "" {
		return t.Name
	}
	return prefix + "_" + t.Name
}
