package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerConfigHTTP(t *testing.T) {
	cfg, err := ParseServerConfig(map[string]interface{}{
		"url":         "https://tools.example.com/mcp",
		"headers":     map[string]interface{}{"Authorization": "Bearer x"},
		"tool_prefix": "ex",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://tools.example.com/mcp", cfg.URL)
	assert.False(t, cfg.IsStdio())
	assert.Equal(t, "Bearer x", cfg.Headers["Authorization"])
	assert.Equal(t, "ex", cfg.ToolPrefix)
}

func TestParseServerConfigStdio(t *testing.T) {
	cfg, err := ParseServerConfig(map[string]interface{}{
		"command": "my-mcp-server",
		"args":    []interface{}{"--flag", "value"},
		"env":     map[string]interface{}{"FOO": "bar"},
		"cwd":     "/tmp",
	})
	require.NoError(t, err)
	assert.True(t, cfg.IsStdio())
	assert.Equal(t, []string{"--flag", "value"}, cfg.Args)
	assert.Equal(t, "bar", cfg.Env["FOO"])
	assert.Equal(t, "/tmp", cfg.Cwd)
}

func TestParseServerConfigRejectsNeitherOrBoth(t *testing.T) {
	_, err := ParseServerConfig(map[string]interface{}{})
	assert.Error(t, err)

	_, err = ParseServerConfig(map[string]interface{}{
		"url":     "https://example.com",
		"command": "my-mcp-server",
	})
	assert.Error(t, err)
}

func TestToolPrefixedName(t *testing.T) {
	tool := ToolDef{Name: "search"}
	assert.Equal(t, "search", tool.PrefixedName(""))
	assert.Equal(t, "ex_search", tool.PrefixedName("ex"))
}
