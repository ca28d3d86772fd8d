package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// commandDenylist blocks the stdio transport from launching a command
// that looks like a shell escape or destructive tool rather than a real
// MCP server binary — a recipe's own command config field ends up as
// argv[0] to exec.Command, so this is the one guard against a
// recipe-declared mcp server acting as an arbitrary command runner.
var commandDenylist = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "fish": true, "csh": true, "tcsh": true, "ksh": true, "dash": true,
	"rm": true, "rmdir": true, "mv": true, "dd": true, "shred": true, "mkfs": true,
	"sudo": true, "su": true, "doas": true, "pkexec": true,
	"chmod": true, "chown": true, "chgrp": true,
	"kill": true, "killall": true, "pkill": true,
	"systemctl": true, "service": true, "reboot": true, "shutdown": true, "halt": true, "poweroff": true,
}

// stdioClient is the MCP collaborator for the
// { command, args?, env?, cwd?, tool_prefix? } server shape: a
// subprocess speaking newline-delimited JSON-RPC over stdin/stdout.
type stdioClient struct {
	cmd    *exec.Cmd
	stdin  *jsonWriter
	stdout *bufio.Scanner
	mu     sync.Mutex
	nextID int
}

type jsonWriter struct {
	w interface{ Write([]byte) (int, error) }
}

func (j *jsonWriter) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = j.w.Write(append(data, '\n'))
	return err
}

func dialStdio(ctx context.Context, cfg ServerConfig) (Client, error) {
	base := strings.ToLower(cfg.Command)
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	if commandDenylist[base] {
		return nil, fmt.Errorf("mcp stdio server command %q is not permitted", cfg.Command)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if cfg.Cwd != "" {
		cmd.Dir = cfg.Cwd
	}
	if len(cfg.Env) > 0 {
		env := cmd.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening mcp stdio stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening mcp stdio stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting mcp stdio server %q: %w", cfg.Command, err)
	}

	return &stdioClient{
		cmd:    cmd,
		stdin:  &jsonWriter{w: stdin},
		stdout: bufio.NewScanner(stdout),
	}, nil
}

func (c *stdioClient) call(method string, params interface{}) (rpcResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params}
	if err := c.stdin.writeLine(req); err != nil {
		return rpcResponse{}, fmt.Errorf("writing mcp stdio request: %w", err)
	}

	if !c.stdout.Scan() {
		if err := c.stdout.Err(); err != nil {
			return rpcResponse{}, fmt.Errorf("reading mcp stdio response: %w", err)
		}
		return rpcResponse{}, fmt.Errorf("mcp stdio server closed stdout before responding")
	}

	var resp rpcResponse
	if err := json.Unmarshal(c.stdout.Bytes(), &resp); err != nil {
		return rpcResponse{}, fmt.Errorf("decoding mcp stdio response: %w", err)
	}
	if resp.Error != nil {
		return rpcResponse{}, fmt.Errorf("mcp server error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp, nil
}

func (c *stdioClient) ListTools(ctx context.Context) ([]ToolDef, error) {
	resp, err := c.call("tools/list", nil)
	if err != nil {
		return nil, err
	}
	return decodeToolsList(resp.Result)
}

func (c *stdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	resp, err := c.call("tools/call", toolCallParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	return decodeToolCallText(resp.Result)
}

func (c *stdioClient) Close() error {
	c.stdin.w.(interface{ Close() error }).Close()
	return c.cmd.Wait()
}
