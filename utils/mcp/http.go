package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient is the MCP collaborator for the { url, headers?, tool_prefix? }
// server shape: each call is one JSON-RPC request POSTed to url.
type httpClient struct {
	cfg        ServerConfig
	httpClient http.Client
	nextID     int
}

func (c *httpClient) call(ctx context.Context, method string, params interface{}) (rpcResponse, error) {
	c.nextID++
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return rpcResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return rpcResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	client := c.httpClient
	if client.Timeout == 0 {
		client = http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return rpcResponse{}, fmt.Errorf("mcp http request to %s: %w", c.cfg.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return rpcResponse{}, fmt.Errorf("reading mcp http response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return rpcResponse{}, fmt.Errorf("mcp server %s returned status %d: %s", c.cfg.URL, resp.StatusCode, data)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return rpcResponse{}, fmt.Errorf("decoding mcp rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResponse{}, fmt.Errorf("mcp server error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp, nil
}

func (c *httpClient) ListTools(ctx context.Context) ([]ToolDef, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	return decodeToolsList(resp.Result)
}

func (c *httpClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	resp, err := c.call(ctx, "tools/call", toolCallParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	return decodeToolCallText(resp.Result)
}

func (c *httpClient) Close() error { return nil }
