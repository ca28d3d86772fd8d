package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/recipeforge/reciperunner/utils/mcp"
	"github.com/recipeforge/reciperunner/utils/rconfig"
	"github.com/recipeforge/reciperunner/utils/steps"
)

// OpenAIProvider talks to the chat-completions API via go-openai, using
// its ChatCompletionRequest/ResponseFormat/Tools fields for structured
// output and tool calls. It is the one provider in this module that
// actually drives an MCP tool-call round trip, since go-openai's Tools
// field is the natural home for it.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider authenticated with apiKey.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req steps.GenerateRequest) (steps.GenerateResult, error) {
	if p.client == nil {
		return steps.GenerateResult{}, fmt.Errorf("openai provider not configured: missing API key")
	}

	var tools []openai.Tool
	var bindings map[string]mcp.ToolBinding
	if len(req.MCPServers) > 0 {
		servers, err := parseServers(req.MCPServers)
		if err != nil {
			return steps.GenerateResult{}, err
		}
		bindings, err = mcp.ListAll(ctx, servers)
		if err != nil {
			return steps.GenerateResult{}, err
		}
		tools = toolsFromBindings(bindings)
	}

	ccReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		ccReq.MaxTokens = req.MaxTokens
	}
	if len(tools) > 0 {
		ccReq.Tools = tools
	}
	switch req.Output.Kind {
	case steps.OutputSchemaObject, steps.OutputSchemaArray:
		ccReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		ccReq.Messages[0].Content += "\n\nRespond with only JSON matching this schema:\n" + mustMarshal(req.Output.Schema)
	case steps.OutputFiles:
		ccReq.Messages[0].Content += "\n\nRespond with only a JSON array of objects, each {\"path\":..., \"content\":...}."
	}

	rconfig.DebugLog("[openai] generating with model %s (output=%s, tools=%d)", req.Model, req.Output.Kind, len(tools))

	resp, err := p.client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		return steps.GenerateResult{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return steps.GenerateResult{}, fmt.Errorf("openai returned no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 && len(tools) > 0 {
		msg, err = p.runToolCalls(ctx, ccReq, msg, bindings)
		if err != nil {
			return steps.GenerateResult{}, err
		}
	}

	return decodeTextResult(req.Output, msg.Content)
}

// runToolCalls executes one round of requested tool calls against their
// MCP servers, feeds the results back, and returns the model's follow-up
// message. Recipes that need multi-round tool use are expected to loop
// the llm_generate step themselves; its step contract is one call in,
// one result out.
func (p *OpenAIProvider) runToolCalls(ctx context.Context, req openai.ChatCompletionRequest, assistantMsg openai.ChatCompletionMessage, bindings map[string]mcp.ToolBinding) (openai.ChatCompletionMessage, error) {
	messages := append(req.Messages, assistantMsg)

	for _, call := range assistantMsg.ToolCalls {
		var args map[string]interface{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return openai.ChatCompletionMessage{}, fmt.Errorf("decoding tool call arguments: %w", err)
			}
		}
		result, err := mcp.Invoke(ctx, bindings, call.Function.Name, args)
		if err != nil {
			return openai.ChatCompletionMessage{}, fmt.Errorf("invoking mcp tool %q: %w", call.Function.Name, err)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleTool,
			Content: result,
			ToolCallID: call.ID,
		})
	}

	req.Messages = messages
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("openai follow-up chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("openai returned no choices on tool follow-up")
	}
	return resp.Choices[0].Message, nil
}

func toolsFromBindings(bindings map[string]mcp.ToolBinding) []openai.Tool {
	out := make([]openai.Tool, 0, len(bindings))
	for name, binding := range bindings {
		params := binding.Tool.InputSchema
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name: name,
				Description: binding.Tool.Description,
				Parameters: params,
			},
		})
	}
	return out
}

func parseServers(raw []map[string]interface{}) ([]mcp.ServerConfig, error) {
	out := make([]mcp.ServerConfig, 0, len(raw))
	for _, m := range raw {
		cfg, err := mcp.ParseServerConfig(m)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
