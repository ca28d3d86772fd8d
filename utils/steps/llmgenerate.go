package steps

import (
	"context"
	"fmt"
	"log"

	"github.com/recipeforge/reciperunner/utils/fsspec"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/recipeforge/reciperunner/utils/template"
)

const llmGenerateType = "llm_generate"

// llmGenerateStep renders prompt/model/output key, resolves MCP
// servers, invokes the LLM collaborator, and stores the normalized
// result.
type llmGenerateStep struct {
	provider LLMProvider
	prompt string
	model string
	maxTokens int
	outputFormat interface{} // "text" | "files" | schema map
	outputKey string
	localServers []map[string]interface{}
}

// NewLLMGenerateFactory returns the llm_generate factory, closing over
// the shared LLM collaborator.
func NewLLMGenerateFactory(provider LLMProvider) registry.Factory {
	return func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		prompt, err := requireString(config, llmGenerateType, "prompt")
		if err != nil {
			return nil, err
		}
		model, err := requireString(config, llmGenerateType, "model")
		if err != nil {
			return nil, err
		}
		outputKey, err := requireString(config, llmGenerateType, "output_key")
		if err != nil {
			return nil, err
		}
		maxTokens, err := optionalInt(config, llmGenerateType, "max_tokens", 0)
		if err != nil {
			return nil, err
		}

		outputFormat, ok := config["output_format"]
		if !ok {
			return nil, &rerr.ConfigInvalid{StepType: llmGenerateType, Reason: "missing required field \"output_format\""}
		}

		var localServers []map[string]interface{}
		rawServers, err := optionalSlice(config, llmGenerateType, "mcp_servers")
		if err != nil {
			return nil, err
		}
		for _, entry := range rawServers {
			m, ok := entry.(map[string]interface{})
			if !ok {
				return nil, &rerr.ConfigInvalid{StepType: llmGenerateType, Reason: "mcp_servers entries must be objects"}
			}
			localServers = append(localServers, m)
		}

		return &llmGenerateStep{
			provider: provider,
			prompt: prompt,
			model: model,
			maxTokens: maxTokens,
			outputFormat: outputFormat,
			outputKey: outputKey,
			localServers: localServers,
		}, nil
	}
}

func (s *llmGenerateStep) Execute(ctx context.Context, st *state.State) error {
	view := st.FlatView()

	prompt, err := template.Render(s.prompt, view)
	if err != nil {
		return err
	}
	model, err := template.Render(s.model, view)
	if err != nil {
		return err
	}
	outputKey, err := template.Render(s.outputKey, view)
	if err != nil {
		return err
	}

	renderedServers, err := renderMCPServers(s.localServers, view)
	if err != nil {
		return err
	}
	global, _ := st.ConfigGet("mcp_servers", nil).([]interface{})
	merged := mergeMCPServers(global, renderedServers)

	output, err := resolveOutputSpec(s.outputFormat)
	if err != nil {
		return err
	}

	req := GenerateRequest{
		Prompt: prompt,
		Model: model,
		MaxTokens: s.maxTokens,
		Output: output,
		MCPServers: merged,
	}

	result, err := s.provider.Generate(ctx, req)
	if err != nil {
		return &rerr.LLMFailed{Model: model, Cause: err}
	}

	normalized, err := normalizeResult(output, result)
	if err != nil {
		return &rerr.LLMFailed{Model: model, Cause: err}
	}

	st.Set(outputKey, normalized)
	return nil
}

// resolveOutputSpec turns the raw output_format config value into an
// OutputSpec, wrapping an array-shaped schema under a synthetic root
// object so the collaborator always receives an object schema to fill
// in.
func resolveOutputSpec(raw interface{}) (OutputSpec, error) {
	switch v := raw.(type) {
	case string:
		switch v {
		case "text":
			return OutputSpec{Kind: OutputText}, nil
		case "files":
			return OutputSpec{Kind: OutputFiles}, nil
		default:
			return OutputSpec{}, &rerr.ConfigInvalid{StepType: llmGenerateType, Reason: fmt.Sprintf("unsupported output_format %q", v)}
		}
	case map[string]interface{}:
		if t, _ := v["type"].(string); t == "array" {
			wrapped := map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"items": v,
				},
				"required": []interface{}{"items"},
			}
			return OutputSpec{Kind: OutputSchemaArray, Schema: wrapped}, nil
		}
		return OutputSpec{Kind: OutputSchemaObject, Schema: v}, nil
	default:
		return OutputSpec{}, &rerr.ConfigInvalid{StepType: llmGenerateType, Reason: "output_format must be \"text\", \"files\", or a JSON-schema object"}
	}
}

// normalizeResult extracts the value to store in the context, unwrapping
// the synthetic "items" root for schema-array output. Text is stored as a
// string, files as a copied []fsspec.FileSpec, and structured results as
// the collaborator returned them, with no further conversion.
func normalizeResult(output OutputSpec, result GenerateResult) (interface{}, error) {
	switch output.Kind {
	case OutputText:
		return result.Text, nil
	case OutputFiles:
		return fsspec.CloneSlice(result.Files), nil
	case OutputSchemaObject:
		return result.Structured, nil
	case OutputSchemaArray:
		obj, ok := result.Structured.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("schema-array result was not an object with an \"items\" field")
		}
		items, ok := obj["items"]
		if !ok {
			return nil, fmt.Errorf("schema-array result missing \"items\" field")
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unhandled output kind %q", output.Kind)
	}
}

func renderMCPServers(servers []map[string]interface{}, view map[string]interface{}) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(servers))
	for _, s := range servers {
		rendered, err := renderStringTree(s, view)
		if err != nil {
			return nil, err
		}
		m, ok := rendered.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("mcp server config did not render to an object")
		}
		out = append(out, m)
	}
	return out, nil
}

// renderStringTree walks an arbitrary JSON-like value and template-renders
// every string leaf, so MCP server fields like headers and env maps are
// templated field-by-field.
func renderStringTree(v interface{}, view map[string]interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return template.Render(val, view)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			rendered, err := renderStringTree(e, view)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			rendered, err := renderStringTree(e, view)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

// mergeMCPServers unions the global (state.config["mcp_servers"]) and
// local (per-call) server lists, preferring the local entry on key
// collision. A server's identity is its url or command field, whichever
// is present.
func mergeMCPServers(global []interface{}, local []map[string]interface{}) []map[string]interface{} {
	byKey := make(map[string]map[string]interface{})
	var order []string

	add := func(m map[string]interface{}) {
		key := mcpServerKey(m)
		if _, exists := byKey[key]; !exists {
			order = append(order, key)
		}
		byKey[key] = m
	}

	for _, g := range global {
		if gm, ok := g.(map[string]interface{}); ok {
			add(gm)
		}
	}
	for _, l := range local {
		add(l)
	}

	out := make([]map[string]interface{}, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

func mcpServerKey(m map[string]interface{}) string {
	if u, ok := m["url"].(string); ok && u != "" {
		return "url:" + u
	}
	if c, ok := m["command"].(string); ok && c != "" {
		return "command:" + c
	}
	return fmt.Sprintf("%v", m)
}
