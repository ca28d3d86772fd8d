package steps

import (
	"context"

	"github.com/recipeforge/reciperunner/utils/fsspec"
)

// OutputKind is the runtime output type the llm_generate step resolves
// from its output_format config field.
type OutputKind string

const (
	OutputText OutputKind = "text"
	OutputFiles OutputKind = "files"
	OutputSchemaObject OutputKind = "schema_object"
	OutputSchemaArray OutputKind = "schema_array"
)

// OutputSpec describes what shape of result the LLM collaborator should
// produce. Schema is the JSON-schema-shaped map for the two schema kinds;
// nil for text/files.
type OutputSpec struct {
	Kind OutputKind
	Schema map[string]interface{}
}

// GenerateRequest is the core's call into the LLM collaborator: given
// (prompt, model_id, output_type, max_tokens?, mcp_servers), returns the
// typed output. The core treats Model as an opaque
// provider/model[/deployment] identifier; only the collaborator parses
// it.
type GenerateRequest struct {
	Prompt string
	Model string
	Deployment string // set when the identifier was provider/model/deployment
	MaxTokens int
	Output OutputSpec
	MCPServers []map[string]interface{}
}

// GenerateResult carries exactly one of Text, Files, or Structured,
// matching the request's Output.Kind.
type GenerateResult struct {
	Text string
	Files []fsspec.FileSpec
	Structured interface{}
}

// LLMProvider is the external collaborator described only by interface
// here; this module's utils/llm package supplies concrete
// implementations dispatched by model identifier.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}
