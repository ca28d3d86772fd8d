// Package llm is the LLM collaborator: given (prompt, model identifier,
// output type, max tokens, mcp servers), produce the typed output. The
// core never parses the provider/model[/deployment] identifier itself —
// this package owns that, dispatching to one of several concrete
// backends.
package llm

import (
	"context"

	"github.com/recipeforge/reciperunner/utils/steps"
)

// Provider is a single backend capable of servicing a generate request
// once the opaque model identifier has already been split into its
// provider-local model name and optional deployment.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req steps.GenerateRequest) (steps.GenerateResult, error)
}
