package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/recipeforge/reciperunner/utils/rconfig"
	"github.com/recipeforge/reciperunner/utils/steps"
)

// Registry dispatches a generate request by parsing the opaque
// provider/model[/deployment] identifier and routing to the
// matching registered Provider. It implements steps.LLMProvider, so a
// *Registry is what cmd/root.go hands the step registry as the one LLM
// collaborator the core ever talks to.
type Registry struct {
	mu sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under one or more aliases (e.g. both
// "anthropic" and "bedrock" may route to the same Bedrock-backed
// provider).
func (r *Registry) Register(provider Provider, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alias := range aliases {
		r.providers[strings.ToLower(alias)] = provider
	}
}

// Generate implements steps.LLMProvider. It splits req.Model into
// provider/model[/deployment], looks up the provider, and delegates with
// the identifier trimmed to its provider-local model name.
func (r *Registry) Generate(ctx context.Context, req steps.GenerateRequest) (steps.GenerateResult, error) {
	providerName, modelName, deployment, err := splitIdentifier(req.Model)
	if err != nil {
		return steps.GenerateResult{}, err
	}

	r.mu.RLock()
	provider, ok := r.providers[strings.ToLower(providerName)]
	r.mu.RUnlock()
	if !ok {
		return steps.GenerateResult{}, fmt.Errorf("no provider registered for %q", providerName)
	}

	rconfig.DebugLog("[llm] dispatching model %q to provider %s (deployment=%q)", req.Model, provider.Name(), deployment)

	req.Model = modelName
	req.Deployment = deployment
	return provider.Generate(ctx, req)
}

// splitIdentifier parses "provider/model" or "provider/model/deployment".
func splitIdentifier(identifier string) (provider, model, deployment string, err error) {
	parts := strings.SplitN(identifier, "/", 3)
	switch len(parts) {
	case 2:
		return parts[0], parts[1], "", nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", fmt.Errorf("llm model identifier %q must be \"provider/model\" or \"provider/model/deployment\"", identifier)
	}
}
