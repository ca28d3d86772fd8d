// Package registry implements the step protocol and the name->factory
// map: a global, process-wide registry populated at startup and
// read-only thereafter in normal operation.
package registry

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/recipeforge/reciperunner/utils/state"
)

// Step is the uniform contract every step kind satisfies: execute
// against the shared state, returning an error on failure. Steps must
// not hold state across calls; a registry Factory builds one instance
// per invocation.
type Step interface {
	Execute(ctx context.Context, s *state.State) error
}

// Factory builds a Step from its raw config map, validating the config
// synchronously and returning ConfigInvalid on a shape mismatch.
type Factory func(logger *log.Logger, config map[string]interface{}) (Step, error)

// Registry is the string-keyed map of step type name -> factory.
type Registry struct {
	mu sync.RWMutex
	factories map[string]Factory
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, overwriting any existing entry.
// Registration happens at startup (see steps.RegisterAll); the registry
// is read-only after that in normal operation.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Lookup returns the factory registered under name, or false if none.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Build instantiates a step by type name, returning a plain descriptive
// error for an unregistered name. The executor does not call Build: it
// uses Lookup and raises UnknownStepType itself.
func (r *Registry) Build(logger *log.Logger, stepType string, config map[string]interface{}) (Step, error) {
	factory, ok := r.Lookup(stepType)
	if !ok {
		return nil, fmt.Errorf("step type %q is not registered", stepType)
	}
	return factory(logger, config)
}
