package steps

import (
	"context"
	"log"
	"os"

	"github.com/recipeforge/reciperunner/utils/executor"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/recipeforge/reciperunner/utils/template"
)

const executeRecipeType = "execute_recipe"

// executeRecipeStep invokes a sub-recipe with optional context
// overrides, sharing the caller's live state.
type executeRecipeStep struct {
	logger *log.Logger
	registry *registry.Registry
	recipePath string
	contextOverrides map[string]interface{}
}

// NewExecuteRecipeFactory returns the execute_recipe factory, closing over
// the shared registry so nested recipes resolve the same step vocabulary
// as the top-level run.
func NewExecuteRecipeFactory(reg *registry.Registry) registry.Factory {
	return func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		path, err := requireString(config, executeRecipeType, "recipe_path")
		if err != nil {
			return nil, err
		}
		overrides, err := optionalStringMap(config, executeRecipeType, "context_overrides")
		if err != nil {
			return nil, err
		}
		return &executeRecipeStep{
			logger: logger,
			registry: reg,
			recipePath: path,
			contextOverrides: overrides,
		}, nil
	}
}

func (s *executeRecipeStep) Execute(ctx context.Context, st *state.State) error {
	// Render and apply each override into the *same* state before the
	// sub-recipe runs; overrides persist after return, they are never
	// reverted.
	for key, raw := range s.contextOverrides {
		tmpl, ok := raw.(string)
		if !ok {
			return &rerr.ConfigInvalid{StepType: executeRecipeType, Reason: "context_overrides values must be strings"}
		}
		rendered, err := template.Render(tmpl, st.FlatView())
		if err != nil {
			return err
		}
		st.Set(key, rendered)
	}

	renderedPath, err := template.Render(s.recipePath, st.FlatView())
	if err != nil {
		return err
	}
	if _, err := os.Stat(renderedPath); err != nil {
		return &rerr.FileMissing{Path: renderedPath}
	}

	nested := executor.New(s.registry, s.logger)
	return nested.Execute(ctx, renderedPath, st)
}
