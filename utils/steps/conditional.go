package steps

import (
	"context"
	"log"

	"github.com/recipeforge/reciperunner/utils/executor"
	"github.com/recipeforge/reciperunner/utils/recipe"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/recipeforge/reciperunner/utils/template"
)

const conditionalType = "conditional"

// conditionalStep evaluates a boolean template expression and runs one
// of two sub-step blocks.
type conditionalStep struct {
	registry  *registry.Registry
	condition string
	ifTrue    *recipe.Recipe
	ifFalse   *recipe.Recipe
}

// NewConditionalFactory returns the conditional factory, closing over the
// shared registry so its branches resolve the same step vocabulary.
func NewConditionalFactory(reg *registry.Registry) registry.Factory {
	return func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		condition, err := requireString(config, conditionalType, "condition")
		if err != nil {
			return nil, err
		}

		ifTrue, err := loadBranch(config, "if_true")
		if err != nil {
			return nil, err
		}
		ifFalse, err := loadBranch(config, "if_false")
		if err != nil {
			return nil, err
		}

		return &conditionalStep{
			registry:  reg,
			condition: condition,
			ifTrue:    ifTrue,
			ifFalse:   ifFalse,
		}, nil
	}
}

func loadBranch(config map[string]interface{}, key string) (*recipe.Recipe, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return nil, nil
	}
	branchMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &rerr.ConfigInvalid{StepType: conditionalType, Reason: key + " must be a mapping with a steps list"}
	}
	r, err := recipe.Load(branchMap)
	if err != nil {
		return nil, &rerr.ConfigInvalid{StepType: conditionalType, Reason: key + ": " + err.Error()}
	}
	return r, nil
}

func (s *conditionalStep) Execute(ctx context.Context, st *state.State) error {
	rendered, err := template.Render(s.condition, st.FlatView())
	if err != nil {
		return err
	}

	truthy, evalErr := evalExpr(rendered)
	if evalErr != nil {
		return &rerr.ConditionInvalid{PreRender: s.condition, PostRender: rendered, Reason: evalErr.Error()}
	}

	branch := s.ifFalse
	if truthy {
		branch = s.ifTrue
	}
	if branch == nil {
		return nil
	}

	nested := executor.New(s.registry, nil)
	return nested.ExecuteRecipe(ctx, branch, st)
}
