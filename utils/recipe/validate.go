package recipe

import (
	"fmt"

	"github.com/recipeforge/reciperunner/utils/rerr"
)

// Validate re-checks a Recipe's structural invariants. Load already
// enforces these while parsing; Validate exists so a *Recipe built by
// hand (the pass-through input mode) gets the same pre-flight check
// before the executor ever dispatches a step, rather than surfacing a
// shape mistake mid-run as a confusing step failure.
func Validate(r *Recipe) error {
	if r == nil {
		return &rerr.RecipeInvalid{Reason: "recipe is nil"}
	}
	for i, step := range r.Steps {
		if step.Type == "" {
			return &rerr.RecipeInvalid{Reason: fmt.Sprintf("step %d: \"type\" must be a non-empty string", i)}
		}
		if step.Config == nil {
			return &rerr.RecipeInvalid{Reason: fmt.Sprintf("step %d: \"config\" must be a mapping (possibly empty)", i)}
		}
	}
	return nil
}
