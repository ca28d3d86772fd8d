// Package executor implements the sequential dispatcher: the only
// component that walks a recipe's top-level steps array, dispatching each
// through the Step Registry and wrapping any failure with the step's
// index and type so nested executors produce a breadcrumb trail.
package executor

import (
	"context"
	"log"

	"github.com/recipeforge/reciperunner/utils/recipe"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
)

// Observer is notified around each top-level step dispatch, so a CLI can
// report progress or audit a run without the core caring who's listening.
// It is optional: an Executor with a nil Observer behaves exactly as
// before. Composition steps build their own nested Executor instances and
// do not propagate the parent's Observer to substeps — progress/history
// reporting is a top-level-run concern, not a per-substep one.
type Observer interface {
	StepStarted(index int, stepType string, config map[string]interface{})
	StepFinished(index int, stepType string, err error)
}

// Executor dispatches a recipe's steps in order. It holds no state other
// than its registry, logger, and optional observer, so it is safely
// re-entrant: composition steps (execute_recipe, loop, conditional)
// construct a new Executor (or reuse one) to drive nested step lists
// without any call-stack-specific bookkeeping.
type Executor struct {
	Registry *registry.Registry
	Logger *log.Logger
	Observer Observer
}

// New returns an Executor bound to reg, logging through logger (or the
// standard logger if nil).
func New(reg *registry.Registry, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{Registry: reg, Logger: logger}
}

// Execute normalizes input into a Recipe (per recipe.Load's accepted
// forms) and runs its steps in order against s. Two Execute calls on the
// same Executor are independent: no state survives between them.
func (e *Executor) Execute(ctx context.Context, input interface{}, s *state.State) error {
	r, err := recipe.Load(input)
	if err != nil {
		return err
	}
	return e.ExecuteRecipe(ctx, r, s)
}

// ExecuteRecipe runs an already-loaded Recipe's steps in order against s.
func (e *Executor) ExecuteRecipe(ctx context.Context, r *recipe.Recipe, s *state.State) error {
	for i, step := range r.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.Observer != nil {
			e.Observer.StepStarted(i, step.Type, step.Config)
		}

		factory, ok := e.Registry.Lookup(step.Type)
		if !ok {
			err := &rerr.StepFailure{
				Index: i,
				StepType: step.Type,
				Cause: &rerr.UnknownStepType{Index: i, Type: step.Type},
			}
			if e.Observer != nil {
				e.Observer.StepFinished(i, step.Type, err)
			}
			return err
		}

		instance, err := factory(e.Logger, step.Config)
		if err != nil {
			wrapped := &rerr.StepFailure{Index: i, StepType: step.Type, Cause: err}
			if e.Observer != nil {
				e.Observer.StepFinished(i, step.Type, wrapped)
			}
			return wrapped
		}

		err = instance.Execute(ctx, s)
		if e.Observer != nil {
			e.Observer.StepFinished(i, step.Type, err)
		}
		if err != nil {
			return &rerr.StepFailure{Index: i, StepType: step.Type, Cause: err}
		}
	}
	return nil
}
