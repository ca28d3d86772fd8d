// Package rerr defines the error taxonomy: named error kinds that carry
// enough context (step index, step type, cause chain) to pinpoint
// exactly one offending step in a nested recipe run. Every kind wraps
// its cause so errors.Is/errors.As and errors.Unwrap chains work across
// StepFailure -> LoopItemFailed -> StepFailure -> LLMFailed.
package rerr

import "fmt"

// RecipeInvalid is raised by the loader on a schema violation.
type RecipeInvalid struct {
	Reason string
}

func (e *RecipeInvalid) Error() string { return fmt.Sprintf("recipe invalid: %s", e.Reason) }

// RecipeNotFound is raised when a recipe path does not exist on disk.
type RecipeNotFound struct {
	Path string
}

func (e *RecipeNotFound) Error() string { return fmt.Sprintf("recipe not found: %s", e.Path) }

// RecipeParse is raised on malformed recipe JSON.
type RecipeParse struct {
	Cause error
}

func (e *RecipeParse) Error() string { return fmt.Sprintf("recipe parse error: %v", e.Cause) }
func (e *RecipeParse) Unwrap() error { return e.Cause }

// UnknownStepType is raised by executor dispatch when a step's type is not
// registered.
type UnknownStepType struct {
	Index int
	Type string
}

func (e *UnknownStepType) Error() string {
	return fmt.Sprintf("unknown step type %q at step %d", e.Type, e.Index)
}

// ConfigInvalid is raised by a step factory when its config map fails
// validation.
type ConfigInvalid struct {
	StepType string
	Reason string
}

func (e *ConfigInvalid) Error() string {
	return fmt.Sprintf("invalid config for step %q: %s", e.StepType, e.Reason)
}

// KeyMissing is raised by Context reads of an absent key.
type KeyMissing struct {
	Key string
}

func (e *KeyMissing) Error() string { return fmt.Sprintf("key missing: %q", e.Key) }

// TemplateError is raised by the renderer on a syntactic template error.
type TemplateError struct {
	Template string
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error in %q: %s", e.Template, e.Reason)
}

// FileMissing is raised by read_files/execute_recipe when a required path
// does not exist.
type FileMissing struct {
	Path string
}

func (e *FileMissing) Error() string { return fmt.Sprintf("file missing: %s", e.Path) }

// ConditionInvalid is raised by the conditional step on a malformed
// expression, carrying both the pre- and post-render forms.
type ConditionInvalid struct {
	PreRender string
	PostRender string
	Reason string
}

func (e *ConditionInvalid) Error() string {
	return fmt.Sprintf("invalid condition %q (rendered: %q): %s", e.PreRender, e.PostRender, e.Reason)
}

// LoopItemsInvalid is raised by the loop step when the resolved items
// value is absent or not iterable.
type LoopItemsInvalid struct {
	Path string
}

func (e *LoopItemsInvalid) Error() string {
	return fmt.Sprintf("loop items at %q is absent or not iterable", e.Path)
}

// LoopItemFailed wraps a single iteration's failure, keyed by its array
// index or map key.
type LoopItemFailed struct {
	KeyOrIndex interface{}
	Cause error
}

func (e *LoopItemFailed) Error() string {
	return fmt.Sprintf("loop item %v failed: %v", e.KeyOrIndex, e.Cause)
}
func (e *LoopItemFailed) Unwrap() error { return e.Cause }

// LLMFailed wraps an LLM collaborator failure with the model identifier
// that was in use.
type LLMFailed struct {
	Model string
	Cause error
}

func (e *LLMFailed) Error() string { return fmt.Sprintf("llm call to %q failed: %v", e.Model, e.Cause) }
func (e *LLMFailed) Unwrap() error { return e.Cause }

// StepFailure is the executor's wrapper around any step error, carrying
// the step's index and type so nested executors produce a breadcrumb
// trail back to the exact offending step.
type StepFailure struct {
	Index int
	StepType string
	Cause error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.StepType, e.Cause)
}
func (e *StepFailure) Unwrap() error { return e.Cause }
