package steps

import "github.com/recipeforge/reciperunner/utils/registry"

// RegisterAll wires every step kind's factory into reg. Composition steps
// (execute_recipe, loop, conditional) close over reg itself so nested
// recipes and substeps resolve the same vocabulary as the top-level run;
// llm_generate closes over the supplied LLM collaborator.
func RegisterAll(reg *registry.Registry, llm LLMProvider) {
	reg.Register("execute_recipe", NewExecuteRecipeFactory(reg))
	reg.Register("loop", NewLoopFactory(reg))
	reg.Register("conditional", NewConditionalFactory(reg))
	reg.Register("llm_generate", NewLLMGenerateFactory(llm))
	reg.Register("read_files", NewReadFilesFactory())
	reg.Register("write_files", NewWriteFilesFactory())
}
