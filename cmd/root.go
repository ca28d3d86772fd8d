// Package cmd implements the CLI surface: a cobra root command with
// persistent flags, a PersistentPreRunE that loads environment/.env
// configuration before any subcommand runs, and log.SetFlags(0) for
// clean CLI output.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recipeforge/reciperunner/utils/executor"
	"github.com/recipeforge/reciperunner/utils/historylog"
	"github.com/recipeforge/reciperunner/utils/llm"
	"github.com/recipeforge/reciperunner/utils/progress"
	"github.com/recipeforge/reciperunner/utils/rconfig"
	"github.com/recipeforge/reciperunner/utils/recipe"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/recipeforge/reciperunner/utils/steps"
)

var (
	verbose bool
	debug bool
	logDir string

	contextFlags []string
	configFlags []string
)

var rootCmd = &cobra.Command{
	Use: "reciperunner <recipe_path>",
	Short: "Execute a declarative JSON recipe against a shared artifact store",
	Long: `reciperunner runs a JSON recipe: an ordered list of typed steps that read
from and write to a shared execution context, materializing rendered text,
LLM responses, and generated files as a side effect.

 reciperunner run recipe.json --context name=value --config api_key=sk-...

Configuration is loaded, in order: a .env file in the working directory,
environment variables named in the recipe's env_vars list, then --config
overrides (which win).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// A bare `reciperunner recipe.json` is shorthand for `run`.
		if len(args) == 0 {
			return cmd.Help()
		}
		return runRecipe(args[0])
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFlags(0)

		if logFileName := os.Getenv("RECIPE_LOG_FILE"); logFileName != "" {
			if file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
				log.SetOutput(file)
			} else {
				log.Printf("[WARN] failed to open log file %q: %v. Continuing with stdout logging.\n", logFileName, err)
			}
		}

		rconfig.Verbose = verbose
		rconfig.Debug = debug
		return nil
	},
}

var runCmd = &cobra.Command{
	Use: "run <recipe_path>",
	Short: "Execute a recipe",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecipe(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging (secrets are masked)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory for log output")
	rootCmd.PersistentFlags().StringArrayVar(&contextFlags, "context", nil, "initial artifact as key=value (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&configFlags, "config", nil, "configuration override as key=value, takes precedence over environment (repeatable)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI, exiting 1 on any failure 
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runRecipe builds the execution context and registry, then drives the
// executor over recipePath. It is the one call site that wires logDir,
// --context, and --config into a fresh run.
func runRecipe(recipePath string) error {
	ctx := context.Background()

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("creating log directory %q: %w", logDir, err)
		}
		logPath := filepath.Join(logDir, "reciperunner.log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file %q: %w", logPath, err)
		}
		defer file.Close()
		log.SetOutput(file)
	}

	loaded, err := recipe.Load(recipePath)
	if err != nil {
		return err
	}
	if err := recipe.Validate(loaded); err != nil {
		return err
	}
	rconfig.VerboseLog("loaded recipe %s (%d steps)", recipePath, len(loaded.Steps))

	envPath := rconfig.GetEnvPath()
	envCfg, err := rconfig.LoadEnvConfig(envPath, loaded.EnvVars)
	if err != nil {
		return err
	}
	overrides, err := parseKeyValueFlags("config", configFlags)
	if err != nil {
		return err
	}
	for k, v := range overrides {
		envCfg.Set(k, v)
	}

	ctxValues, err := parseKeyValueFlags("context", contextFlags)
	if err != nil {
		return err
	}
	initialArtifacts := make(map[string]interface{}, len(ctxValues))
	for k, v := range ctxValues {
		initialArtifacts[k] = v
	}

	st := state.New(initialArtifacts, envCfg.Snapshot())

	reg := registry.New()
	steps.RegisterAll(reg, buildLLMProvider(envCfg))

	exec := executor.New(reg, log.Default())
	exec.Observer = progress.NewReporter(os.Stdout)

	if dsn, ok := st.ConfigGet("history_dsn", "").(string); ok && dsn != "" {
		recorder, err := historylog.Open(ctx, dsn)
		if err != nil {
			log.Printf("[WARN] run history disabled: %v\n", err)
		} else {
			defer recorder.Close()
			exec.Observer = multiObserver{exec.Observer, recorder}
			rconfig.DebugLog("[historylog] run id %s", recorder.RunID)
		}
	}

	return exec.ExecuteRecipe(ctx, loaded, st)
}

// parseKeyValueFlags splits a repeatable key=value flag's entries into a
// map. Values may themselves contain '='; only the first one splits.
func parseKeyValueFlags(flagName string, entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, kv := range entries {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--%s value %q must be key=value", flagName, kv)
		}
		out[k] = v
	}
	return out, nil
}

// buildLLMProvider assembles the llm.Registry from whichever provider
// credentials are present in cfg.
// A provider with no credentials configured is simply never registered;
// llm_generate steps that reference it fail with a clear "no provider
// registered" error rather than a confusing nil-pointer panic.
func buildLLMProvider(cfg *rconfig.EnvConfig) steps.LLMProvider {
	llmReg := llm.NewRegistry()

	if key := cfg.Get("openai_api_key"); key != "" {
		llmReg.Register(llm.NewOpenAIProvider(key), "openai")
	}
	if key := cfg.Get("gemini_api_key"); key != "" {
		llmReg.Register(llm.NewGeminiProvider(key), "gemini", "google")
	}
	if region := cfg.Get("aws_region"); region != "" || cfg.Get("aws_access_key_id") != "" {
		if bedrock, err := llm.NewBedrockProvider(context.Background(), region); err == nil {
			llmReg.Register(bedrock, "bedrock", "anthropic")
		}
	}
	llmReg.Register(llm.NewOllamaProvider(), "ollama")

	return llmReg
}

// multiObserver fans a step lifecycle event out to every observer in
// order, so the terminal progress reporter and the history log recorder
// can both watch the same run without either knowing about the other.
type multiObserver []executor.Observer

func (m multiObserver) StepStarted(index int, stepType string, config map[string]interface{}) {
	for _, o := range m {
		if o != nil {
			o.StepStarted(index, stepType, config)
		}
	}
}

func (m multiObserver) StepFinished(index int, stepType string, err error) {
	for _, o := range m {
		if o != nil {
			o.StepFinished(index, stepType, err)
		}
	}
}

var version string

var versionCmd = &cobra.Command{
	Use: "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version == "" {
			version = "unknown (build with: go build -ldflags \"-X 'github.com/recipeforge/reciperunner/cmd.version=vX.Y.Z'\")"
		}
		fmt.Printf("reciperunner version: %s\n", version)
	},
}
