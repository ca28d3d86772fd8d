// Package recipe implements the recipe model and loader: a Recipe is an
// ordered list of typed steps, loaded from a path, JSON text, a byte
// buffer, a map, or passed through already parsed. Recipes are value
// objects after loading — nothing here mutates a Recipe once Load
// returns it.
package recipe

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/recipeforge/reciperunner/utils/rerr"
)

// Step is one entry in a recipe's steps list.
type Step struct {
	Type string `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// Recipe is the parsed workflow document.
type Recipe struct {
	Steps []Step `json:"steps"`
	EnvVars []string `json:"env_vars,omitempty"`
}

// Load accepts, in priority order: a *Recipe (pass-through), a
// map[string]interface{} (validated and decoded), a filesystem path
// that exists (read + parse as JSON), or raw JSON text.
func Load(input interface{}) (*Recipe, error) {
	switch v := input.(type) {
	case *Recipe:
		return v, nil
	case Recipe:
		return &v, nil
	case map[string]interface{}:
		return fromMap(v)
	case []byte:
		return fromBytes(v)
	case string:
		if fi, err := os.Stat(v); err == nil && !fi.IsDir() {
			data, err := os.ReadFile(v)
			if err != nil {
				return nil, fmt.Errorf("reading recipe file %s: %w", v, err)
			}
			return fromBytes(data)
		}
		if _, err := os.Stat(v); err != nil && looksLikePath(v) {
			return nil, &rerr.RecipeNotFound{Path: v}
		}
		return fromBytes([]byte(v))
	default:
		return nil, &rerr.RecipeInvalid{Reason: fmt.Sprintf("unsupported recipe input type %T", input)}
	}
}

// looksLikePath is a best-effort heuristic distinguishing "a path that
// doesn't exist" from "this is JSON text", so a nonexistent file reports
// RecipeNotFound rather than a confusing parse error. JSON text always
// starts with '{' or whitespace leading to one; a recipe path practically
// never does.
func looksLikePath(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[':
			return false
		default:
			return true
		}
	}
	return true
}

func fromBytes(data []byte) (*Recipe, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &rerr.RecipeParse{Cause: err}
	}
	return fromMap(raw)
}

func fromMap(raw map[string]interface{}) (*Recipe, error) {
	stepsRaw, ok := raw["steps"]
	if !ok {
		return nil, &rerr.RecipeInvalid{Reason: "missing required field \"steps\""}
	}
	stepsList, ok := stepsRaw.([]interface{})
	if !ok {
		return nil, &rerr.RecipeInvalid{Reason: "\"steps\" must be an array"}
	}

	steps := make([]Step, 0, len(stepsList))
	for i, entry := range stepsList {
		stepMap, ok := entry.(map[string]interface{})
		if !ok {
			return nil, &rerr.RecipeInvalid{Reason: fmt.Sprintf("step %d must be an object", i)}
		}
		typeVal, ok := stepMap["type"].(string)
		if !ok || typeVal == "" {
			return nil, &rerr.RecipeInvalid{Reason: fmt.Sprintf("step %d: \"type\" must be a non-empty string", i)}
		}
		configVal := map[string]interface{}{}
		if raw, ok := stepMap["config"]; ok && raw != nil {
			cfgMap, ok := raw.(map[string]interface{})
			if !ok {
				return nil, &rerr.RecipeInvalid{Reason: fmt.Sprintf("step %d: \"config\" must be an object", i)}
			}
			configVal = cfgMap
		}
		steps = append(steps, Step{Type: typeVal, Config: configVal})
	}

	var envVars []string
	if rawVars, ok := raw["env_vars"]; ok {
		list, ok := rawVars.([]interface{})
		if !ok {
			return nil, &rerr.RecipeInvalid{Reason: "\"env_vars\" must be an array of strings"}
		}
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				return nil, &rerr.RecipeInvalid{Reason: "\"env_vars\" entries must be strings"}
			}
			envVars = append(envVars, s)
		}
	}

	return &Recipe{Steps: steps, EnvVars: envVars}, nil
}
