// Package steps implements the composition and leaf step kinds:
// execute_recipe, loop, conditional, llm_generate, read_files, and
// write_files. Each step type owns a Factory that validates its config
// map synchronously, per the Step Registry contract in utils/registry.
package steps

import (
	"fmt"

	"github.com/recipeforge/reciperunner/utils/rerr"
)

func requireString(config map[string]interface{}, stepType, key string) (string, error) {
	v, ok := config[key]
	if !ok {
		return "", &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("missing required field %q", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("field %q must be a string", key)}
	}
	return s, nil
}

func optionalString(config map[string]interface{}, stepType, key, def string) (string, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("field %q must be a string", key)}
	}
	return s, nil
}

func optionalBool(config map[string]interface{}, stepType, key string, def bool) (bool, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("field %q must be a bool", key)}
	}
	return b, nil
}

func optionalInt(config map[string]interface{}, stepType, key string, def int) (int, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("field %q must be a number", key)}
	}
}

func optionalFloat(config map[string]interface{}, stepType, key string, def float64) (float64, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("field %q must be a number", key)}
	}
}

func optionalStringMap(config map[string]interface{}, stepType, key string) (map[string]interface{}, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("field %q must be a mapping", key)}
	}
	return m, nil
}

func optionalSlice(config map[string]interface{}, stepType, key string) ([]interface{}, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.([]interface{})
	if !ok {
		return nil, &rerr.ConfigInvalid{StepType: stepType, Reason: fmt.Sprintf("field %q must be a list", key)}
	}
	return s, nil
}
