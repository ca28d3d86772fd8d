package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
	"steps": [
		{"type": "read_files", "config": {"path": "in.txt", "content_key": "x"}},
		{"type": "write_files", "config": {"files_key": "out"}}
	],
	"env_vars": ["OPENAI_API_KEY"]
}`

func TestLoadFromJSONText(t *testing.T) {
	r, err := Load(sampleJSON)
	require.NoError(t, err)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, "read_files", r.Steps[0].Type)
	assert.Equal(t, []string{"OPENAI_API_KEY"}, r.EnvVars)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipe.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	require.Len(t, r.Steps, 2)
}

func TestLoadFromMissingPathRaisesRecipeNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	var notFound *rerr.RecipeNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestLoadFromMalformedJSONRaisesRecipeParse(t *testing.T) {
	_, err := Load("{not json")
	require.Error(t, err)
	var parseErr *rerr.RecipeParse
	require.ErrorAs(t, err, &parseErr)
}

func TestLoadMissingStepsRaisesRecipeInvalid(t *testing.T) {
	_, err := Load(`{"env_vars": []}`)
	require.Error(t, err)
	var invalid *rerr.RecipeInvalid
	require.ErrorAs(t, err, &invalid)
}

func TestLoadStepWithEmptyTypeRaisesRecipeInvalid(t *testing.T) {
	_, err := Load(`{"steps": [{"type": "", "config": {}}]}`)
	require.Error(t, err)
}

func TestLoadPassThrough(t *testing.T) {
	original := &Recipe{Steps: []Step{{Type: "conditional", Config: map[string]interface{}{}}}}
	r, err := Load(original)
	require.NoError(t, err)
	assert.Same(t, original, r)
}

func TestLoadFromMap(t *testing.T) {
	m := map[string]interface{}{
		"steps": []interface{}{
			map[string]interface{}{"type": "loop", "config": map[string]interface{}{}},
		},
	}
	r, err := Load(m)
	require.NoError(t, err)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "loop", r.Steps[0].Type)
}

func TestValidateRejectsNilConfig(t *testing.T) {
	r := &Recipe{Steps: []Step{{Type: "loop", Config: nil}}}
	err := Validate(r)
	require.Error(t, err)
}
