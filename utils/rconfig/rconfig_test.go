package rconfig

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvConfigMergesDotEnvAndDeclaredVars(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"# comment line\n"+
			"OPENAI_API_KEY=sk-from-file\n"+
			"QUOTED=\"with quotes\"\n"+
			"\n"+
			"not-a-pair\n",
	), 0o644))

	t.Setenv("RECIPE_TEST_VAR", "from-env")

	cfg, err := LoadEnvConfig(envPath, []string{"RECIPE_TEST_VAR", "RECIPE_UNSET_VAR"})
	require.NoError(t, err)

	assert.Equal(t, "sk-from-file", cfg.Get("openai_api_key"))
	assert.Equal(t, "with quotes", cfg.Get("quoted"))
	assert.Equal(t, "from-env", cfg.Get("recipe_test_var"))
	assert.Equal(t, "", cfg.Get("recipe_unset_var"))
}

func TestLoadEnvConfigMissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadEnvConfig(filepath.Join(t.TempDir(), "nope.env"), nil)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Get("anything"))
}

func TestSetOverridesLoadedValue(t *testing.T) {
	cfg := NewEnvConfig()
	cfg.Set("api_key", "from-env")
	cfg.Set("API_KEY", "from-cli")
	assert.Equal(t, "from-cli", cfg.Get("api_key"), "later Set wins, keys are case-insensitive")
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg := NewEnvConfig()
	cfg.Set("a", "1")
	snap := cfg.Snapshot()
	snap["a"] = "mutated"
	assert.Equal(t, "1", cfg.Get("a"))
}

func TestIsSecretName(t *testing.T) {
	secret := []string{"openai_api_key", "AUTH_HEADER", "db_password", "refresh_token", "client_secret"}
	for _, name := range secret {
		assert.True(t, IsSecretName(name), name)
	}
	plain := []string{"model", "prompt", "history_dsn", "output"}
	for _, name := range plain {
		assert.False(t, IsSecretName(name), name)
	}
}

func TestMaskSecretString(t *testing.T) {
	assert.Equal(t, "s**********3", MaskSecretString("sk-abcdef123"))
	assert.Equal(t, "**", MaskSecretString("ab"))
	assert.Equal(t, "", MaskSecretString(""))
}

func TestDebugLogMasksOnlySecretKeyedFields(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	prevFlags := log.Flags()
	log.SetFlags(0)
	defer log.SetFlags(prevFlags)

	Debug = true
	defer func() { Debug = false }()

	DebugLog("dispatching model %q with config %v",
		"openai/gpt-4o",
		map[string]interface{}{"api_key": "sk-abcdef123", "prompt": "say hi"},
	)

	out := buf.String()
	assert.Contains(t, out, "openai/gpt-4o", "bare strings pass through unmasked")
	assert.Contains(t, out, "say hi")
	assert.NotContains(t, out, "sk-abcdef123")
	assert.Contains(t, out, "s**********3")
}

func TestDebugLogDisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Debug = false
	DebugLog("should not appear %s", "at all")
	assert.Empty(t, buf.String())
}

func TestMaskSecretsWalksNestedValues(t *testing.T) {
	input := map[string]interface{}{
		"model":   "gpt-4o",
		"api_key": "sk-abcdef123",
		"servers": []interface{}{
			map[string]interface{}{
				"url":        "https://tools.example.com",
				"auth_token": "tok-xyz-999",
			},
		},
	}

	masked := MaskSecrets(input).(map[string]interface{})
	assert.Equal(t, "gpt-4o", masked["model"])
	assert.Equal(t, "s**********3", masked["api_key"])

	server := masked["servers"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "https://tools.example.com", server["url"])
	assert.Equal(t, "t*********9", server["auth_token"])

	// Input must not be mutated.
	assert.Equal(t, "sk-abcdef123", input["api_key"])
}
