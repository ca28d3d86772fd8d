package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recipeforge/reciperunner/utils/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaTestServer(t *testing.T, chunks []string, tagsBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			var req ollamaRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			for i, c := range chunks {
				done := i == len(chunks)-1
				json.NewEncoder(w).Encode(ollamaResponse{Response: c, Done: done})
			}
		case "/api/tags":
			w.Write([]byte(tagsBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOllamaGenerateTextAccumulatesStreamedChunks(t *testing.T) {
	srv := newOllamaTestServer(t, []string{"hello ", "world"}, "")
	defer srv.Close()

	p := &OllamaProvider{baseURL: srv.URL, client: *srv.Client()}
	result, err := p.Generate(context.Background(), steps.GenerateRequest{
		Prompt: "say hi",
		Model:  "llama3",
		Output: steps.OutputSpec{Kind: steps.OutputText},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
}

func TestOllamaGenerateSchemaObjectSetsJSONFormat(t *testing.T) {
	var seenFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seenFormat = req.Format
		json.NewEncoder(w).Encode(ollamaResponse{Response: `{"answer":"42"}`, Done: true})
	}))
	defer srv.Close()

	p := &OllamaProvider{baseURL: srv.URL, client: *srv.Client()}
	result, err := p.Generate(context.Background(), steps.GenerateRequest{
		Prompt: "what is the answer",
		Model:  "llama3",
		Output: steps.OutputSpec{Kind: steps.OutputSchemaObject, Schema: map[string]interface{}{"type": "object"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "json", seenFormat)
	assert.Equal(t, "42", result.Structured.(map[string]interface{})["answer"])
}

func TestModelAvailableLocally(t *testing.T) {
	srv := newOllamaTestServer(t, nil, `{"models":[{"name":"llama3:latest"}]}`)
	defer srv.Close()

	p := &OllamaProvider{baseURL: srv.URL, client: *srv.Client()}
	ok, err := p.ModelAvailableLocally(context.Background(), "llama3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.ModelAvailableLocally(context.Background(), "mistral")
	require.NoError(t, err)
	assert.False(t, ok)
}
