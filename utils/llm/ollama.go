package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/recipeforge/reciperunner/utils/rconfig"
	"github.com/recipeforge/reciperunner/utils/steps"
)

// OllamaProvider talks to a local Ollama daemon's /api/generate endpoint
// with a friendly "is Ollama running?" hint on connection failure. The
// request sets stream=false; the response is still read as NDJSON and
// every chunk's text is accumulated until one reports done.
type OllamaProvider struct {
	baseURL string
	client  http.Client
}

// ollamaRequest mirrors Ollama's /api/generate request body.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

// ollamaResponse is one line of Ollama's streamed NDJSON response.
type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaProvider returns a provider talking to the local Ollama
// daemon at the default address (http://localhost:11434).
func NewOllamaProvider() *OllamaProvider {
	return &OllamaProvider{
		baseURL: "http://localhost:11434",
		client:  http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Generate(ctx context.Context, req steps.GenerateRequest) (steps.GenerateResult, error) {
	prompt := req.Prompt
	reqBody := ollamaRequest{Model: req.Model, Prompt: prompt, Stream: false}

	switch req.Output.Kind {
	case steps.OutputSchemaObject, steps.OutputSchemaArray:
		reqBody.Format = "json"
		reqBody.Prompt = prompt + "\n\nRespond with only JSON matching this schema:\n" + mustMarshal(req.Output.Schema)
	case steps.OutputFiles:
		reqBody.Prompt = prompt + "\n\nRespond with only a JSON array of objects, each {\"path\": ..., \"content\": ...}."
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return steps.GenerateResult{}, fmt.Errorf("marshaling ollama request: %w", err)
	}

	rconfig.DebugLog("[ollama] generating with model %s (output=%s)", req.Model, req.Output.Kind)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return steps.GenerateResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return steps.GenerateResult{}, fmt.Errorf("calling ollama api: %w (is Ollama running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return steps.GenerateResult{}, fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, body)
	}

	var text strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaResponse
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return steps.GenerateResult{}, fmt.Errorf("decoding ollama response: %w", err)
		}
		text.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}

	return decodeTextResult(req.Output, text.String())
}

// ModelAvailableLocally reports whether Ollama has name pulled, via a
// direct /api/tags query before sending a prompt.
func (p *OllamaProvider) ModelAvailableLocally(ctx context.Context, name string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("calling ollama api: %w (is Ollama running?)", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama api error (status %d)", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("decoding ollama tags response: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == name || strings.TrimSuffix(m.Name, ":latest") == name {
			return true, nil
		}
	}
	return false, nil
}
