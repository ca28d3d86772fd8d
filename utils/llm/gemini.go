package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/recipeforge/reciperunner/utils/fsspec"
	"github.com/recipeforge/reciperunner/utils/rconfig"
	"github.com/recipeforge/reciperunner/utils/steps"
)

// GeminiProvider talks to Google's Gemini family via generative-ai-go.
type GeminiProvider struct {
	apiKey string
}

// NewGeminiProvider builds a provider reading its API key from apiKey.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, req steps.GenerateRequest) (steps.GenerateResult, error) {
	if p.apiKey == "" {
		return steps.GenerateResult{}, fmt.Errorf("gemini provider not configured: missing API key")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return steps.GenerateResult{}, fmt.Errorf("creating gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	prompt := req.Prompt
	switch req.Output.Kind {
	case steps.OutputSchemaObject, steps.OutputSchemaArray:
		model.ResponseMIMEType = "application/json"
		prompt = prompt + "\n\nRespond with JSON matching this schema:\n" + mustMarshal(req.Output.Schema)
	case steps.OutputFiles:
		prompt = prompt + "\n\nRespond with a JSON array of objects, each {\"path\": ..., \"content\": ...}."
	}

	rconfig.DebugLog("[gemini] generating with model %s (output=%s)", req.Model, req.Output.Kind)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return steps.GenerateResult{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return steps.GenerateResult{}, fmt.Errorf("gemini returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	return decodeTextResult(req.Output, text)
}

func mustMarshal(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decodeTextResult turns a provider's raw text response into a
// steps.GenerateResult matching the requested output kind. Every provider
// in this package (openai, gemini, bedrock, ollama) ends with it, since
// each asks for structured output as JSON text in the reply.
func decodeTextResult(output steps.OutputSpec, text string) (steps.GenerateResult, error) {
	switch output.Kind {
	case steps.OutputText:
		return steps.GenerateResult{Text: text}, nil
	case steps.OutputSchemaObject, steps.OutputSchemaArray:
		var structured map[string]interface{}
		if err := json.Unmarshal([]byte(extractJSON(text)), &structured); err != nil {
			return steps.GenerateResult{}, fmt.Errorf("decoding structured response: %w", err)
		}
		return steps.GenerateResult{Structured: structured}, nil
	case steps.OutputFiles:
		var raw []struct {
			Path    string      `json:"path"`
			Content interface{} `json:"content"`
		}
		if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
			return steps.GenerateResult{}, fmt.Errorf("decoding files response: %w", err)
		}
		files := make([]fsspec.FileSpec, len(raw))
		for i, f := range raw {
			files[i] = fsspec.FileSpec{Path: f.Path, Content: f.Content}
		}
		return steps.GenerateResult{Files: files}, nil
	default:
		return steps.GenerateResult{}, fmt.Errorf("unhandled output kind %q", output.Kind)
	}
}

// extractJSON trims a model's response down to its first balanced JSON
// value, tolerating surrounding prose or markdown code fences.
func extractJSON(text string) string {
	start := -1
	for i, r := range text {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return text
	}
	end := -1
	for i := len(text) - 1; i >= start; i-- {
		if text[i] == '}' || text[i] == ']' {
			end = i
			break
		}
	}
	if end < start {
		return text
	}
	return text[start : end+1]
}
