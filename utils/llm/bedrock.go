package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/recipeforge/reciperunner/utils/rconfig"
	"github.com/recipeforge/reciperunner/utils/steps"
)

// BedrockProvider routes Anthropic-family models through AWS Bedrock's
// InvokeModel API, using the AWS SDK's bedrockruntime client over the
// Anthropic Messages wire shape.
type BedrockProvider struct {
	region string
	client *bedrockruntime.Client
}

// NewBedrockProvider loads AWS config for region (empty uses the SDK's
// default resolution chain) and constructs the bedrockruntime client.
func NewBedrockProvider(ctx context.Context, region string) (*BedrockProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &BedrockProvider{region: region, client: bedrockruntime.NewFromConfig(cfg)}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string            `json:"anthropic_version"`
	MaxTokens        int               `json:"max_tokens"`
	Messages         []bedrockMessage  `json:"messages"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockResponse struct {
	Content []bedrockContentBlock `json:"content"`
}

func (p *BedrockProvider) Generate(ctx context.Context, req steps.GenerateRequest) (steps.GenerateResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	prompt := req.Prompt
	switch req.Output.Kind {
	case steps.OutputSchemaObject, steps.OutputSchemaArray:
		prompt = prompt + "\n\nRespond with only JSON matching this schema:\n" + mustMarshal(req.Output.Schema)
	case steps.OutputFiles:
		prompt = prompt + "\n\nRespond with only a JSON array of objects, each {\"path\": ..., \"content\": ...}."
	}

	body := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return steps.GenerateResult{}, fmt.Errorf("marshaling bedrock request: %w", err)
	}

	modelID := req.Model
	if req.Deployment != "" {
		modelID = req.Deployment
	}

	rconfig.DebugLog("[bedrock] invoking model %s (output=%s)", modelID, req.Output.Kind)

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return steps.GenerateResult{}, fmt.Errorf("bedrock invoke model: %w", err)
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return steps.GenerateResult{}, fmt.Errorf("decoding bedrock response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return decodeTextResult(req.Output, text)
}
