package invoker

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock calls an imported model with {prompt, parameters}. The endpoint is
// the model id or ARN.
type Bedrock struct {
	client BedrockAPI
	format ResponseFormat
}

func NewBedrock(client BedrockAPI, format ResponseFormat) *Bedrock {
	if format == nil {
		format = ContinuationOnly{}
	}
	return &Bedrock{client: client, format: format}
}

type bedrockRequest struct {
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters"`
}

func (b *Bedrock) Call(ctx context.Context, endpoint, prompt string, params map[string]any) (string, error) {
	body, err := json.Marshal(bedrockRequest{Prompt: prompt, Parameters: params})
	if err != nil {
		return "", err
	}
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(endpoint),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", err
	}
	return b.format.Extract(prompt, out.Body)
}
