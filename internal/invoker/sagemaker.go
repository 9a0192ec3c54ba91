package invoker

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

type SageMakerAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// SageMaker calls a Hugging Face inference endpoint with {inputs, parameters}.
type SageMaker struct {
	client SageMakerAPI
	format ResponseFormat
}

// NewSageMaker defaults to EchoedPrompt, the behaviour of the raw text
// generation containers.
func NewSageMaker(client SageMakerAPI, format ResponseFormat) *SageMaker {
	if format == nil {
		format = EchoedPrompt{}
	}
	return &SageMaker{client: client, format: format}
}

type sageMakerRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters"`
}

func (s *SageMaker) Call(ctx context.Context, endpoint, prompt string, params map[string]any) (string, error) {
	body, err := json.Marshal(sageMakerRequest{Inputs: prompt, Parameters: params})
	if err != nil {
		return "", err
	}
	out, err := s.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpoint),
		ContentType:  aws.String("application/json"),
		Accept:       aws.String("application/json"),
		Body:         body,
	})
	if err != nil {
		return "", err
	}
	return s.format.Extract(prompt, out.Body)
}
