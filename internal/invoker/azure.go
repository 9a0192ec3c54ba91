package invoker

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
)

type CompletionsAPI interface {
	GetCompletions(ctx context.Context, body azopenai.CompletionsOptions, options *azopenai.GetCompletionsOptions) (azopenai.GetCompletionsResponse, error)
}

// AzureOpenAI sends the prompt to a completions deployment. The service only
// returns the continuation, so nothing is stripped.
type AzureOpenAI struct {
	client CompletionsAPI
}

func NewAzureOpenAIClient(endpoint, apiKey string) (*azopenai.Client, error) {
	return azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
}

func NewAzureOpenAI(client CompletionsAPI) *AzureOpenAI {
	return &AzureOpenAI{client: client}
}

func (a *AzureOpenAI) Call(ctx context.Context, endpoint, prompt string, params map[string]any) (string, error) {
	opts := azopenai.CompletionsOptions{
		Prompt:         []string{prompt},
		DeploymentName: to.Ptr(endpoint),
	}
	if v, ok := params[ParamTemperature]; ok {
		f, err := toFloat(v)
		if err != nil {
			return "", err
		}
		opts.Temperature = to.Ptr(float32(f))
	}
	if v, ok := params[ParamTopP]; ok {
		f, err := toFloat(v)
		if err != nil {
			return "", err
		}
		opts.TopP = to.Ptr(float32(f))
	}
	if v, ok := params[ParamMaxNewTokens]; ok {
		f, err := toFloat(v)
		if err != nil {
			return "", err
		}
		opts.MaxTokens = to.Ptr(int32(f))
	}

	resp, err := a.client.GetCompletions(ctx, opts, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Text == nil {
		return "", &malformedError{msg: "no completion choices"}
	}
	return *resp.Choices[0].Text, nil
}
