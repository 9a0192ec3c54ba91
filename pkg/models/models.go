package models

// Providers route a run request to a model transport. Idefics is the name
// older clients send for the SageMaker-hosted multimodal endpoint.
const (
	SageMaker   = "sagemaker"
	Idefics     = "idefics"
	Bedrock     = "bedrock"
	AzureOpenAI = "azure"
)
