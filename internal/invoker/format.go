package invoker

import (
	"encoding/json"
	"strings"
)

// ResponseFormat extracts the generated continuation from an endpoint body.
// Which one applies is a property of the provider.
type ResponseFormat interface {
	Extract(prompt string, body []byte) (string, error)
}

type generated struct {
	GeneratedText *string `json:"generated_text"`
}

// EchoedPrompt is for endpoints answering [{"generated_text"}] with the prompt
// repeated in front of the continuation.
type EchoedPrompt struct{}

func (EchoedPrompt) Extract(prompt string, body []byte) (string, error) {
	var out []generated
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &malformedError{msg: "expected a list of generations", err: err}
	}
	if len(out) == 0 || out[0].GeneratedText == nil {
		return "", &malformedError{msg: "no generated_text"}
	}
	text := *out[0].GeneratedText
	if !strings.HasPrefix(text, prompt) {
		return "", &malformedError{msg: "generation does not echo the prompt"}
	}
	return strings.TrimSpace(text[len(prompt):]), nil
}

// ContinuationOnly is for endpoints that answer with the continuation alone,
// either as [{"generated_text"}] or {"generated_text"}. The text is returned
// as sent.
type ContinuationOnly struct{}

func (ContinuationOnly) Extract(_ string, body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var out []generated
		if err := json.Unmarshal(body, &out); err != nil {
			return "", &malformedError{msg: "expected a list of generations", err: err}
		}
		if len(out) == 0 || out[0].GeneratedText == nil {
			return "", &malformedError{msg: "no generated_text"}
		}
		return *out[0].GeneratedText, nil
	}
	var out generated
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &malformedError{msg: "expected a generation object", err: err}
	}
	if out.GeneratedText == nil {
		return "", &malformedError{msg: "no generated_text"}
	}
	return *out.GeneratedText, nil
}
