package wrapper

import (
	"context"
	"errors"
	"sync"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

type fakeInvoker struct {
	mu       sync.Mutex
	prompts  []string
	provider string
	endpoint string
	knobs    map[string]any
	response string
	err      error
}

func (f *fakeInvoker) Invoke(_ context.Context, provider, endpoint, prompt string, knobs map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.provider, f.endpoint, f.knobs = provider, endpoint, knobs
	return f.response, f.err
}

type fakeSigner struct{}

func (fakeSigner) SignedURL(_ context.Context, key string) (string, error) {
	if key == "forbidden" {
		return "", errors.New("access denied")
	}
	return "https://files.example/" + key + "?X-Amz-Signature=abc", nil
}

type recorded struct {
	requestID string
	key       message.Key
	user, ai  string
	metadata  map[string]any
}

type fakeRecorder struct {
	mu        sync.Mutex
	answers   map[string]string
	lookupErr error
	history   []message.Turn
	readErr   error
	writeErr  error
	records   []recorded
	historyAt []message.Key
}

func (f *fakeRecorder) Recorded(_ context.Context, requestID string, _ message.Key) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return "", false, f.lookupErr
	}
	answer, ok := f.answers[requestID]
	return answer, ok, nil
}

func (f *fakeRecorder) History(_ context.Context, key message.Key) ([]message.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyAt = append(f.historyAt, key)
	return f.history, f.readErr
}

func (f *fakeRecorder) Record(_ context.Context, requestID string, key message.Key, user, ai string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.records = append(f.records, recorded{requestID: requestID, key: key, user: user, ai: ai, metadata: metadata})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []message.OutboundEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event message.OutboundEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func runRequest() message.RequestEnvelope {
	return message.RequestEnvelope{
		Action:       message.ActionRun,
		ActionName:   "run",
		ConnectionID: "conn",
		UserID:       "user",
		Data: message.RequestData{
			Provider:    "sagemaker",
			ModelName:   "idefics-80b",
			Mode:        "chain",
			ModelKwargs: map[string]any{"temperature": 0.3},
			Text:        "describe it",
			SessionID:   "sess",
			Attachments: []message.AttachmentRef{{Key: "img/1.png"}},
		},
	}
}
