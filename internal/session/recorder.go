package session

import (
	"context"
	"fmt"

	"github.com/checkmarxDev/chatbot-worker/pkg/connector"
	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

// StoreError reports a failed read or write of the conversation store.
type StoreError struct {
	Op  string
	Key message.Key
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s session %q: %v", e.Op, e.Key.SessionID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Recorder is the only writer of the conversation store.
type Recorder struct {
	store connector.Connector
}

func NewRecorder(store connector.Connector) *Recorder {
	return &Recorder{store: store}
}

// History returns the turns of a session without modifying it.
func (r *Recorder) History(ctx context.Context, key message.Key) ([]message.Turn, error) {
	turns, err := r.store.History(ctx, key)
	if err != nil {
		return nil, &StoreError{Op: "read", Key: key, Err: err}
	}
	return turns, nil
}

// Recorded returns the answer stored for requestID when that request was
// already recorded in the session.
func (r *Recorder) Recorded(ctx context.Context, requestID string, key message.Key) (string, bool, error) {
	if requestID == "" {
		return "", false, nil
	}
	answer, ok, err := r.store.Recorded(ctx, key, requestID)
	if err != nil {
		return "", false, &StoreError{Op: "read", Key: key, Err: err}
	}
	return answer, ok, nil
}

// Record writes the human turn, its metadata and the ai turn, in that order,
// as one append keyed by requestID.
func (r *Recorder) Record(ctx context.Context, requestID string, key message.Key, userText, assistantText string, metadata map[string]any) error {
	entries := []message.Entry{
		{Kind: message.EntryHuman, Content: userText},
		{Kind: message.EntryMetadata, Metadata: metadata},
		{Kind: message.EntryAI, Content: assistantText},
	}
	if err := r.store.Append(ctx, key, requestID, entries); err != nil {
		return &StoreError{Op: "append", Key: key, Err: err}
	}
	return nil
}
