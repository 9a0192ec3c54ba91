package connector

import (
	"context"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

// Connector is the conversation store.
//
// Append writes all entries of one request atomically and at most once per
// requestID within a session: repeating a request id that was already
// written is a no-op. Recorded reports whether requestID was written and
// returns the ai content written with it.
type Connector interface {
	History(ctx context.Context, key message.Key) ([]message.Turn, error)
	Append(ctx context.Context, key message.Key, requestID string, entries []message.Entry) error
	Recorded(ctx context.Context, key message.Key, requestID string) (string, bool, error)
}

// answerOf is the content of the last ai entry.
func answerOf(entries []message.Entry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == message.EntryAI {
			return entries[i].Content
		}
	}
	return ""
}

// foldEntries turns ordered entries into turns, attaching every metadata entry
// to the turn written before it.
func foldEntries(entries []message.Entry) []message.Turn {
	turns := make([]message.Turn, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case message.EntryHuman, message.EntryAI:
			turns = append(turns, message.Turn{Role: string(e.Kind), Content: e.Content, Metadata: e.Metadata})
		case message.EntryMetadata:
			if len(turns) == 0 {
				continue
			}
			last := &turns[len(turns)-1]
			if last.Metadata == nil {
				last.Metadata = map[string]any{}
			}
			for k, v := range e.Metadata {
				last.Metadata[k] = v
			}
		}
	}
	return turns
}
