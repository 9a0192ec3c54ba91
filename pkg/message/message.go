package message

// Turn is one message of a session history, in conversational order.
type Turn struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type EntryKind string

const (
	EntryHuman    EntryKind = "human"
	EntryMetadata EntryKind = "metadata"
	EntryAI       EntryKind = "ai"
)

// Entry is a single unit of a session write. A metadata entry describes the
// human entry written right before it.
type Entry struct {
	Kind     EntryKind
	Content  string
	Metadata map[string]any
}

// Key scopes a conversation in the store.
type Key struct {
	SessionID string
	UserID    string
}
