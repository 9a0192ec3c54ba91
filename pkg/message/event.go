package message

type EventAction string

const (
	ActionFinalResponse EventAction = "final_response"
	ActionError         EventAction = "error"
)

const (
	EventTypeText    = "text"
	DirectionOutward = "OUT"
)

type EventData struct {
	SessionID string `json:"sessionId"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

// OutboundEvent is the notification delivered to the client connection.
// Timestamp is unix seconds at publish time.
type OutboundEvent struct {
	Type         string      `json:"type"`
	Action       EventAction `json:"action"`
	Direction    string      `json:"direction"`
	ConnectionID string      `json:"connectionId"`
	UserID       string      `json:"userId"`
	Timestamp    int64       `json:"timestamp"`
	Data         EventData   `json:"data"`
}
