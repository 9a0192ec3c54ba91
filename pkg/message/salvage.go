package message

import "encoding/json"

// Addressing is what the error path needs to reach the client.
type Addressing struct {
	ConnectionID string
	UserID       string
	SessionID    string
}

// SalvageRecord reads whatever addressing it can out of an SQS body. It never
// fails: fields that are missing, mistyped or unparsable come back empty.
func SalvageRecord(body string) Addressing {
	var out Addressing

	var outer map[string]any
	if json.Unmarshal([]byte(body), &outer) != nil {
		return out
	}
	inner, _ := outer["Message"].(string)

	var detail map[string]any
	if json.Unmarshal([]byte(inner), &detail) != nil {
		return out
	}
	out.ConnectionID = stringField(detail, "connectionId")
	out.UserID = stringField(detail, "userId")
	if data, ok := detail["data"].(map[string]any); ok {
		out.SessionID = stringField(data, "sessionId")
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
