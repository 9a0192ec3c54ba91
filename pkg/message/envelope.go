package message

import (
	"encoding/json"
	"fmt"
)

// Action is the closed set of request actions. Anything the worker does not
// know is kept as ActionUnknown and ignored.
type Action int

const (
	ActionUnknown Action = iota
	ActionRun
)

const actionRunName = "run"

func ParseAction(name string) Action {
	if name == actionRunName {
		return ActionRun
	}
	return ActionUnknown
}

func (a Action) String() string {
	if a == ActionRun {
		return actionRunName
	}
	return "unknown"
}

type AttachmentRef struct {
	Key string `json:"key"`
}

type RequestData struct {
	Provider    string          `json:"provider"`
	ModelName   string          `json:"modelName"`
	Mode        string          `json:"mode"`
	ModelKwargs map[string]any  `json:"modelKwargs,omitempty"`
	Text        string          `json:"text"`
	SessionID   string          `json:"sessionId,omitempty"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

type RequestEnvelope struct {
	Action       Action
	ActionName   string
	ConnectionID string
	UserID       string
	Data         RequestData
}

// Key returns the conversation scope of the request.
func (e RequestEnvelope) Key() Key {
	return Key{SessionID: e.Data.SessionID, UserID: e.UserID}
}

type rawEnvelope struct {
	Action       string          `json:"action"`
	ConnectionID string          `json:"connectionId"`
	UserID       string          `json:"userId"`
	Data         json.RawMessage `json:"data"`
}

// notification is the SNS wrapper carried in an SQS body.
type notification struct {
	Message *string `json:"Message"`
}

// DecodeError reports a record whose envelope or payload could not be read.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode request: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode request: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeRecord strictly decodes an SQS body into a request envelope.
func DecodeRecord(body string) (RequestEnvelope, error) {
	var n notification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return RequestEnvelope{}, &DecodeError{Reason: "body is not a notification", Err: err}
	}
	if n.Message == nil {
		return RequestEnvelope{}, &DecodeError{Reason: "notification has no Message"}
	}

	var raw rawEnvelope
	if err := json.Unmarshal([]byte(*n.Message), &raw); err != nil {
		return RequestEnvelope{}, &DecodeError{Reason: "message is not a request", Err: err}
	}
	if raw.Action == "" {
		return RequestEnvelope{}, &DecodeError{Reason: "missing action"}
	}

	env := RequestEnvelope{
		Action:       ParseAction(raw.Action),
		ActionName:   raw.Action,
		ConnectionID: raw.ConnectionID,
		UserID:       raw.UserID,
	}
	if env.Action != ActionRun {
		return env, nil
	}

	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return RequestEnvelope{}, &DecodeError{Reason: "missing data"}
	}
	if err := json.Unmarshal(raw.Data, &env.Data); err != nil {
		return RequestEnvelope{}, &DecodeError{Reason: "malformed data", Err: err}
	}
	if err := validateRun(env); err != nil {
		return RequestEnvelope{}, err
	}
	return env, nil
}

func validateRun(env RequestEnvelope) error {
	missing := func(field string) error {
		return &DecodeError{Reason: "missing " + field}
	}
	switch {
	case env.ConnectionID == "":
		return missing("connectionId")
	case env.UserID == "":
		return missing("userId")
	case env.Data.Provider == "":
		return missing("data.provider")
	case env.Data.ModelName == "":
		return missing("data.modelName")
	case env.Data.Text == "":
		return missing("data.text")
	}
	for i, a := range env.Data.Attachments {
		if a.Key == "" {
			return &DecodeError{Reason: fmt.Sprintf("attachment %d has no key", i)}
		}
	}
	return nil
}
