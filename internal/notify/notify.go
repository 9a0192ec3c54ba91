package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

// Publisher delivers an event towards the client connection. Callers do not
// wait for the client to acknowledge it.
type Publisher interface {
	Publish(ctx context.Context, event message.OutboundEvent) error
}

// PublishError reports an event that could not be handed to the channel.
type PublishError struct {
	ConnectionID string
	Action       message.EventAction
	Err          error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s to connection %q: %v", e.Action, e.ConnectionID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func NewFinalResponse(connectionID, userID, sessionID, content string, now time.Time) message.OutboundEvent {
	return newEvent(message.ActionFinalResponse, connectionID, userID, sessionID, content, now)
}

func NewError(connectionID, userID, sessionID, content string, now time.Time) message.OutboundEvent {
	return newEvent(message.ActionError, connectionID, userID, sessionID, content, now)
}

func newEvent(action message.EventAction, connectionID, userID, sessionID, content string, now time.Time) message.OutboundEvent {
	return message.OutboundEvent{
		Type:         message.EventTypeText,
		Action:       action,
		Direction:    message.DirectionOutward,
		ConnectionID: connectionID,
		UserID:       userID,
		Timestamp:    now.Unix(),
		Data: message.EventData{
			SessionID: sessionID,
			Type:      message.EventTypeText,
			Content:   content,
		},
	}
}
