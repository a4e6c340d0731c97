package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/wardline/wardline/internal/users"
)

// Socket event names. Inbound events arrive from clients; outbound events
// are emitted by the server.
const (
	// inbound
	EventMessage = "message"
	EventTyping  = "typing"
	EventRead    = "read"

	// outbound
	EventDisplay      = "display"
	EventEdited       = "editedMessage"
	EventReceiptAdded = "readReceiptAdded"
	EventSendError    = "send_error"
	EventFile         = "file"
)

// Event is a single socket frame: an event name plus a JSON payload.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an Event with the payload marshalled to JSON.
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Event{Event: name, Data: data}, nil
}

// TypingPayload is the inbound typing indicator.
type TypingPayload struct {
	Typing bool `json:"typing"`
}

// MessagePayload is the inbound send payload.
type MessagePayload struct {
	Content string `json:"content"`
}

// ReadPayload is the inbound read receipt signal.
type ReadPayload struct {
	MessageID string `json:"messageId"`
}

// DisplayPayload is the outbound typing relay.
type DisplayPayload struct {
	Typing bool          `json:"typing"`
	User   users.Summary `json:"user"`
}

// EditedPayload is the outbound message-edit notification.
type EditedPayload struct {
	MessageID string        `json:"messageId"`
	ChannelID string        `json:"channelId"`
	Content   string        `json:"content"`
	User      users.Summary `json:"user"`
}

// ReceiptAddedPayload is the outbound read-receipt notification.
type ReceiptAddedPayload struct {
	MessageID string        `json:"messageId"`
	Reader    users.Summary `json:"reader"`
	Timestamp string        `json:"timestamp"`
}

// SendErrorPayload is the outbound delivery-failure signal to the sender.
type SendErrorPayload struct {
	Reason string `json:"reason"`
}

// decodeMessagePayload accepts both `{"content":"hi"}` and a bare JSON
// string `"hi"` as the send payload.
func decodeMessagePayload(data json.RawMessage) (string, error) {
	var payload MessagePayload
	if err := json.Unmarshal(data, &payload); err == nil && payload.Content != "" {
		return payload.Content, nil
	}
	var content string
	if err := json.Unmarshal(data, &content); err == nil {
		return content, nil
	}
	return "", fmt.Errorf("invalid message payload")
}
