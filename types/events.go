package types

import (
	"encoding/json"
	"time"

	"github.com/staynest/staynest-backend/errors"
)

// EventType identifies a push event on the live channel. The set is closed:
// every event carries a strongly typed payload matching its type.
type EventType string

const (
	CategoryNotification = "NOTIFICATION"
	CategoryMessage      = "MESSAGE"
)

const (
	EventTypeNotificationCreated EventType = CategoryNotification + "_CREATED"
	EventTypeNotificationRead    EventType = CategoryNotification + "_READ"
	EventTypeMessageCreated      EventType = CategoryMessage + "_CREATED"
	EventTypeMessageRead         EventType = CategoryMessage + "_READ"
)

// Client-facing method names on the live channel. These match the wire
// protocol the web client subscribes to.
const (
	PushReceiveNotification = "ReceiveNotification"
	PushNotificationRead    = "NotificationRead"
	PushReceiveMessage      = "ReceiveMessage"
	PushMessageRead         = "MessageRead"
)

// ClientMethod returns the client-facing method name for the event type.
func (t EventType) ClientMethod() string {
	switch t {
	case EventTypeNotificationCreated:
		return PushReceiveNotification
	case EventTypeNotificationRead:
		return PushNotificationRead
	case EventTypeMessageCreated:
		return PushReceiveMessage
	case EventTypeMessageRead:
		return PushMessageRead
	}
	return string(t)
}

// Event is a single push delivered to all live connections of RecipientID.
type Event struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	RecipientID string          `json:"recipientId"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// Validate checks the event carries everything delivery needs.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.ValidationFailed("invalid event", "event ID is required")
	}
	if e.Type == "" {
		return errors.ValidationFailed("invalid event", "event type is required")
	}
	if e.RecipientID == "" {
		return errors.ValidationFailed("invalid event", "recipient ID is required")
	}
	if e.Timestamp.IsZero() {
		return errors.ValidationFailed("invalid event", "timestamp is required")
	}
	return nil
}

// ReadReceiptPayload is carried by NOTIFICATION_READ and MESSAGE_READ events
// to reconcile read-state across a user's other open sessions.
type ReadReceiptPayload struct {
	RecordID int64  `json:"recordId"`
	ReaderID string `json:"readerId"`
	All      bool   `json:"all,omitempty"`
}
