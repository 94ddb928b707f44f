package ws

import (
	"encoding/json"
	"time"

	"github.com/vedran77/replychain/internal/domain"
	"maunium.net/go/mautrix/id"
)

// Event types - Client → Server
const (
	EventTypeRoomSubscribe   = "room.subscribe"
	EventTypeRoomUnsubscribe = "room.unsubscribe"
	EventTypePing            = "ping"
)

// Event types - Server → Client
const (
	EventTypeEventNew      = "event.new"
	EventTypeEventEdited   = "event.edited"
	EventTypeEventRedacted = "event.redacted"
	EventTypePresence      = "presence"
	EventTypePong          = "pong"
	EventTypeError         = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	RoomID    id.RoomID       `json:"room_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type RoomPayload struct {
	RoomID id.RoomID `json:"room_id"`
}

// --- Server → Client payloads ---

type EventPayload struct {
	domain.EventView
}

type EventRedactedPayload struct {
	EventID id.EventID `json:"event_id"`
}

type PresencePayload struct {
	UserID id.UserID `json:"user_id"`
	Status string    `json:"status"` // "online" | "offline"
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, roomID id.RoomID, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
