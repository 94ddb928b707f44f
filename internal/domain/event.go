package domain

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// EventTypeMessage is the only event type this service stores.
var EventTypeMessage = event.EventMessage.Type

type Event struct {
	ID         id.EventID `json:"event_id"`
	RoomID     id.RoomID  `json:"room_id"`
	Sender     id.UserID  `json:"sender"`
	Type       string     `json:"type"`
	Content    Content    `json:"content"`
	OriginTS   int64      `json:"origin_server_ts"`
	RedactedAt *time.Time `json:"redacted_at,omitempty"`

	// Replacement is the latest edit superseding this event. Filled in by the
	// service layer, never persisted.
	Replacement *Event `json:"-"`
}

// NewEventID returns an opaque "$"-prefixed event id.
func NewEventID() id.EventID {
	u := uuid.New()
	return id.EventID("$" + base64.RawURLEncoding.EncodeToString(u[:]))
}

func (e *Event) IsRedacted() bool {
	return e.RedactedAt != nil
}

// MakeReplaced records edit as the current replacement of e. A nil edit
// removes the link.
func (e *Event) MakeReplaced(edit *Event) {
	e.Replacement = edit
}

// ReplacesID returns the id of the event e edits, if e is an edit.
func (e *Event) ReplacesID() (id.EventID, bool) {
	return e.Content.RelatesTo.Replaces()
}

// activeEdit is the replacement that takes effect: unredacted and carrying
// new content.
func (e *Event) activeEdit() *Event {
	if edit := e.Replacement; edit != nil && !edit.IsRedacted() && edit.Content.NewContent != nil {
		return edit
	}
	return nil
}

// DisplayContent is what a client shows for e: the latest edit's new content
// when there is one, otherwise e's own content.
func (e *Event) DisplayContent() Content {
	if edit := e.activeEdit(); edit != nil {
		return *edit.Content.NewContent
	}
	return e.Content
}
