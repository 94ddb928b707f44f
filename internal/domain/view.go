package domain

import (
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// EventView is an event as served to clients: the original merged with its
// latest edit, plus the resolved reply parent.
type EventView struct {
	EventID       id.EventID        `json:"event_id"`
	RoomID        id.RoomID         `json:"room_id"`
	Sender        id.UserID         `json:"sender"`
	Type          string            `json:"type"`
	OriginTS      int64             `json:"origin_server_ts"`
	MsgType       event.MessageType `json:"msgtype,omitempty"`
	Body          string            `json:"body"`
	ParentEventID *id.EventID       `json:"parent_event_id"`
	EditEventID   id.EventID        `json:"edit_event_id,omitempty"`
	EditedTS      int64             `json:"edited_ts,omitempty"`
	Redacted      bool              `json:"redacted,omitempty"`
}

func NewEventView(ev *Event) EventView {
	view := EventView{
		EventID:  ev.ID,
		RoomID:   ev.RoomID,
		Sender:   ev.Sender,
		Type:     ev.Type,
		OriginTS: ev.OriginTS,
		Redacted: ev.IsRedacted(),
	}
	if view.Redacted {
		return view
	}

	display := ev.DisplayContent()
	view.MsgType = display.MsgType
	view.Body = display.Body
	if edit := ev.activeEdit(); edit != nil {
		view.EditEventID = edit.ID
		view.EditedTS = edit.OriginTS
	} else if _, ok := ev.Content.RelatesTo.ReplyTarget(); ok {
		// the original body carries the quoted fallback
		view.Body = PlainBody(display)
	}

	if parent, ok := ParentEventID(ev); ok {
		view.ParentEventID = &parent
	}
	return view
}
