package ws

import (
	log "github.com/sirupsen/logrus"
	"github.com/vedran77/replychain/internal/domain"
	"maunium.net/go/mautrix/id"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewEvent(view *domain.EventView) {
	n.broadcastView(EventTypeEventNew, view)
}

func (n *HubNotifier) NotifyEditedEvent(view *domain.EventView) {
	n.broadcastView(EventTypeEventEdited, view)
}

func (n *HubNotifier) NotifyRedactedEvent(roomID id.RoomID, eventID id.EventID) {
	evt, err := NewEvent(EventTypeEventRedacted, roomID, EventRedactedPayload{EventID: eventID})
	if err != nil {
		log.WithError(err).Error("ws notifier: marshal")
		return
	}
	n.hub.BroadcastToRoom(roomID, evt, "")
}

func (n *HubNotifier) broadcastView(eventType string, view *domain.EventView) {
	evt, err := NewEvent(eventType, view.RoomID, EventPayload{EventView: *view})
	if err != nil {
		log.WithError(err).Error("ws notifier: marshal")
		return
	}
	n.hub.BroadcastToRoom(view.RoomID, evt, "")
}
