package ws

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"maunium.net/go/mautrix/id"
)

// Hub manages all active WebSocket clients and routes messages. A user may
// hold several connections, one per device.
type Hub struct {
	clients map[*Client]struct{}
	// sessions counts open connections per user for presence.
	sessions map[id.UserID]int

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	// done is closed when Run returns.
	done chan struct{}
}

type broadcastMsg struct {
	roomID  id.RoomID
	data    []byte
	exclude id.UserID // optional: skip this user (e.g. sender)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		sessions:   make(map[id.UserID]int),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's main event loop and returns when ctx is done. Call
// this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			close(h.done)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.sessions[client.userID]++
			log.WithField("user", client.userID).Infof("ws hub: connected (%d total)", len(h.clients))

			if h.sessions[client.userID] == 1 {
				h.broadcastPresence(client.userID, "online")
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.WithField("user", client.userID).Infof("ws hub: disconnected (%d total)", len(h.clients))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if msg.exclude != "" && client.userID == msg.exclude {
					continue
				}
				// Only send to clients subscribed to this room
				if !client.IsSubscribed(msg.roomID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full - disconnect
					h.drop(client)
				}
			}
		}
	}
}

// Register hands client to the hub. It reports false once the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// BroadcastToRoom sends an event to all subscribers of a room. It is a no-op
// after the hub has stopped.
func (h *Hub) BroadcastToRoom(roomID id.RoomID, event *Event, excludeUserID id.UserID) {
	data, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("ws hub: marshal")
		return
	}
	msg := &broadcastMsg{
		roomID:  roomID,
		data:    data,
		exclude: excludeUserID,
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// drop removes client and stops its pumps. send stays open because the read
// pump may still be queueing replies on it.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.done)

	h.sessions[client.userID]--
	if h.sessions[client.userID] <= 0 {
		delete(h.sessions, client.userID)
		h.broadcastPresence(client.userID, "offline")
	}
}

// broadcastPresence sends online/offline to all other connected users.
func (h *Hub) broadcastPresence(userID id.UserID, status string) {
	evt, err := NewEvent(EventTypePresence, "", PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for client := range h.clients {
		if client.userID == userID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}
