package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/replychain/internal/domain"
	"maunium.net/go/mautrix/id"
)

const room id.RoomID = "!room:example.org"

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var evt Event
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifierFansOutToSubscribers(t *testing.T) {
	hub := startHub(t)
	notifier := NewHubNotifier(hub)

	alice := NewClient(hub, nil, "@alice:example.org")
	alice.Subscribe(room)
	require.True(t, hub.Register(alice))

	bob := NewClient(hub, nil, "@bob:example.org")
	require.True(t, hub.Register(bob))

	presence := receive(t, alice)
	assert.Equal(t, EventTypePresence, presence.Type)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(presence.Payload, &p))
	assert.Equal(t, PresencePayload{UserID: "@bob:example.org", Status: "online"}, p)

	parent := id.EventID("$parent")
	notifier.NotifyEditedEvent(&domain.EventView{EventID: "$a", RoomID: room, Body: "edited", ParentEventID: &parent})

	evt := receive(t, alice)
	assert.Equal(t, EventTypeEventEdited, evt.Type)
	assert.Equal(t, room, evt.RoomID)
	var view domain.EventView
	require.NoError(t, json.Unmarshal(evt.Payload, &view))
	assert.Equal(t, id.EventID("$a"), view.EventID)
	require.NotNil(t, view.ParentEventID)
	assert.Equal(t, parent, *view.ParentEventID)

	notifier.NotifyRedactedEvent(room, "$a")
	evt = receive(t, alice)
	assert.Equal(t, EventTypeEventRedacted, evt.Type)

	assertQuiet(t, bob)
}

func TestPresenceCountsSessions(t *testing.T) {
	hub := startHub(t)

	watcher := NewClient(hub, nil, "@watcher:example.org")
	require.True(t, hub.Register(watcher))

	phone := NewClient(hub, nil, "@alice:example.org")
	laptop := NewClient(hub, nil, "@alice:example.org")
	require.True(t, hub.Register(phone))
	assert.Equal(t, EventTypePresence, receive(t, watcher).Type)

	require.True(t, hub.Register(laptop))
	assertQuiet(t, watcher)

	hub.unregister <- phone
	assertQuiet(t, watcher)

	hub.unregister <- laptop
	evt := receive(t, watcher)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, "offline", p.Status)

	select {
	case <-laptop.done:
	default:
		t.Fatal("expected dropped client to be stopped")
	}
}

func TestClientHandleEvent(t *testing.T) {
	c := NewClient(NewHub(), nil, "@alice:example.org")

	payload, err := json.Marshal(RoomPayload{RoomID: room})
	require.NoError(t, err)

	c.handleEvent(&Event{Type: EventTypeRoomSubscribe, Payload: payload})
	assert.True(t, c.IsSubscribed(room))

	c.handleEvent(&Event{Type: EventTypeRoomUnsubscribe, Payload: payload})
	assert.False(t, c.IsSubscribed(room))

	c.handleEvent(&Event{Type: EventTypePing})
	assert.Equal(t, EventTypePong, receive(t, c).Type)

	c.handleEvent(&Event{Type: EventTypeRoomSubscribe, Payload: json.RawMessage(`{"room_id": "lobby"}`)})
	evt := receive(t, c)
	assert.Equal(t, EventTypeError, evt.Type)
	assert.False(t, c.IsSubscribed("lobby"))

	c.handleEvent(&Event{Type: "dance"})
	evt = receive(t, c)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &e))
	assert.Equal(t, "UNKNOWN_EVENT", e.Code)
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	client := NewClient(hub, nil, "@alice:example.org")
	require.True(t, hub.Register(client))

	cancel()
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case <-client.done:
	default:
		t.Fatal("expected client to be dropped on shutdown")
	}

	assert.False(t, hub.Register(NewClient(hub, nil, "@bob:example.org")))

	evt, err := NewEvent(EventTypeEventRedacted, room, EventRedactedPayload{EventID: "$a"})
	require.NoError(t, err)
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.BroadcastToRoom(room, evt, "")
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked after shutdown")
	}
}
