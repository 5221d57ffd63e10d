package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test clients have no underlying connection; broadcasts land in the Send
// buffer where tests can inspect them.
func newTestClient(userID, role string) *Client {
	return NewClient(userID, role, userID, nil)
}

func receivedTypes(t *testing.T, c *Client) []string {
	t.Helper()
	var types []string
	for {
		select {
		case raw := <-c.Send:
			var msg WSMessage
			require.NoError(t, json.Unmarshal(raw, &msg))
			types = append(types, msg.Type)
		default:
			return types
		}
	}
}

func TestJoinRoomIdempotent(t *testing.T) {
	m := NewManager()
	client := newTestClient("s1", "student")
	roomID := DeriveRoomID("s1", "a1")

	m.JoinRoom(client, roomID)
	m.JoinRoom(client, roomID)

	assert.Equal(t, 1, m.RoomSize(roomID))

	m.BroadcastToRoom(roomID, WSMessage{Type: EventMessageReceived})
	assert.Len(t, receivedTypes(t, client), 1, "a double join must not double deliveries")
}

func TestBroadcastIncludesSender(t *testing.T) {
	m := NewManager()
	student := newTestClient("s1", "student")
	admin := newTestClient("a1", "admin")
	roomID := DeriveRoomID("s1", "a1")

	m.JoinRoom(student, roomID)
	m.JoinRoom(admin, roomID)

	m.BroadcastToRoom(roomID, WSMessage{Type: EventMessageReceived})

	assert.Len(t, receivedTypes(t, student), 1)
	assert.Len(t, receivedTypes(t, admin), 1)
}

func TestBroadcastFansOutToAllConnectionsOfOneUser(t *testing.T) {
	m := NewManager()
	tab1 := newTestClient("s1", "student")
	tab2 := newTestClient("s1", "student")
	roomID := DeriveRoomID("s1", "a1")

	m.JoinRoom(tab1, roomID)
	m.JoinRoom(tab2, roomID)

	m.BroadcastToRoom(roomID, WSMessage{Type: EventMessageReceived})

	assert.Len(t, receivedTypes(t, tab1), 1)
	assert.Len(t, receivedTypes(t, tab2), 1)
}

func TestBroadcastToEmptyRoomIsNoOp(t *testing.T) {
	m := NewManager()

	assert.NotPanics(t, func() {
		m.BroadcastToRoom(DeriveRoomID("s1", "a1"), WSMessage{Type: EventMessageReceived})
	})
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	m := NewManager()
	client := newTestClient("s1", "student")
	roomID := DeriveRoomID("s1", "a1")

	m.JoinRoom(client, roomID)
	m.LeaveRoom(client, roomID)

	m.BroadcastToRoom(roomID, WSMessage{Type: EventMessageReceived})
	assert.Empty(t, receivedTypes(t, client))

	// Leaving a room the connection never joined is not an error.
	assert.NotPanics(t, func() {
		m.LeaveRoom(client, DeriveRoomID("s1", "a2"))
	})
}

func TestUnregisterCleansUpAllMemberships(t *testing.T) {
	m := NewManager()
	client := newTestClient("s1", "student")
	other := newTestClient("a1", "admin")
	room1 := DeriveRoomID("s1", "a1")
	room2 := DeriveRoomID("s1", "a2")

	m.registerClient(client)
	m.JoinRoom(client, room1)
	m.JoinRoom(client, room2)
	m.JoinRoom(other, room1)

	m.unregisterClient(client)

	assert.Equal(t, 0, m.RoomSize(room2))
	assert.Equal(t, 1, m.RoomSize(room1), "other members stay joined")

	// Send channel is closed so the write pump terminates.
	_, open := <-client.Send
	assert.False(t, open)

	// Unregistering twice is safe.
	assert.NotPanics(t, func() { m.unregisterClient(client) })
}

func TestBroadcastDropsSlowConsumer(t *testing.T) {
	m := NewManager()
	client := newTestClient("s1", "student")
	roomID := DeriveRoomID("s1", "a1")

	m.registerClient(client)
	m.JoinRoom(client, roomID)

	// Fill the send buffer so the next delivery cannot be queued.
	for i := 0; i < cap(client.Send); i++ {
		require.True(t, client.trySend([]byte("x")))
	}

	m.BroadcastToRoom(roomID, WSMessage{Type: EventMessageReceived})

	assert.Equal(t, 0, m.RoomSize(roomID), "a slow consumer is dropped from the room")

	// The buffered backlog drains and then the channel reports closed.
	for i := 0; i < cap(client.Send); i++ {
		<-client.Send
	}
	_, open := <-client.Send
	assert.False(t, open)
}

// A disconnect closing the send channel while a broadcast is in flight must
// never panic or crash other sessions; the message is simply dropped.
func TestBroadcastRacingDisconnect(t *testing.T) {
	m := NewManager()
	roomID := DeriveRoomID("s1", "a1")

	for i := 0; i < 200; i++ {
		client := newTestClient("s1", "student")
		m.registerClient(client)
		m.JoinRoom(client, roomID)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.BroadcastToRoom(roomID, WSMessage{Type: EventMessageReceived})
		}()
		go func() {
			defer wg.Done()
			m.unregisterClient(client)
		}()
		wg.Wait()

		assert.Equal(t, 0, m.RoomSize(roomID))
	}
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	client := newTestClient("s1", "student")

	client.closeSend()

	assert.NotPanics(t, func() {
		assert.True(t, client.trySend([]byte("late")))
	})
	assert.NotPanics(t, func() { client.closeSend() })
}

func TestClientJoinsMultipleRooms(t *testing.T) {
	m := NewManager()
	client := newTestClient("s1", "student")
	room1 := DeriveRoomID("s1", "a1")
	room2 := DeriveRoomID("s1", "a2")

	m.JoinRoom(client, room1)
	m.JoinRoom(client, room2)

	m.BroadcastToRoom(room1, WSMessage{Type: EventMessageReceived})
	m.BroadcastToRoom(room2, WSMessage{Type: EventMessageReceived})

	assert.Len(t, receivedTypes(t, client), 2)
}
