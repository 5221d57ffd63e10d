package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"complainthub/pkg/logger"
)

// Client represents a single WebSocket connection. A user with two open tabs
// has two clients; each receives broadcasts independently.
type Client struct {
	UserID      string
	Role        string
	DisplayName string
	Conn        *websocket.Conn
	Send        chan []byte

	rooms map[string]bool

	// sendMu serializes trySend and closeSend so a broadcast can never race
	// the channel close on disconnect.
	sendMu sync.Mutex
	closed bool
}

func NewClient(userID, role, displayName string, conn *websocket.Conn) *Client {
	return &Client{
		UserID:      userID,
		Role:        role,
		DisplayName: displayName,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		rooms:       make(map[string]bool),
	}
}

// trySend queues a message without blocking. Returns false only when the
// buffer is full; messages to an already-closed client are dropped.
func (c *Client) trySend(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// closeSend closes the Send channel exactly once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Manager tracks live connections and their room memberships. Room
// memberships are mutated only by join/leave events from the owning
// connection and read by broadcast.
type Manager struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex

	chat ChatService
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// SetChatService wires the message ingest pipeline. Set once at bootstrap,
// before any connection is accepted.
func (m *Manager) SetChatService(chat ChatService) {
	m.chat = chat
}

// Start runs the registration loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.registerClient(client)

			case client := <-m.Unregister:
				m.unregisterClient(client)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) registerClient(client *Client) {
	m.mutex.Lock()
	m.clients[client] = true
	m.mutex.Unlock()

	logger.Info("WebSocket: client connected: user=%s role=%s", client.UserID, client.Role)
}

func (m *Manager) unregisterClient(client *Client) {
	m.mutex.Lock()
	if _, ok := m.clients[client]; !ok {
		m.mutex.Unlock()
		return
	}
	delete(m.clients, client)
	for roomID := range client.rooms {
		if members, ok := m.rooms[roomID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(m.rooms, roomID)
			}
		}
	}
	client.closeSend()
	m.mutex.Unlock()

	logger.Info("WebSocket: client disconnected: user=%s", client.UserID)
}

// JoinRoom subscribes the connection to a room. Idempotent; a connection may
// be in several rooms at once.
func (m *Manager) JoinRoom(client *Client, roomID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	members, ok := m.rooms[roomID]
	if !ok {
		members = make(map[*Client]bool)
		m.rooms[roomID] = members
	}
	members[client] = true
	client.rooms[roomID] = true
}

// LeaveRoom removes the connection from a room. Leaving a room the connection
// never joined is not an error.
func (m *Manager) LeaveRoom(client *Client, roomID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(client.rooms, roomID)
	if members, ok := m.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
}

// RoomSize reports the number of connections currently joined to a room.
func (m *Manager) RoomSize(roomID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms[roomID])
}

// BroadcastToRoom delivers an event to every connection joined to the room,
// including the sender's own if joined. Broadcasting to a room with no
// members is a silent no-op.
func (m *Manager) BroadcastToRoom(roomID string, message WSMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		logger.Error("WebSocket: failed to marshal broadcast for room %s: %v", roomID, err)
		return
	}

	m.mutex.RLock()
	members := make([]*Client, 0, len(m.rooms[roomID]))
	for client := range m.rooms[roomID] {
		members = append(members, client)
	}
	m.mutex.RUnlock()

	for _, client := range members {
		if !client.trySend(messageBytes) {
			// Slow consumer; drop the connection rather than block the room.
			logger.Warn("WebSocket: send buffer full for user %s, dropping connection", client.UserID)
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) sendToClient(client *Client, message WSMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		logger.Error("WebSocket: failed to marshal message for user %s: %v", client.UserID, err)
		return
	}

	if !client.trySend(messageBytes) {
		logger.Warn("WebSocket: send buffer full for user %s, dropping connection", client.UserID)
		m.unregisterClient(client)
	}
}

// ReadPump reads events from the connection and dispatches them until the
// connection drops. Events from one connection are processed in order.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket: read error for user %s: %v", c.UserID, err)
			}
			break
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump writes outbound events to the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Error("WebSocket: write error for user %s: %v", c.UserID, err)
			return
		}
	}
}
