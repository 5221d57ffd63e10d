package websocket

import (
	"context"
	"encoding/json"
	"time"

	"complainthub/pkg/logger"
)

// WebSocket event types
const (
	EventPing            = "ping"
	EventPong            = "pong"
	EventJoinChat        = "joinChat"
	EventLeaveChat       = "leaveChat"
	EventSendMessage     = "sendMessage"
	EventMessageReceived = "messageReceived"
	EventError           = "error"
)

// WSMessage is the envelope for every event in either direction.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type JoinChatData struct {
	TargetID string `json:"target_id"`
}

type SendMessageData struct {
	DisplayName string `json:"display_name"`
	TargetID    string `json:"target_id"`
	Text        string `json:"text"`
	ComplaintID string `json:"complaint_id,omitempty"`
}

// MessageReceivedData is broadcast to every connection in the room,
// including the sender's own, so all sides render from the same event.
type MessageReceivedData struct {
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
	SenderRole  string `json:"sender_role"`
	Timestamp   string `json:"timestamp"`
}

// InboundMessage is a sendMessage event after the transport layer has
// attached the authenticated sender.
type InboundMessage struct {
	SenderID    string
	SenderRole  string
	DisplayName string
	TargetID    string
	Text        string
	ComplaintID string
}

// ChatService is the ingest pipeline the dispatcher hands messages to.
// Implemented by the chat use case; declared here to keep the transport
// layer free of use-case imports.
type ChatService interface {
	IngestMessage(ctx context.Context, msg InboundMessage) error
}

// HandleClientMessage dispatches one inbound event. A failure affects only
// the originating connection; other sessions never see it.
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage WSMessage

	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		logger.Error("WebSocket: failed to unmarshal message from user %s: %v", client.UserID, err)
		m.sendErrorToClient(client, "Invalid message format")
		return
	}

	switch wsMessage.Type {
	case EventPing:
		m.handlePing(client)

	case EventJoinChat:
		m.handleJoinChat(client, wsMessage.Data)

	case EventLeaveChat:
		m.handleLeaveChat(client, wsMessage.Data)

	case EventSendMessage:
		m.handleSendMessage(client, wsMessage.Data)

	default:
		logger.Warn("WebSocket: unknown event type %q from user %s", wsMessage.Type, client.UserID)
		m.sendErrorToClient(client, "Unknown message type")
	}
}

func (m *Manager) handlePing(client *Client) {
	m.sendToClient(client, WSMessage{
		Type:      EventPong,
		Data:      map[string]string{"status": "alive"},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (m *Manager) handleJoinChat(client *Client, data interface{}) {
	var joinData JoinChatData
	if err := decodeEventData(data, &joinData); err != nil {
		m.sendErrorToClient(client, "Invalid joinChat data")
		return
	}

	if joinData.TargetID == "" {
		m.sendErrorToClient(client, "Missing target_id")
		return
	}
	if joinData.TargetID == client.UserID {
		m.sendErrorToClient(client, "Cannot open a chat with yourself")
		return
	}

	roomID := DeriveRoomID(client.UserID, joinData.TargetID)
	m.JoinRoom(client, roomID)

	logger.Debug("WebSocket: user %s joined room %s", client.UserID, roomID)
}

func (m *Manager) handleLeaveChat(client *Client, data interface{}) {
	var leaveData JoinChatData
	if err := decodeEventData(data, &leaveData); err != nil {
		m.sendErrorToClient(client, "Invalid leaveChat data")
		return
	}

	if leaveData.TargetID == "" {
		m.sendErrorToClient(client, "Missing target_id")
		return
	}

	m.LeaveRoom(client, DeriveRoomID(client.UserID, leaveData.TargetID))
}

func (m *Manager) handleSendMessage(client *Client, data interface{}) {
	var sendData SendMessageData
	if err := decodeEventData(data, &sendData); err != nil {
		m.sendErrorToClient(client, "Invalid sendMessage data")
		return
	}

	if m.chat == nil {
		logger.Error("WebSocket: no chat service wired, dropping message from user %s", client.UserID)
		m.sendErrorToClient(client, "Chat unavailable")
		return
	}

	displayName := sendData.DisplayName
	if displayName == "" {
		displayName = client.DisplayName
	}

	err := m.chat.IngestMessage(context.Background(), InboundMessage{
		SenderID:    client.UserID,
		SenderRole:  client.Role,
		DisplayName: displayName,
		TargetID:    sendData.TargetID,
		Text:        sendData.Text,
		ComplaintID: sendData.ComplaintID,
	})
	if err != nil {
		// Reported to the sender only; nothing was broadcast.
		logger.Warn("WebSocket: sendMessage from user %s rejected: %v", client.UserID, err)
		m.sendErrorToClient(client, err.Error())
	}
}

func (m *Manager) sendErrorToClient(client *Client, errorMsg string) {
	m.sendToClient(client, WSMessage{
		Type: EventError,
		Data: map[string]string{
			"error": errorMsg,
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func decodeEventData(data interface{}, out interface{}) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(dataBytes, out)
}
