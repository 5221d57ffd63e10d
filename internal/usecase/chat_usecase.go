package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"complainthub/internal/domain/entity"
	"complainthub/internal/domain/repository"
	"complainthub/internal/infrastructure/ratelimit"
	ws "complainthub/internal/infrastructure/websocket"
	"complainthub/pkg/errors"
	"complainthub/pkg/logger"
)

// ChatUseCase is the message ingest pipeline and read-state tracker. It owns
// no state of its own: conversations live in the repository, liveness in the
// websocket manager.
type ChatUseCase struct {
	conversationRepo repository.ConversationRepository
	wsManager        *ws.Manager
	rateLimiter      *ratelimit.RateLimiter
}

func NewChatUseCase(conversationRepo repository.ConversationRepository, wsManager *ws.Manager) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		conversationRepo: conversationRepo,
		wsManager:        wsManager,
		rateLimiter:      rateLimiter,
	}
}

type SendMessageInput struct {
	SenderID    string
	SenderRole  entity.Role
	DisplayName string
	TargetID    string
	Text        string
	ComplaintID string
}

type UnreadStatus struct {
	HasUnread   bool `json:"has_unread"`
	UnreadCount int  `json:"unread_count"`
}

// participantsByRole maps (self, target) onto the (student, admin) pair. Role
// is authoritative: whoever initiates, the student field always holds the
// student's identity. This is what makes pair lookups symmetric.
func participantsByRole(selfID string, selfRole entity.Role, targetID string) (studentID, adminID string) {
	if selfRole == entity.RoleStudent {
		return selfID, targetID
	}
	return targetID, selfID
}

func validateParticipants(selfID string, selfRole entity.Role, targetID string) error {
	if selfID == "" || targetID == "" {
		return errors.BadRequest("Both participants are required", nil)
	}
	if !selfRole.Valid() {
		return errors.BadRequest("Invalid participant role", nil)
	}
	if selfID == targetID {
		return errors.BadRequest("You cannot open a conversation with yourself", nil)
	}
	return nil
}

// OpenConversation finds or creates the conversation for the pair.
// Idempotent: opening twice returns the same document, and concurrent opens
// for a brand-new pair converge to one document.
func (uc *ChatUseCase) OpenConversation(ctx context.Context, selfID string, selfRole entity.Role, targetID, complaintID string) (*entity.Conversation, error) {
	if err := validateParticipants(selfID, selfRole, targetID); err != nil {
		return nil, err
	}

	allowed, waitTime := uc.rateLimiter.Allow(selfID, "open_conversation")
	if !allowed {
		return nil, errors.TooManyRequests("Too many conversation opens", waitTime)
	}

	studentID, adminID := participantsByRole(selfID, selfRole, targetID)
	return uc.conversationRepo.FindOrCreate(ctx, studentID, adminID, complaintID)
}

// SendMessage validates, persists, and fans out one message. The persisted
// write is the durability boundary: if it fails nothing is broadcast and the
// error goes to the sender only. Broadcast is in-memory and cannot fail the
// send.
func (uc *ChatUseCase) SendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	if err := validateParticipants(input.SenderID, input.SenderRole, input.TargetID); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.BadRequest("Message text is required", nil)
	}

	allowed, waitTime := uc.rateLimiter.Allow(input.SenderID, "send_message")
	if !allowed {
		return nil, errors.TooManyRequests("Too many messages", waitTime)
	}

	message, err := entity.NewMessage(input.SenderRole, input.SenderID, text)
	if err != nil {
		return nil, errors.BadRequest("Invalid sender role", err)
	}
	message.ID = uuid.New().String()
	message.CreatedAt = time.Now()

	studentID, adminID := participantsByRole(input.SenderID, input.SenderRole, input.TargetID)

	conv, err := uc.conversationRepo.AppendMessage(ctx, studentID, adminID, input.ComplaintID, message)
	if err != nil {
		logger.Error("SendMessage: failed to persist message from %s: %v", input.SenderID, err)
		return nil, err
	}

	roomID := ws.DeriveRoomID(input.SenderID, input.TargetID)
	uc.wsManager.BroadcastToRoom(roomID, ws.WSMessage{
		Type: ws.EventMessageReceived,
		Data: ws.MessageReceivedData{
			DisplayName: input.DisplayName,
			Text:        message.Text,
			SenderRole:  string(message.Sender),
			Timestamp:   message.CreatedAt.Format(time.RFC3339),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})

	logger.Debug("SendMessage: %s -> %s in conversation %s", input.SenderID, input.TargetID, conv.ID)
	return &message, nil
}

// IngestMessage adapts transport events to SendMessage. Satisfies
// websocket.ChatService.
func (uc *ChatUseCase) IngestMessage(ctx context.Context, msg ws.InboundMessage) error {
	role, err := entity.ParseRole(msg.SenderRole)
	if err != nil {
		return errors.BadRequest("Invalid sender role", err)
	}

	_, err = uc.SendMessage(ctx, SendMessageInput{
		SenderID:    msg.SenderID,
		SenderRole:  role,
		DisplayName: msg.DisplayName,
		TargetID:    msg.TargetID,
		Text:        msg.Text,
		ComplaintID: msg.ComplaintID,
	})
	return err
}

// GetUnreadStatus reports how many of the other side's messages postdate
// self's read marker. A conversation that does not exist has zero unread.
func (uc *ChatUseCase) GetUnreadStatus(ctx context.Context, selfID string, selfRole entity.Role, targetID, complaintID string) (*UnreadStatus, error) {
	if err := validateParticipants(selfID, selfRole, targetID); err != nil {
		return nil, err
	}

	studentID, adminID := participantsByRole(selfID, selfRole, targetID)

	conv, err := uc.conversationRepo.Get(ctx, studentID, adminID, complaintID)
	if err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return &UnreadStatus{HasUnread: false, UnreadCount: 0}, nil
		}
		return nil, err
	}

	count := conv.UnreadCount(selfRole)
	return &UnreadStatus{HasUnread: count > 0, UnreadCount: count}, nil
}

// AcknowledgeRead advances self's read marker to now. Succeeds without side
// effect when the conversation does not exist; no document is created.
func (uc *ChatUseCase) AcknowledgeRead(ctx context.Context, selfID string, selfRole entity.Role, targetID, complaintID string) error {
	if err := validateParticipants(selfID, selfRole, targetID); err != nil {
		return err
	}

	studentID, adminID := participantsByRole(selfID, selfRole, targetID)
	return uc.conversationRepo.MarkRead(ctx, studentID, adminID, complaintID, selfRole, time.Now())
}

// DeleteConversationsForComplaint is the hook the complaint-resolution flow
// calls when a complaint is closed out.
func (uc *ChatUseCase) DeleteConversationsForComplaint(ctx context.Context, complaintID string) error {
	return uc.conversationRepo.DeleteByComplaintID(ctx, complaintID)
}
