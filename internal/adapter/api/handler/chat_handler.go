package handler

import (
	"github.com/labstack/echo/v4"

	"complainthub/internal/domain/entity"
	"complainthub/internal/usecase"
	"complainthub/pkg/errors"
	"complainthub/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	Text        string `json:"text" validate:"required"`
	DisplayName string `json:"display_name"`
	ComplaintID string `json:"complaint_id,omitempty"`
}

type ackReadResponse struct {
	Success bool `json:"success"`
}

// identity pulls the authenticated {userId, role} pair off the context.
func identity(c echo.Context) (string, entity.Role, error) {
	uid, _ := c.Get("uid").(string)
	roleStr, _ := c.Get("role").(string)

	role, err := entity.ParseRole(roleStr)
	if err != nil || uid == "" {
		return "", "", errors.Unauthorized("Authentication required", err)
	}
	return uid, role, nil
}

// OpenConversation finds or creates the conversation with the target and
// returns it with its full message log.
func (h *ChatHandler) OpenConversation(c echo.Context) error {
	uid, role, err := identity(c)
	if err != nil {
		return response.Error(c, err)
	}

	conv, err := h.chatUseCase.OpenConversation(
		c.Request().Context(),
		uid, role,
		c.Param("targetUserId"),
		c.QueryParam("complaintId"),
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conv)
}

// SendMessage is the REST ingress to the same pipeline the WebSocket
// sendMessage event feeds.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	uid, role, err := identity(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName, _ = c.Get("name").(string)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), usecase.SendMessageInput{
		SenderID:    uid,
		SenderRole:  role,
		DisplayName: displayName,
		TargetID:    c.Param("targetUserId"),
		Text:        req.Text,
		ComplaintID: req.ComplaintID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// GetUnreadStatus reports {has_unread, unread_count} for the conversation
// with the target. A missing conversation reports zero, not an error.
func (h *ChatHandler) GetUnreadStatus(c echo.Context) error {
	uid, role, err := identity(c)
	if err != nil {
		return response.Error(c, err)
	}

	status, err := h.chatUseCase.GetUnreadStatus(
		c.Request().Context(),
		uid, role,
		c.Param("targetUserId"),
		c.QueryParam("complaintId"),
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, status)
}

// AcknowledgeRead advances the caller's read marker. Succeeds even when no
// conversation exists yet.
func (h *ChatHandler) AcknowledgeRead(c echo.Context) error {
	uid, role, err := identity(c)
	if err != nil {
		return response.Error(c, err)
	}

	err = h.chatUseCase.AcknowledgeRead(
		c.Request().Context(),
		uid, role,
		c.Param("targetUserId"),
		c.QueryParam("complaintId"),
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, ackReadResponse{Success: true})
}
