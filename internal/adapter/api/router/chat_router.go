package router

import (
	"github.com/labstack/echo/v4"

	"complainthub/internal/adapter/api/handler"
	"complainthub/internal/adapter/api/middleware"
)

// SetupChatRouter registers the request/response surface of the chat core.
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chat")
	chatGroup.Use(authMiddleware.Authenticate)

	// GET /:targetUserId is find-or-create: opening a conversation that does
	// not exist yet creates it and returns the (empty) message log.
	chatGroup.GET("/:targetUserId", chatHandler.OpenConversation)
	chatGroup.POST("/:targetUserId/messages", chatHandler.SendMessage)
	chatGroup.GET("/:targetUserId/unread", chatHandler.GetUnreadStatus)
	chatGroup.PUT("/:targetUserId/read", chatHandler.AcknowledgeRead)
}
