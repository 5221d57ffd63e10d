package router

import (
	"github.com/labstack/echo/v4"

	"complainthub/internal/adapter/api/handler"
)

// SetupWebSocketRouter registers the realtime transport endpoint. Auth is
// handled inside the handler so the token can come from the query string.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
