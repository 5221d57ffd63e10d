package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"complainthub/internal/adapter/api"
	"complainthub/internal/adapter/api/handler"
	apimiddleware "complainthub/internal/adapter/api/middleware"
	"complainthub/internal/adapter/api/router"
	"complainthub/internal/adapter/repository"
	"complainthub/internal/infrastructure/mongodb"
	"complainthub/internal/infrastructure/websocket"
	"complainthub/internal/usecase"
	"complainthub/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(ctx)

	db := mongoClient.Database(cfg.MongoDatabase)

	conversationRepo := repository.NewMongoConversationRepository(db)
	if err := conversationRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	chatUseCase := usecase.NewChatUseCase(conversationRepo, wsManager)
	wsManager.SetChatService(chatUseCase)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(cfg.JWTSecret)

	chatHandler := handler.NewChatHandler(chatUseCase)
	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware)
	healthHandler := handler.NewHealthHandler()

	router.SetupHealthRouter(e, healthHandler)
	router.SetupChatRouter(e, chatHandler, authMiddleware)
	router.SetupWebSocketRouter(e, wsHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
