package bootstrap

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"

	"pipeline-chat-be/internal/config"
	"pipeline-chat-be/internal/controller"
	"pipeline-chat-be/internal/handler"
	"pipeline-chat-be/internal/pkg/logger"
	"pipeline-chat-be/internal/repository/memory"
	"pipeline-chat-be/internal/service"
	"pipeline-chat-be/internal/websocket"
	"pipeline-chat-be/pkg/catalog"
	"pipeline-chat-be/pkg/classifier"
	"pipeline-chat-be/pkg/llm/factory"

	pktNats "pipeline-chat-be/pkg/nats"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	CatalogController controller.ICatalogController

	// Background Services (Exposed for main.go to run)
	CanvasService service.ICanvasService

	// WebSockets
	CanvasHandler *handler.CanvasHandler
	WebSocketHub  *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Domain Components
	registry, err := catalog.Load(cfg.Catalog.FilePath)
	if err != nil {
		log.Fatalf("[FATAL] Failed to load connector catalog: %v", err)
	}
	log.Printf("[INFO] Loaded connector catalog: %d connectors", len(registry.All()))

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Ai.BaseURL,
		cfg.Ai.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)

	intentLogger := log.New(os.Stdout, "[INTENT] ", log.LstdFlags)
	remoteClassifier := classifier.NewResolver(llmProvider, intentLogger)

	// Initialize In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository()

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/canvas.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Services
	publisherService := service.NewPublisherService(pubSub)
	canvasService := service.NewCanvasService(pubSub, wsHub, wsLogger)

	chatService := service.NewChatService(
		registry,
		remoteClassifier,
		sessionRepo,
		publisherService,
		natsPub,
		time.Duration(cfg.Ai.ClassifyTimeout)*time.Second,
	)
	catalogService := service.NewCatalogService(registry)

	// Handler
	canvasHandler := handler.NewCanvasHandler(wsHub, wsLogger)

	sysLogger.Info("Bootstrap", "Container initialized", map[string]interface{}{
		"connectors":   len(registry.All()),
		"llm_provider": cfg.Ai.Provider,
	})

	// 5. Controllers
	return &Container{
		CanvasHandler: canvasHandler,
		WebSocketHub:  wsHub,

		ChatController:    controller.NewChatController(chatService),
		CatalogController: controller.NewCatalogController(catalogService),

		CanvasService: canvasService,
	}
}
