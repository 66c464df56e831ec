package bootstrap

import (
	"context"
	"log"

	"ai-research-be/internal/clients"
	"ai-research-be/internal/config"
	"ai-research-be/internal/controller"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/implementation"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/internal/service"
	"ai-research-be/internal/websocket"
	"ai-research-be/pkg/broker"
	"ai-research-be/pkg/llm/ollama"
	"ai-research-be/pkg/workflow"

	pktNats "ai-research-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	SessionController  controller.ISessionController
	WorkflowController controller.IWorkflowController

	// WebSockets & Notification
	WebSocketHub *websocket.Hub
	Dispatcher   service.IEnvelopeDispatcher
	Notifier     *service.NotifierService

	// Exposed for health reporting
	Broker *broker.Broker
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

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
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

	// Durable storage falls back to in-process when Redis is unreachable;
	// sessions then survive only as long as the process.
	var durable contract.DurableStore
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Using in-memory store", err)
		durable = memory.NewMemoryStore()
		rdb = nil
	} else {
		durable = implementation.NewRedisStore(rdb)
	}

	// 3. Generation Broker
	provider := ollama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	brk := broker.New(provider, sysLogger, broker.Config{
		MaxRetries:  cfg.Broker.MaxRetries,
		BatchSize:   cfg.Broker.BatchSize,
		CallTimeout: cfg.Broker.CallTimeout,
		CacheTTL:    cfg.Broker.CacheTTL,
	})
	go func() {
		if err := brk.EnsureModel(context.Background()); err != nil {
			sysLogger.Warn("Bootstrap", "Model not ready", map[string]interface{}{
				"model": cfg.Ai.OllamaModel,
				"error": err.Error(),
			})
		}
	}()

	// 4. Workflow & Sessions
	wfManager := workflow.NewManager(durable, pubSub, sysLogger)
	sessionRegistry := memory.NewSessionRegistry(durable, sysLogger)
	taskRegistry := service.NewTaskRegistry()

	// 5. Downstream workers
	crawler := clients.NewCrawlerClient(cfg.Services.CrawlerURL)
	developer := clients.NewCodeDeveloperClient(cfg.Services.CodeDeveloperURL)
	docgen := clients.NewDocGeneratorClient(cfg.Services.DocGeneratorURL)

	// 6. Services
	sessionService := service.NewSessionService(sessionRegistry)
	researchService := service.NewResearchService(
		sessionRegistry,
		wfManager,
		brk,
		crawler,
		durable,
		taskRegistry,
		natsPub,
		sysLogger,
		cfg.Research.Sources,
	)
	developmentService := service.NewDevelopmentService(wfManager, researchService, developer, durable, sysLogger)
	documentationService := service.NewDocumentationService(wfManager, researchService, docgen, sysLogger)
	workflowService := service.NewWorkflowService(wfManager)

	dispatcher := service.NewEnvelopeDispatcher(
		sessionService,
		researchService,
		developmentService,
		documentationService,
		workflowService,
		sysLogger,
	)

	// 7. WebSocket Hub & Notifier
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	notifier := service.NewNotifierService(pubSub, natsSub, researchService, wsHub, wsLogger)

	return &Container{
		SessionController:  controller.NewSessionController(sessionService),
		WorkflowController: controller.NewWorkflowController(workflowService),
		WebSocketHub:       wsHub,
		Dispatcher:         dispatcher,
		Notifier:           notifier,
		Broker:             brk,
	}
}
