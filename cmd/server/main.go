package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"masquerade/internal/config"
	"masquerade/internal/contracts"
	"masquerade/internal/database"
	"masquerade/internal/handlers"
	"masquerade/internal/logging"
	"masquerade/internal/middleware"
	"masquerade/internal/services"
	"masquerade/internal/statemachine"
	"masquerade/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Masquerade Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Contracts: %s)", cfg.Port, cfg.ContractsDir)

	// Open the SQLite user-data store
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Contract manifests, with hot-reload on file changes
	resolver := contracts.NewResolver(cfg.ContractsDir)
	go resolver.Watch()

	// Core engine wiring, leaves first
	ticks := services.NewTickSource()
	objectives := services.NewObjectiveRunner(statemachine.Evaluate)
	scoring := services.NewScoringRunner(statemachine.Evaluate)
	userdata := services.NewUserDataService(db)
	challenges := services.NewChallengeService(statemachine.Evaluate, userdata)
	registry := services.NewSessionRegistry(resolver, challenges, objectives, scoring, cfg.DefaultDifficulty)

	splitter := services.NewAutosplitter(cfg.LiveSplitEnabled, cfg.LiveSplitAddr, cfg.LiveSplitTimeout)
	presence := services.NewPresenceService(cfg.RedisURL)
	defer presence.Close()

	queue := services.NewPushQueue(ticks, cfg.NextPollSeconds)
	metrics := services.NewEngineMetrics(registry, queue)
	finisher := services.NewFailureFinisher(userdata, splitter, queue)
	pipeline := services.NewEventPipeline(registry, objectives, scoring, challenges, userdata, finisher, ticks, metrics)
	pipeline.AddHook(services.NewGhostModeHandler())
	queue.SetPipeline(pipeline)

	// Debug websocket feed of outbound events
	liveTap := services.NewLiveTap()
	queue.SetTap(liveTap.Publish)

	// Local JWT auth; absent secret enables the development bypass
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to configure JWT auth: %v", err)
		}
		log.Println("🔐 JWT authentication enabled")
	} else {
		log.Println("⚠️  JWT_SECRET not set, running with development auth bypass")
	}

	// Periodic queue-stats job; the queues have no TTL, so growth must be
	// visible in the logs, not only on the metrics dashboard
	statsScheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		log.Fatalf("❌ Failed to create stats scheduler: %v", err)
	}
	_, err = statsScheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			events, messages := queue.Depth()
			log.Printf("📊 [STATS] sessions=%d queued_events=%d queued_push_messages=%d live_subscribers=%d",
				registry.Count(), events, messages, liveTap.Count())
		}),
	)
	if err != nil {
		log.Fatalf("❌ Failed to schedule stats job: %v", err)
	}
	statsScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Masquerade v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
		BodyLimit:    10 * 1024 * 1024, // large event batches after a long offline stretch
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("masquerade")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Rate limiting
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Sync=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.SyncMax,
		rateLimitConfig.WebSocketMax,
	)
	app.Use(middleware.GlobalAPIRateLimiter(rateLimitConfig))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Handlers
	eventsHandler := handlers.NewEventsHandler(queue, metrics)
	sessionsHandler := handlers.NewSessionsHandler(registry, presence, splitter)
	healthHandler := handlers.NewHealthHandler(registry, queue)
	liveHandler := handlers.NewLiveHandler(liveTap)

	// Routes
	app.Get("/health", healthHandler.Handle)

	authMw := middleware.AuthMiddleware(jwtAuth)
	syncMw := middleware.SyncRateLimiter(rateLimitConfig)

	events := app.Group("/authentication/api/userchannel/EventsService", authMw, syncMw)
	events.Post("/SaveAndSynchronizeEvents3", eventsHandler.SaveAndSynchronizeEvents3)
	events.Post("/SaveAndSynchronizeEvents4", eventsHandler.SaveAndSynchronizeEvents4)
	events.Post("/SaveEvents2", eventsHandler.SaveEvents2)

	api := app.Group("/api", authMw)
	api.Post("/sessions", sessionsHandler.Start)
	api.Get("/debug/live/:userId",
		middleware.WebSocketRateLimiter(rateLimitConfig),
		liveHandler.Upgrade,
		liveHandler.Handle(),
	)

	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🎮 Events endpoint: http://localhost:%s/authentication/api/userchannel/EventsService", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := statsScheduler.Shutdown(); err != nil {
			log.Printf("⚠️ Error stopping stats scheduler: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
