// Package main is the entry point for the NoteMesh service. One binary
// hosts the notes, social and notifications roles; the roles list in the
// config decides which of them a deployment runs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"notemesh/internal/api"
	"notemesh/internal/broker"
	memorybroker "notemesh/internal/broker/memory"
	rabbitbroker "notemesh/internal/broker/rabbit"
	"notemesh/internal/config"
	"notemesh/internal/event"
	"notemesh/internal/notes"
	"notemesh/internal/notifier"
	"notemesh/internal/rpc"
	"notemesh/internal/social"
	"notemesh/internal/store"
	memorystor "notemesh/internal/store/memory"
	postgresstor "notemesh/internal/store/postgres"
	redisstor "notemesh/internal/store/redis"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	// Bootstrap logger used until configuration is loaded
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	logger = initLogger(&cfg.Logger)

	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
		"roles", roleNames(cfg),
	)

	// Create context that listens for shutdown signals. The broker
	// subscriptions and the RPC client live on this context.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize dependencies based on storage mode and roles
	deps, cleanup, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Start the RPC server for the notes role
	if deps.rpcServer != nil {
		if err := deps.rpcServer.Start(ctx); err != nil {
			logger.Error("failed to start rpc server", "error", err)
			os.Exit(1)
		}
	}

	// Start the event consumer for the notifications role
	if deps.consumer != nil {
		if err := deps.consumer.Start(ctx); err != nil {
			logger.Error("failed to start event consumer", "error", err)
			os.Exit(1)
		}
	}

	// Start HTTP server
	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("NoteMesh started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
	)

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("NoteMesh stopped")
}

// dependencies holds all initialized service dependencies. The rpcServer
// and consumer fields are nil for deployments not running their roles.
type dependencies struct {
	server    *api.Server
	rpcServer *rpc.Server
	consumer  *notifier.Consumer
}

// initDependencies creates and wires all service dependencies based on
// config. Returns the dependencies and a cleanup function.
func initDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		transport        broker.Transport
		noteRepo         store.NoteRepository
		likeRepo         store.LikeRepository
		notificationRepo store.NotificationRepository
		likeCache        store.LikeCountCache
		cleanupFuncs     []func()
	)

	if cfg.Storage.UseMemory() {
		// Initialize in-memory implementations
		logger.Info("initializing in-memory broker and storage")

		memTransport := memorybroker.NewTransport(cfg.Queues.EventBuf)
		transport = memTransport
		cleanupFuncs = append(cleanupFuncs, func() { _ = memTransport.Close() })

		noteRepo = memorystor.NewNoteRepository()
		likeRepo = memorystor.NewLikeRepository()
		notificationRepo = memorystor.NewNotificationRepository()
		likeCache = memorystor.NewLikeCountCache()
	} else {
		// Initialize real backends
		logger.Info("initializing production backends (RabbitMQ, Redis, PostgreSQL)")

		rabbit, err := rabbitbroker.Dial(&cfg.Broker, logger)
		if err != nil {
			return nil, nil, err
		}
		transport = rabbit
		cleanupFuncs = append(cleanupFuncs, func() { _ = rabbit.Close() })

		// Initialize PostgreSQL
		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		// Run migrations
		if err := db.RunMigrations(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations completed")

		noteRepo = postgresstor.NewNoteRepository(db)
		likeRepo = postgresstor.NewLikeRepository(db)
		notificationRepo = postgresstor.NewNotificationRepository(db)

		// Initialize Redis
		redisCache, err := redisstor.NewLikeCountCache(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		likeCache = redisCache
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisCache.Close() })
	}

	durable := cfg.Queues.IsDurable()

	var (
		rpcServer           *rpc.Server
		consumer            *notifier.Consumer
		noteHandler         *api.NoteHandler
		socialHandler       *api.SocialHandler
		notificationHandler *api.NotificationHandler
	)

	if cfg.HasRole(config.RoleNotes) {
		noteService := notes.NewService(noteRepo, logger)
		rpcServer = rpc.NewServer(transport, cfg.Queues.NoteRPC, durable, noteService.LookupHandler(), logger)
		noteHandler = api.NewNoteHandler(noteService, logger)
	}

	if cfg.HasRole(config.RoleSocial) {
		rpcClient, err := rpc.NewClient(ctx, transport, cfg.Queues.NoteRPC, durable, cfg.RPC.CallTimeout, logger)
		if err != nil {
			return nil, nil, err
		}

		publisher, err := event.NewPublisher(ctx, transport, cfg.Queues.Events, durable, logger)
		if err != nil {
			return nil, nil, err
		}

		socialService := social.NewService(likeRepo, likeCache, cfg.Redis.CacheTTL, rpcClient, publisher, logger)
		socialHandler = api.NewSocialHandler(socialService, logger)
	}

	if cfg.HasRole(config.RoleNotifications) {
		consumer = notifier.NewConsumer(transport, cfg.Queues.Events, durable, notificationRepo, logger)
		notificationHandler = api.NewNotificationHandler(notifier.NewService(notificationRepo, logger), logger)
	}

	// Initialize HTTP server
	server := api.NewServer(api.ServerDeps{
		Config:              &cfg.Server,
		Logger:              logger,
		NoteHandler:         noteHandler,
		SocialHandler:       socialHandler,
		NotificationHandler: notificationHandler,
	})

	// Build cleanup function
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	return &dependencies{
		server:    server,
		rpcServer: rpcServer,
		consumer:  consumer,
	}, cleanup, nil
}

// initLogger creates the application logger from config.
func initLogger(cfg *config.LoggerConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// roleNames renders the configured roles for logging.
func roleNames(cfg *config.Config) string {
	if len(cfg.Roles) == 0 {
		return "all"
	}
	names := make([]string, len(cfg.Roles))
	for i, r := range cfg.Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}
