package main

import (
	"context"
	"errors"
	"fmt"
	"match-chat/auth"
	"match-chat/contract"
	"match-chat/infrastructure/http/server"
	"match-chat/infrastructure/recommendation"
	"match-chat/infrastructure/storage"
	"match-chat/internal"
	"match-chat/observability"
	"match-chat/repositories"
	"match-chat/repositories/dynamo"
	"match-chat/runtime"
	"match-chat/runtime/workers"
	"match-chat/services"
	"match-chat/sink"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK = iota
	exitRuntime
	exitConfig
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

type stores struct {
	matches  repositories.IMatchRepository
	chats    repositories.IChatRepository
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
}

// run wires every component and owns their lifecycle, so that deferred cleanups run before exiting.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var cfg internal.Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, _ := internal.CharacterRune(cfg.CharReplacement)
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Persistence
	var (
		st stores
		db *badger.DB
	)
	switch cfg.StoreDriver {
	case internal.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return exitRuntime, fmt.Errorf("dynamodb client: %w", err)
		}
		table := dynamo.NewTable(client, cfg.DynamoTable)
		st = stores{
			matches:  dynamo.NewMatchRepository(table, log),
			chats:    dynamo.NewChatRepository(table, log),
			messages: dynamo.NewMessageRepository(table, log),
			users:    dynamo.NewUserRepository(table, log),
		}
	default:
		var err error
		db, err = badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		st = stores{
			matches:  repositories.NewMatchRepository(db, log),
			chats:    repositories.NewChatRepository(db, log),
			messages: repositories.NewMessageRepository(db, log),
			users:    repositories.NewUserRepository(db, log),
		}
	}
	log.Info("Store ready", "driver", cfg.StoreDriver)

	// 3. Search index & object storage
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(cfg.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() { _ = writer.Close() }()
	index := storage.NewMessageIndex(writer, log)

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return exitRuntime, fmt.Errorf("aws config: %w", err)
	}
	presigner := storage.NewS3Presigner(s3.NewFromConfig(awsCfg), cfg.S3Bucket)

	// 4. Supervision & orchestration
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor(log)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, cfg.RestartInterval), registry,
		monitor, cfg.NumberOfShards, cfg.BufferSize, cfg.SinkTimeout, cfg.MetricInterval)
	orchestrator.RegisterSinks(sink.NewSearchSink(index, log))

	// 5. Services
	var censor services.Censor
	if cfg.ModerationEnabled {
		moderator, err := runtime.LoadModerator(charReplacement, log)
		if err != nil {
			return exitRuntime, fmt.Errorf("moderation dictionary: %w", err)
		}
		censor = moderator
	}
	var provider contract.RecommendationProvider
	if cfg.RecommendationURL != "" {
		provider = recommendation.NewClient(cfg.RecommendationURL, cfg.RecommendationTimeout, log)
	}

	presence := services.NewPresenceService(registry, st.users, st.matches, orchestrator,
		cfg.RecentlyActiveWindow, services.UTCClock, log)
	chats := services.NewChatService(st.chats, st.matches, services.UTCClock, log)
	chats.UseRooms(registry)
	matches := services.NewMatchService(st.matches, st.chats, presence, orchestrator, services.NewIDs(), services.UTCClock, log)
	messages := services.NewMessageService(st.messages, st.chats, chats, censor, orchestrator,
		cfg.MaxContentLength, services.UTCClock, log)
	orchestrator.UseMessageCreator(messages)

	if err := orchestrator.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator failed to start: %w", err)
	}
	defer orchestrator.Stop()

	// 6. Transport
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
	gateway := runtime.NewGateway(log, tokens, presence, chats, messages, orchestrator, orchestrator,
		registry, cfg.AuthTimeout, cfg.ConnectionBufferSize)
	api := server.NewServer(log, tokens, server.Services{
		Matches:         matches,
		Chats:           chats,
		Messages:        messages,
		Presence:        presence,
		Recommendations: services.NewRecommendationService(provider, st.matches, st.users, cfg.RecommendationTimeout, log),
		Attachments:     services.NewAttachmentService(chats, presigner, cfg.AttachmentURLTTL, services.UTCClock, log),
		Search:          services.NewSearchService(chats, index, st.messages, log),
	}, orchestrator, gateway, orchestrator, cfg.Origins())

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var debugServer *http.Server
	if db != nil && cfg.DebugPort > 0 {
		debugServer = internal.NewDebugServer(db, cfg.DebugPort, func() map[string]any {
			stats := orchestrator.Stats()
			return map[string]any{
				"connections": stats.Connections,
				"online":      stats.OnlineUsers,
				"rooms":       stats.Rooms,
				"published":   stats.EventsPublished,
				"dropped":     stats.EventsDropped,
			}
		}, log)
		go func() {
			log.Info("Debug inspector started", "url", fmt.Sprintf("http://localhost:%d/inspect", cfg.DebugPort))
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("debug server error: %w", err)
			}
		}()
	}

	// 7. Wait for stop or error
	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		log.Error("Server failed", "error", err)
		code = exitRuntime
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	stop()
	log.Info("Program stopped cleanly")
	return code, err
}
