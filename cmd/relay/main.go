package main

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/http/server"
	"chat-relay/infrastructure/storage"
	"chat-relay/internal"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitConfig  = 2
	exitRuntime = 1
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until SIGINT or SIGTERM.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB) and media root
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if log.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s?prefix=%s", config.DebugPort, endpoint, storage.MessagePrefix)
		log.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	blobs, err := storage.NewBlobStore(config.MediaRoot, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("media root: %w", err)
	}

	// 3. Domain
	group := runtime.NewBroadcastGroup(log)
	users := storage.NewUserRepository(db)
	messages := storage.NewMessageRepository(db, blobs, log)
	tokens := auth.NewTokens(config.AuthSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(log, users, messages, group, config.MediaURL)
	authService := services.NewAuthService(users, tokens)

	// 4. Transport
	chatServer := server.NewChatServer(log, chatService, tokens, config.Origins(), config.ConnectionBufferSize,
		server.SessionOptions{
			WriteTimeout: config.WriteTimeout,
			PongTimeout:  config.PongTimeout,
			MaxFrameSize: config.MaxFrameSize,
		})
	router := server.NewRouter(chatServer, server.NewAuthServer(log, authService), config.MediaURL, config.MediaRoot)

	// 5. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(log, config.Address(), router),
		workers.NewHealthWorker(log, config.HealthAddress()),
		workers.NewTelemetryWorker(log, group, config.MetricInterval),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	// 6. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// Sessions are hijacked connections, closing their handles ends them
	group.Drain()
	<-done

	// Storage closes on return, no session may still be persisting
	sessionsDone := make(chan struct{})
	go func() {
		defer close(sessionsDone)
		chatServer.Wait()
	}()
	select {
	case <-sessionsDone:
	case <-time.After(config.WriteTimeout):
		log.Warn("Sessions still running at shutdown", "timeout", config.WriteTimeout)
	}
	log.Info("Program stopped cleanly")

	return exitOK, nil
}

// RecordMapper shows decoded messages and accounts in the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = storage.Describe(key, val)
	return row
}
