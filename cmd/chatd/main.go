package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/heaming/zipper-sub001/auth"
	"github.com/heaming/zipper-sub001/domain/event"
	"github.com/heaming/zipper-sub001/infrastructure/rest"
	"github.com/heaming/zipper-sub001/infrastructure/ws"
	"github.com/heaming/zipper-sub001/moderation"
	"github.com/heaming/zipper-sub001/presence"
	"github.com/heaming/zipper-sub001/repositories"
	"github.com/heaming/zipper-sub001/runtime"
	"github.com/heaming/zipper-sub001/runtime/workers"
	"github.com/heaming/zipper-sub001/search"
	"github.com/heaming/zipper-sub001/services"
	"github.com/heaming/zipper-sub001/sink"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// main is a thin wrapper: call run() and translate the result into
	// an OS exit code, keeping defers runnable.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatd terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.NewIndex(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open search index: %w", err)
	}
	defer func() {
		logger.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Core components
	words := moderation.DefaultWords()
	if config.ModerationWordsFile != "" {
		if words, err = moderation.WordsFromFile(config.ModerationWordsFile); err != nil {
			return exitConfig, fmt.Errorf("loading moderation words: %w", err)
		}
	}
	moderator, err := moderation.NewModerator(words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("building moderator: %w", err)
	}

	registry := runtime.NewRegistry()
	tracker := presence.NewTracker(config.TypingIdleWindow)
	messageRepository := repositories.NewMessageRepository(db, logger)
	roomRepository := repositories.NewRoomRepository(db)
	events := make(chan event.DomainEvent, config.BufferSize)

	ingestor := services.NewIngestor(
		logger, registry, roomRepository, messageRepository, moderator, events,
		services.IngestorConfig{
			MaxContentLength: config.MaxContentLength,
			EnqueueTimeout:   config.IngestionTimeout,
		})

	chatService := services.NewChatService(
		logger, registry, roomRepository, messageRepository,
		tracker, ingestor, index, events, config.HistoryPageLimit)

	// 4. Supervision: fanout, presence sweeper, telemetry
	fanout := workers.NewFanout(logger, registry, events, config.DeliveryTimeout).
		AddPermanent(sink.NewSearchSink(index, logger))
	sweeper := workers.NewPresenceSweeper(logger, tracker, events, config.PresenceSweepInterval)
	telemetry := workers.NewTelemetryWorker(logger, registry, config.TelemetryInterval)

	sup := workers.NewSupervisor(logger)
	sup.Add(fanout, sweeper, telemetry)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisorDone := make(chan struct{})
	go func() {
		logger.Info("Starting workers...")
		sup.Run(ctx)
		close(supervisorDone)
	}()

	// 6. HTTP server (websocket + REST)
	verifier := auth.NewVerifier([]byte(config.JWTSecret))
	chatHandler := ws.NewHandler(logger, chatService, verifier, config.ConnectionBufferSize)
	router := rest.NewRouter(logger, chatService, verifier, chatHandler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	<-supervisorDone
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
