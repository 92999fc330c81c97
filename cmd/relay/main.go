package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"relay-lab/auth"
	"relay-lab/internal"
	"relay-lab/moderation"
	"relay-lab/projection"
	"relay-lab/protocol"
	"relay-lab/repositories"
	"relay-lab/runtime"
	"relay-lab/runtime/workers"
	"relay-lab/sink"
	"relay-lab/transport"
)

// Exit codes to provide meaningful status to the operating system or service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// main acts as a thin wrapper: call run() and map it to an OS exit code,
	// so that every defer (database close included) executes before exiting.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB) for the event history
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	var censor runtime.Censor
	if config.EnableModeration {
		charReplacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return exitConfig, err
		}
		data, err := runtime.NewCensoredLoader().LoadAll("censored")
		if err != nil {
			return exitRuntime, fmt.Errorf("censored words loading failed: %w", err)
		}
		logger.Info(fmt.Sprintf("%d censored words loaded (%d languages)",
			len(data.Words), len(data.Languages)))
		moderator, err := moderation.NewModerator(data.Words, charReplacement, logger)
		if err != nil {
			return exitRuntime, err
		}
		censor = moderator
	}

	// 4. Relay engine: registry, router, taps
	registry := runtime.NewRegistry()
	validator := protocol.NewCommandValidator(config.MaxContentLength)
	issuer := auth.NewTokenIssuer([]byte(config.AuthTokenKey), config.AuthTokenDuration)

	var verify runtime.TokenVerifier
	if config.RequireSignedTokens {
		verify = issuer.Verify
	}
	router := runtime.NewRouter(logger, registry, validator, censor, verify, config.BufferSize)

	// 5. Sinks & workers under supervision
	history := repositories.NewHistoryRepository(db, logger, config.HistoryLimit)
	timeline := projection.NewTimeline(config.TimelineCapacity)
	table := transport.NewConnTable()

	sup := workers.NewSupervisor(logger)
	sup.Add(workers.NewEventFanout(logger, router.Taps(), config.SinkTimeout,
		sink.NewDiskSink(history), timeline))
	sup.Add(workers.NewLivenessWorker(logger, table, router, config.ProbeInterval))
	sup.Add(workers.NewTelemetryWorker(logger, config.MetricInterval))

	// 6. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting supervised workers")
		sup.Run(ctx)
	}()

	internal.StartDebugServer(logger, timeline, history, config.DebugPort)

	// 7. HTTP server with the websocket accept loop
	server := transport.NewServer(logger, router, table, issuer,
		config.ConnectionBufferSize, config.MaxMessageSize)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Handler()}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Relay listening", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for stop or error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Graceful shutdown: stop accepting, then stop the workers
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	logger.Info("Relay stopped cleanly")

	return exitOK, nil
}
