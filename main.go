// Game builder API server: AI-assisted browser-game generation over
// per-app dev servers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/georgeIshaq/gameBuilder/internal/config"
	"github.com/georgeIshaq/gameBuilder/internal/engine"
	"github.com/georgeIshaq/gameBuilder/internal/errorreport"
	"github.com/georgeIshaq/gameBuilder/internal/logging"
	"github.com/georgeIshaq/gameBuilder/internal/persistence"
	"github.com/georgeIshaq/gameBuilder/internal/sandbox"
	"github.com/georgeIshaq/gameBuilder/internal/server"
	"github.com/georgeIshaq/gameBuilder/internal/streams"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open persistence store: %v", err)
	}

	runner, err := engine.NewRunner(context.Background(), cfg.AnthropicAPIKey, cfg.ModelName, cfg.ModelMaxTokens)
	if err != nil {
		log.Fatalf("Failed to create model runner: %v", err)
	}

	var reporter *errorreport.Reporter
	if cfg.ErrorReportURL != "" {
		reporter = errorreport.New(cfg.ErrorReportURL, cfg.ErrorReportToken, errorreport.Config{})
		reporter.Start()
		defer reporter.Shutdown()
	}

	controller := streams.NewController(store, runner, streams.Options{
		StopWait:     cfg.StreamStopWait,
		PollInterval: cfg.StreamPollInterval,
		BufferLimit:  cfg.StreamBufferLimit,
		OnError: func(appID string, err error) {
			reporter.ReportError(err, "streams", appID, nil)
		},
	})

	sandboxClient := sandbox.NewClient(cfg.SandboxURL, cfg.SandboxAPIKey, cfg.SandboxTimeout)

	srv, err := server.New(cfg, store, controller, sandboxClient)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Game builder API stopped")
}
