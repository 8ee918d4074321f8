package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/quilldev/quill-client/internal/config"
	"github.com/quilldev/quill-client/internal/conn"
	"github.com/quilldev/quill-client/internal/observability"
	"github.com/quilldev/quill-client/internal/session"
	"github.com/rs/zerolog/log"
)

func main() {
	// --- 1. Configuration Loading ---
	configPath := flag.String("config", "", "Path to a YAML or TOML configuration file (optional).")
	host := flag.String("host", "", "Server host, overrides the configuration file.")
	port := flag.Int("port", 0, "Server port, overrides the configuration file.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading configuration")
		}
		cfg = loaded
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := observability.InitLogger("quill-client", cfg.LogLevel)
	if *configPath != "" {
		logger.Info().Str("path", *configPath).Msg("Configuration loaded successfully")
	}
	logger.Info().Str("host", cfg.Host).Int("port", cfg.Port).Dur("dialTimeout", cfg.DialTimeout()).Msg("Server address")

	// --- 2. Client Initialization ---
	reporter := observability.NewLogReporter(logger)
	connection := conn.New(cfg, nil, reporter, logger)
	manager := session.NewManager(connection, cfg, reporter, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.Run(ctx)
	}()

	manager.Connect(cfg.Host, cfg.Port)

	// --- 3. Graceful Shutdown ---
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Msg("Quill client is running. Press CTRL+C to exit.")

	<-shutdownChan
	logger.Info().Msg("Shutdown signal received.")

	// Cancelling the context sends the end-of-session marker and closes the socket.
	cancel()
	wg.Wait()

	logger.Info().Msg("Shutdown complete. Goodbye.")
}
